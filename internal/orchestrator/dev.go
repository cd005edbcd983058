package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	tandemerrors "github.com/Iron-Ham/tandem/internal/errors"
	"github.com/Iron-Ham/tandem/internal/logging"
	"github.com/Iron-Ham/tandem/internal/pipeline"
	"github.com/Iron-Ham/tandem/internal/preview"
	"github.com/Iron-Ham/tandem/internal/provider"
)

// shutdownTimeout bounds teardown after Dev stops waiting.
const shutdownTimeout = 10 * time.Second

// Run is a started development session.
type Run struct {
	server     *preview.Server
	capability *provider.Capability
	registry   *provider.Registry
	sessions   []*pipeline.Session
	logger     *logging.Logger

	exited chan int

	closeOnce sync.Once
	closeErr  error
}

// Server returns the preview server.
func (r *Run) Server() *preview.Server {
	return r.server
}

// Capability returns the provider shared with every pipeline of the run.
func (r *Run) Capability() *provider.Capability {
	return r.capability
}

// Registry returns the pipeline-to-provider registry of the run.
func (r *Run) Registry() *provider.Registry {
	return r.registry
}

// Sessions returns the pipeline sessions in start order.
func (r *Run) Sessions() []*pipeline.Session {
	return r.sessions
}

// URLs returns the preview server's addresses.
func (r *Run) URLs() *provider.URLs {
	return r.server.ResolvedURLs()
}

// Exited delivers the exit status of the application child when it exits on
// its own. Children replaced after a rebuild never report here.
func (r *Run) Exited() <-chan int {
	return r.exited
}

// Wait blocks until ctx is canceled or the application child exits on its
// own. It returns the child's exit status, or 0 when ctx ended the wait.
func (r *Run) Wait(ctx context.Context) int {
	select {
	case <-ctx.Done():
		r.logger.Info("dev session interrupted")
		return 0
	case code := <-r.exited:
		r.logger.Info("application exited", "exit_code", code)
		return code
	}
}

// Close ends every pipeline session concurrently, which stops the
// application child, and then closes the preview server.
func (r *Run) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		var mu sync.Mutex
		var errs []error

		var wg conc.WaitGroup
		for _, s := range r.sessions {
			wg.Go(func() {
				if err := s.Close(); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			})
		}
		wg.Wait()

		if err := r.server.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		r.closeErr = tandemerrors.Join(errs...)
		r.logger.Info("dev session closed")
	})
	return r.closeErr
}

// Start brings a development session up: the preview server first, then the
// preload pipeline, then the main pipeline, each waiting for the previous
// one to be ready. On error everything already started is torn down.
func (o *Orchestrator) Start(ctx context.Context) (*Run, error) {
	mode := o.cfg.Mode
	logger := o.logger.With("mode", mode)

	server, err := preview.New(o.cfg.Preview,
		preview.WithMode(mode),
		preview.WithLogger(o.logger),
		preview.WithBus(o.bus),
		preview.WithMetrics(o.metrics),
		preview.WithWatchOptions(o.watchOptions()),
	)
	if err != nil {
		return nil, err
	}
	if err := server.Listen(ctx); err != nil {
		return nil, err
	}

	capability := provider.New(server)
	registry := provider.NewRegistry()
	registry.Register(PipelinePreload, capability)
	registry.Register(PipelineMain, capability)

	run := &Run{
		server:     server,
		capability: capability,
		registry:   registry,
		logger:     logger,
		exited:     make(chan int, 1),
	}

	sup := o.newSupervisor(func(code int) {
		select {
		case run.exited <- code:
		default:
		}
	})

	configs := []pipeline.Config{
		o.preloadConfig(mode, registry.Inject(PipelinePreload, o.preloadPlugins(mode))),
		o.mainConfig(mode, registry.Inject(PipelineMain, o.mainPlugins(mode, sup))),
	}
	for _, cfg := range configs {
		p, err := pipeline.New(cfg, o.pipelineOptions()...)
		if err != nil {
			o.abort(run)
			return nil, err
		}
		sess, err := p.Build(ctx)
		if err != nil {
			o.abort(run)
			return nil, err
		}
		run.sessions = append(run.sessions, sess)
	}

	logger.Info("dev session started", "pipelines", registry.Pipelines())
	return run, nil
}

func (o *Orchestrator) abort(run *Run) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := run.Close(ctx); err != nil {
		o.logger.Warn("teardown after failed start", "error", err)
	}
}

// Dev runs a development session until ctx is canceled or the application
// child exits on its own. It returns the child's exit status in the latter
// case and 0 otherwise.
func (o *Orchestrator) Dev(ctx context.Context) (int, error) {
	run, err := o.Start(ctx)
	if err != nil {
		return 1, err
	}
	if o.onStart != nil {
		o.onStart(run)
	}

	code := run.Wait(ctx)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return code, run.Close(closeCtx)
}
