package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	tandemerrors "github.com/Iron-Ham/tandem/internal/errors"
	"github.com/Iron-Ham/tandem/internal/event"
	"github.com/Iron-Ham/tandem/internal/logging"
	"github.com/Iron-Ham/tandem/internal/watch"
)

// Pipeline builds one module. A Pipeline may be built more than once; each
// Build starts from the configuration passed to New.
type Pipeline struct {
	cfg    Config
	opts   pipelineOptions
	logger *logging.Logger
}

// New creates a Pipeline with the given configuration and options.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if cfg.Name == "" {
		return nil, invalidConfig("name", "is required")
	}
	if cfg.Root == "" {
		return nil, invalidConfig("root", "is required")
	}
	if len(cfg.Entries) == 0 {
		return nil, invalidConfig("entries", "at least one entry is required")
	}

	var o pipelineOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NopLogger()
	}

	return &Pipeline{
		cfg:    cfg.clone(),
		opts:   o,
		logger: o.logger.WithPipeline(cfg.Name),
	}, nil
}

func invalidConfig(field, message string) error {
	return tandemerrors.NewValidationError(message).WithField(field).WithCause(tandemerrors.ErrInvalidConfig)
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string {
	return p.cfg.Name
}

// Build runs the config phase and the first build. When the configuration
// asks for watch mode (directly or through a config hook) the returned
// session keeps rebuilding until Close. Otherwise the session is already
// finished when Build returns.
//
// Config hook errors are returned unwrapped, before anything is built or
// watched.
func (p *Pipeline) Build(ctx context.Context) (*Session, error) {
	cfg := p.cfg.clone()
	if cfg.Env == nil {
		cfg.Env = make(map[string]string)
	}

	plugins, err := Flatten(ctx, cfg.Plugins)
	if err != nil {
		return nil, tandemerrors.NewConfigurationError("resolving plugins", err).WithPipeline(cfg.Name)
	}

	for _, pl := range plugins {
		hook, ok := pl.(ConfigHook)
		if !ok {
			continue
		}
		if err := hook.Config(ctx, &cfg); err != nil {
			p.logger.Error("config hook failed", "plugin", hook.Name(), "error", err)
			return nil, err
		}
	}

	sessCtx, cancel := context.WithCancel(ctx)
	buildCtx, cerr := api.Context(buildOptions(sessCtx, &cfg, plugins))
	if cerr != nil {
		cancel()
		return nil, tandemerrors.NewBuildError(cfg.Name, Messages(cerr.Errors))
	}

	s := &Session{
		pipeline: p,
		cfg:      &cfg,
		plugins:  plugins,
		build:    buildCtx,
		ctx:      sessCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	if cfg.EmptyOutDir {
		if err := emptyOutDir(&cfg); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	if err := s.Rebuild(sessCtx); err != nil {
		_ = s.Close()
		return nil, err
	}

	if !cfg.Watch {
		return s, s.Close()
	}

	if err := s.startWatching(); err != nil {
		_ = s.Close()
		return nil, err
	}
	p.logger.Info("watching for changes", "roots", s.watcher.Roots())
	return s, nil
}

// Session is one Build of a pipeline.
type Session struct {
	pipeline *Pipeline
	cfg      *Config
	plugins  []Plugin
	build    api.BuildContext
	watcher  *watch.Watcher

	ctx    context.Context
	cancel context.CancelFunc

	buildMu sync.Mutex

	mu         sync.Mutex
	generation int
	outputs    []string

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// Config returns the configuration after the config phase. Callers must
// not modify it.
func (s *Session) Config() *Config {
	return s.cfg
}

// Plugins returns the flattened plugin list.
func (s *Session) Plugins() []Plugin {
	return s.plugins
}

// Watching reports whether the session rebuilds on change.
func (s *Session) Watching() bool {
	return s.cfg.Watch
}

// Generation returns the number of successful builds.
func (s *Session) Generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Outputs returns the files written by the last successful build.
func (s *Session) Outputs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.outputs...)
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Rebuild builds once, writes the output and runs WriteBundle hooks.
func (s *Session) Rebuild(ctx context.Context) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	name := s.cfg.Name
	opts := s.pipeline.opts
	logger := s.pipeline.logger
	start := time.Now()

	fail := func(err error) error {
		d := time.Since(start)
		opts.metrics.ObserveBuild(name, false, d)
		opts.bus.Publish(event.NewPipelineFailedEvent(name, err))
		logger.Error("build failed", "error", err, "duration_ms", d.Milliseconds())
		return err
	}

	result := s.build.Rebuild()
	for _, w := range Messages(result.Warnings) {
		logger.Warn("build warning", "message", w)
	}
	if len(result.Errors) > 0 {
		return fail(buildError(name, result.Errors))
	}

	outputs, err := writeOutputs(result.OutputFiles)
	if err != nil {
		return fail(tandemerrors.Wrapf(err, "writing %s output", name))
	}

	s.mu.Lock()
	s.generation++
	generation := s.generation
	s.outputs = outputs
	s.mu.Unlock()

	bundle := &Bundle{
		Pipeline:   name,
		Generation: generation,
		Outputs:    outputs,
		Duration:   time.Since(start),
		Config:     s.cfg,
	}
	for _, pl := range s.plugins {
		hook, ok := pl.(WriteBundleHook)
		if !ok {
			continue
		}
		if err := hook.WriteBundle(ctx, bundle); err != nil {
			return fail(fmt.Errorf("%s: %w", hook.Name(), err))
		}
	}

	d := time.Since(start)
	opts.metrics.ObserveBuild(name, true, d)
	opts.bus.Publish(event.NewPipelineRebuiltEvent(name, generation, outputs, d))
	logger.Info("build complete",
		"generation", generation,
		"outputs", len(outputs),
		"duration_ms", d.Milliseconds(),
	)
	return nil
}

func (s *Session) startWatching() error {
	opts := s.pipeline.opts
	watchOpts := opts.watch
	// Writing output must not trigger another build.
	watchOpts.Exclude = append(slices.Clone(watchOpts.Exclude), s.cfg.OutPath())
	w, err := watch.New(watchOpts, s.onChange, s.pipeline.logger)
	if err != nil {
		return err
	}

	dirs := append([]string{s.cfg.Root}, opts.extraWatchDirs...)
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Stop()
			return err
		}
	}
	s.watcher = w
	w.Start()
	return nil
}

func (s *Session) onChange(paths []string) {
	if s.ctx.Err() != nil {
		return
	}
	s.pipeline.logger.Debug("sources changed", "paths", paths)
	// Failures are reported by Rebuild; the session keeps watching.
	if err := s.Rebuild(s.ctx); err != nil && tandemerrors.IsRetryable(err) {
		s.pipeline.logger.Info("waiting for the next change")
	}
}

// Close stops watching, releases the bundler and runs Close hooks. It is
// idempotent and returns the first Close hook error.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.watcher != nil {
			s.watcher.Stop()
		}
		s.build.Dispose()

		var errs []error
		for _, pl := range s.plugins {
			if hook, ok := pl.(CloseHook); ok {
				if err := hook.Close(); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", hook.Name(), err))
				}
			}
		}
		s.closeErr = tandemerrors.Join(errs...)
		close(s.done)
	})
	return s.closeErr
}

// buildError converts bundler diagnostics into a BuildError. Errors returned
// by hooks are carried along when the bundler preserves them.
func buildError(pipeline string, msgs []api.Message) error {
	err := tandemerrors.NewBuildError(pipeline, Messages(msgs))
	causes := []error{err}
	for _, m := range msgs {
		if detail, ok := m.Detail.(error); ok {
			causes = append(causes, detail)
		}
	}
	if len(causes) == 1 {
		return err
	}
	return tandemerrors.Join(causes...)
}

func writeOutputs(files []api.OutputFile) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(f.Path, f.Contents, 0644); err != nil {
			return nil, err
		}
		paths = append(paths, f.Path)
	}
	return paths, nil
}

func emptyOutDir(cfg *Config) error {
	out := cfg.OutPath()
	rel, err := filepath.Rel(cfg.Root, out)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	if err := os.RemoveAll(out); err != nil {
		return tandemerrors.Wrapf(err, "emptying %s", out)
	}
	return nil
}

func joinRoot(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
