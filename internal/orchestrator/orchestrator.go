// Package orchestrator drives a tandem run.
//
// Dev starts the renderer preview server, shares it with the other pipelines
// through a single provider capability, then builds the preload pipeline and
// the main pipeline one after the other. Each pipeline keeps watching and
// its hot-reload controller reacts to rebuilds. Dev returns when its context
// is canceled or when the application child exits on its own, in which case
// the child's exit status is returned.
//
// Build runs the preload and main pipelines once in production mode.
package orchestrator

import (
	"io"

	"github.com/Iron-Ham/tandem/internal/config"
	tandemerrors "github.com/Iron-Ham/tandem/internal/errors"
	"github.com/Iron-Ham/tandem/internal/event"
	"github.com/Iron-Ham/tandem/internal/logging"
	"github.com/Iron-Ham/tandem/internal/metrics"
	"github.com/Iron-Ham/tandem/internal/supervisor"
	"github.com/Iron-Ham/tandem/internal/watch"
)

// Pipeline names. They key the provider registry and label logs, events and
// metrics.
const (
	PipelinePreload = "preload"
	PipelineMain    = "main"
)

// Orchestrator owns the configuration and the shared infrastructure of a run.
type Orchestrator struct {
	cfg     *config.Config
	logger  *logging.Logger
	bus     *event.Bus
	metrics *metrics.Metrics
	spawner supervisor.Spawner
	onStart func(*Run)

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithBus sets the event bus. Defaults to a new bus.
func WithBus(bus *event.Bus) Option {
	return func(o *Orchestrator) {
		o.bus = bus
	}
}

// WithMetrics records metrics and serves them from the preview server.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithStartHook calls fn once Dev has started every pipeline and the
// application, before it waits for the session to end.
func WithStartHook(fn func(*Run)) Option {
	return func(o *Orchestrator) {
		o.onStart = fn
	}
}

// WithSpawner replaces the spawner used for the application child.
func WithSpawner(s supervisor.Spawner) Option {
	return func(o *Orchestrator) {
		o.spawner = s
	}
}

// WithStdio sets the application child's streams. Nil streams are inherited.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(o *Orchestrator) {
		o.stdin = stdin
		o.stdout = stdout
		o.stderr = stderr
	}
}

// New creates an Orchestrator. cfg must be valid and its roots absolute (see
// config.Config.Resolve).
func New(cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, tandemerrors.NewConfigurationError("configuration rejected", config.ValidationErrors(errs))
	}

	o := &Orchestrator{cfg: cfg}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NopLogger()
	}
	if o.bus == nil {
		o.bus = event.NewBus()
	}
	if o.spawner == nil {
		o.spawner = supervisor.ExecSpawner{}
	}

	logger := o.logger
	o.bus.SetPanicReporter(func(eventType string, recovered any, stack []byte) {
		logger.Error("event handler panicked",
			"event_type", eventType,
			"panic", recovered,
			"stack", string(stack),
		)
	})
	return o, nil
}

// Config returns the run configuration.
func (o *Orchestrator) Config() *config.Config {
	return o.cfg
}

// Bus returns the event bus shared by every component of the run.
func (o *Orchestrator) Bus() *event.Bus {
	return o.bus
}

func (o *Orchestrator) watchOptions() watch.Options {
	return watch.Options{
		Debounce: o.cfg.Watch.Debounce(),
		Ignore:   o.cfg.Watch.Ignore,
	}
}
