package pipeline

import (
	"github.com/Iron-Ham/tandem/internal/event"
	"github.com/Iron-Ham/tandem/internal/logging"
	"github.com/Iron-Ham/tandem/internal/metrics"
	"github.com/Iron-Ham/tandem/internal/watch"
)

// Option configures a Pipeline.
type Option func(*pipelineOptions)

type pipelineOptions struct {
	logger  *logging.Logger
	bus     *event.Bus
	metrics *metrics.Metrics
	watch   watch.Options
	// extraWatchDirs are watched in addition to Root, e.g. a sibling package
	// whose sources a virtual module is generated from.
	extraWatchDirs []string
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *pipelineOptions) {
		o.logger = l
	}
}

// WithBus publishes pipeline.rebuilt and pipeline.failed events on bus.
func WithBus(bus *event.Bus) Option {
	return func(o *pipelineOptions) {
		o.bus = bus
	}
}

// WithMetrics records build counts and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *pipelineOptions) {
		o.metrics = m
	}
}

// WithWatchOptions sets debounce and ignore rules for watch sessions.
func WithWatchOptions(opts watch.Options) Option {
	return func(o *pipelineOptions) {
		o.watch = opts
	}
}

// WithWatchDirs watches additional directories in watch mode.
func WithWatchDirs(dirs ...string) Option {
	return func(o *pipelineOptions) {
		o.extraWatchDirs = append(o.extraWatchDirs, dirs...)
	}
}
