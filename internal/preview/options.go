package preview

import (
	"github.com/Iron-Ham/tandem/internal/event"
	"github.com/Iron-Ham/tandem/internal/logging"
	"github.com/Iron-Ham/tandem/internal/metrics"
	"github.com/Iron-Ham/tandem/internal/watch"
)

// Option configures a Server.
type Option func(*Server)

// WithMode sets the mode exposed to renderer code as import.meta.env.MODE.
// Defaults to development.
func WithMode(mode string) Option {
	return func(s *Server) {
		s.mode = mode
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithBus publishes preview.reload and preview.client_connected events.
func WithBus(bus *event.Bus) Option {
	return func(s *Server) {
		s.bus = bus
	}
}

// WithMetrics records broadcasts and connected clients and serves the
// registry under /@tandem/metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithWatchOptions sets debounce and ignore rules for the renderer watcher.
func WithWatchOptions(opts watch.Options) Option {
	return func(s *Server) {
		s.watchOpts = opts
	}
}

// WithoutWatch disables reloading on renderer source changes.
func WithoutWatch() Option {
	return func(s *Server) {
		s.noWatch = true
	}
}
