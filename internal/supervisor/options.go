package supervisor

import (
	"os"
	"time"

	"github.com/Iron-Ham/tandem/internal/event"
	"github.com/Iron-Ham/tandem/internal/logging"
	"github.com/Iron-Ham/tandem/internal/metrics"
)

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithStopTimeout sets how long a child may ignore the stop signal.
// Non-positive values keep the default.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// WithStopSignal sets the signal sent to stop a child.
func WithStopSignal(sig os.Signal) Option {
	return func(s *Supervisor) {
		if sig != nil {
			s.stopSignal = sig
		}
	}
}

// WithExitHandler sets the handler for owned children that exit on their own.
func WithExitHandler(h ExitHandler) Option {
	return func(s *Supervisor) {
		s.onExit = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Supervisor) {
		s.logger = l
	}
}

// WithBus publishes child lifecycle events.
func WithBus(bus *event.Bus) Option {
	return func(s *Supervisor) {
		s.bus = bus
	}
}

// WithMetrics records spawns and terminations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Supervisor) {
		s.metrics = m
	}
}
