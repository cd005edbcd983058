// Package supervisor owns at most one child process at a time.
//
// Replace stops the current child (if any) and starts a new one as a single
// step. A child's exit is reported to the exit handler only while the
// supervisor still owns it: once Replace or Stop has taken a child over, its
// death is expected and is not propagated.
//
// Stopping sends the stop signal to the child's process group and waits up to
// the stop timeout. A child still alive after that is killed together with
// its descendants, and the kill is confirmed before a new child is started.
package supervisor

import (
	"context"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	tandemerrors "github.com/Iron-Ham/tandem/internal/errors"
	"github.com/Iron-Ham/tandem/internal/event"
	"github.com/Iron-Ham/tandem/internal/logging"
	"github.com/Iron-Ham/tandem/internal/metrics"
)

// DefaultStopTimeout is how long a child may take to exit after the stop
// signal before it is force-killed.
const DefaultStopTimeout = 3 * time.Second

// DefaultStopSignal asks a child to shut down the way Ctrl+C would.
var DefaultStopSignal os.Signal = syscall.SIGINT

// ExitHandler receives the exit status of an owned child that exited on its
// own. It runs on the supervisor's wait goroutine.
type ExitHandler func(code int)

// Supervisor holds at most one live child.
type Supervisor struct {
	owner       string
	spawner     Spawner
	stopTimeout time.Duration
	stopSignal  os.Signal
	onExit      ExitHandler
	logger      *logging.Logger
	bus         *event.Bus
	metrics     *metrics.Metrics

	// replaceMu serializes Replace and Stop. mu guards the ownership record
	// and is never held while waiting for a child.
	replaceMu sync.Mutex
	mu        sync.Mutex
	current   *child
	closed    bool
}

type child struct {
	proc     Process
	command  string
	done     chan struct{}
	exitCode int
}

// New creates a Supervisor. owner names the pipeline the children belong to
// in logs, events and metrics. A nil spawner uses ExecSpawner.
func New(owner string, spawner Spawner, opts ...Option) *Supervisor {
	if spawner == nil {
		spawner = ExecSpawner{}
	}
	s := &Supervisor{
		owner:       owner,
		spawner:     spawner,
		stopTimeout: DefaultStopTimeout,
		stopSignal:  DefaultStopSignal,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NopLogger()
	}
	s.logger = s.logger.WithComponent("supervisor").With("owner", owner)
	return s
}

// Replace stops the current child, if any, and starts spec as the new one.
// The old child's exit is never reported to the exit handler. If the old
// child cannot be confirmed dead, no new child is started.
func (s *Supervisor) Replace(ctx context.Context, spec Spec) error {
	s.replaceMu.Lock()
	defer s.replaceMu.Unlock()

	old, err := s.release()
	if err != nil {
		return err
	}
	if old != nil {
		if err := s.terminate(ctx, old); err != nil {
			return err
		}
	}

	proc, err := s.spawner.Spawn(ctx, spec)
	if err != nil {
		s.logger.Error("failed to start child", "command", spec.Command, "error", err)
		return tandemerrors.NewProcessError("failed to start child", tandemerrors.Join(tandemerrors.ErrSpawnFailed, err)).
			WithCommand(commandLine(spec))
	}

	c := &child{proc: proc, command: commandLine(spec), done: make(chan struct{})}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		// Closed while spawning; do not leave the new child behind.
		_ = s.terminate(context.WithoutCancel(ctx), c)
		return tandemerrors.ErrSupervisorClosed
	}
	s.current = c
	s.mu.Unlock()

	go s.wait(c)

	pid := proc.Pid()
	s.metrics.ChildSpawned(s.owner)
	s.bus.Publish(event.NewChildStartedEvent(s.owner, pid, c.command))
	s.logger.Info("child started", "pid", pid, "command", c.command)
	return nil
}

// Stop stops the current child, if any, without starting a new one.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.replaceMu.Lock()
	defer s.replaceMu.Unlock()

	old, err := s.release()
	if err != nil || old == nil {
		return err
	}
	return s.terminate(ctx, old)
}

// Close stops the current child and rejects further Replace calls.
func (s *Supervisor) Close(ctx context.Context) error {
	s.replaceMu.Lock()
	defer s.replaceMu.Unlock()

	s.mu.Lock()
	old := s.current
	s.current = nil
	s.closed = true
	s.mu.Unlock()

	if old == nil {
		return nil
	}
	return s.terminate(ctx, old)
}

// PID returns the current child's PID.
func (s *Supervisor) PID() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0, false
	}
	return s.current.proc.Pid(), true
}

// Running reports whether the supervisor owns a live child.
func (s *Supervisor) Running() bool {
	_, ok := s.PID()
	return ok
}

// release detaches the current child from exit propagation and returns it.
func (s *Supervisor) release() (*child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, tandemerrors.ErrSupervisorClosed
	}
	old := s.current
	s.current = nil
	return old, nil
}

// terminate signals c and waits for it to exit, force-killing it after the
// stop timeout or when ctx is done.
func (s *Supervisor) terminate(ctx context.Context, c *child) error {
	pid := c.proc.Pid()

	select {
	case <-c.done:
		return nil
	default:
	}

	s.logger.Debug("stopping child", "pid", pid, "signal", s.stopSignal.String())
	if err := c.proc.Signal(s.stopSignal); err != nil {
		s.logger.Debug("stop signal failed", "pid", pid, "error", err)
	}

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()

	var stopErr error
	select {
	case <-c.done:
		s.metrics.ChildTerminated(s.owner, false)
		return nil
	case <-timer.C:
		stopErr = tandemerrors.NewTimeoutError("graceful stop", s.stopTimeout)
	case <-ctx.Done():
		stopErr = ctx.Err()
	}

	s.logger.Warn("child ignored stop signal, killing process tree",
		"pid", pid,
		"error", stopErr,
	)
	if err := c.proc.Kill(); err != nil {
		s.logger.Error("force kill failed", "pid", pid, "error", err)
	}
	s.metrics.ChildTerminated(s.owner, true)
	s.bus.Publish(event.NewChildKillForcedEvent(s.owner, pid, s.stopTimeout))

	if err := confirmExit(c); err != nil {
		return tandemerrors.NewProcessError("child survived force kill", tandemerrors.Join(tandemerrors.ErrKillForced, stopErr)).
			WithPID(pid).
			WithCommand(c.command).
			WithSeverity(tandemerrors.SeverityCritical)
	}
	return nil
}

// confirmExit polls with exponential backoff until the child's wait
// goroutine has reaped it.
func confirmExit(c *child) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second

	return backoff.Retry(func() error {
		select {
		case <-c.done:
			return nil
		default:
			return tandemerrors.ErrKillForced
		}
	}, b)
}

func (s *Supervisor) wait(c *child) {
	code, err := c.proc.Wait()
	pid := c.proc.Pid()
	if err != nil {
		s.logger.Error("waiting for child failed", "pid", pid, "error", err)
	}
	c.exitCode = code
	close(c.done)

	s.mu.Lock()
	owned := s.current == c
	if owned {
		s.current = nil
	}
	handler := s.onExit
	s.mu.Unlock()

	s.bus.Publish(event.NewChildExitedEvent(s.owner, pid, code, !owned))
	if !owned {
		s.logger.Debug("replaced child exited", "pid", pid, "exit_code", code)
		return
	}

	s.logger.Info("child exited", "pid", pid, "exit_code", code)
	if handler != nil {
		handler(code)
	}
}

func commandLine(spec Spec) string {
	if len(spec.Args) == 0 {
		return spec.Command
	}
	return spec.Command + " " + strings.Join(spec.Args, " ")
}
