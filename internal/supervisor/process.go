package supervisor

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"slices"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
)

// Spec describes a child process to start.
type Spec struct {
	Command string
	Args    []string
	// Dir is the working directory. Empty uses tandem's own.
	Dir string
	// Env is the complete child environment. Nil inherits tandem's.
	Env []string
	// Nil streams are inherited from tandem.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Process is a started child.
type Process interface {
	Pid() int
	// Signal delivers sig to the child's process group.
	Signal(sig os.Signal) error
	// Kill force-kills the child and all of its descendants.
	Kill() error
	// Wait blocks until the child exits and returns its exit status.
	// A child killed by a signal reports 128 plus the signal number.
	// Wait is called exactly once, by the supervisor.
	Wait() (int, error)
}

// Spawner starts child processes.
type Spawner interface {
	Spawn(ctx context.Context, spec Spec) (Process, error)
}

// ExecSpawner starts real OS processes.
type ExecSpawner struct{}

// Spawn starts spec. The child is not bound to ctx; its lifetime is managed
// by the supervisor.
func (ExecSpawner) Spawn(ctx context.Context, spec Spec) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdin = orReader(spec.Stdin, os.Stdin)
	cmd.Stdout = orWriter(spec.Stdout, os.Stdout)
	cmd.Stderr = orWriter(spec.Stderr, os.Stderr)
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Signal(sig os.Signal) error {
	if err := signalGroup(p.Pid(), sig); err == nil {
		return nil
	}
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) Kill() error {
	KillProcessTree(p.Pid())
	return nil
}

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal()), nil
		}
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// DescendantPIDs returns every descendant of pid, parents before children.
func DescendantPIDs(pid int) []int {
	if pid <= 0 {
		return nil
	}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil
	}
	return descendants(proc)
}

func descendants(proc *process.Process) []int {
	children, err := proc.Children()
	if err != nil {
		return nil
	}
	var pids []int
	for _, child := range children {
		pids = append(pids, int(child.Pid))
		pids = append(pids, descendants(child)...)
	}
	return pids
}

// IsProcessAlive reports whether a process with the given PID exists and is
// not a zombie waiting to be reaped.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	if err != nil || !ok {
		return false
	}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	status, err := proc.Status()
	if err != nil {
		return true
	}
	return !slices.Contains(status, process.Zombie)
}

// KillProcessTree force-kills a process, its process group where the platform
// has one, and all its descendants. Descendants are collected first and killed bottom-up.
func KillProcessTree(pid int) {
	if pid <= 0 {
		return
	}

	pids := DescendantPIDs(pid)
	for i := len(pids) - 1; i >= 0; i-- {
		if IsProcessAlive(pids[i]) {
			killPID(pids[i])
		}
	}

	killGroup(pid)
	if IsProcessAlive(pid) {
		killPID(pid)
	}
}

func orReader(r, def io.Reader) io.Reader {
	if r != nil {
		return r
	}
	return def
}

func orWriter(w, def io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return def
}
