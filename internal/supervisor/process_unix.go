//go:build unix

package supervisor

import (
	"os"
	"syscall"
)

// signalGroup delivers sig to the process group led by pid.
func signalGroup(pid int, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return syscall.EINVAL
	}
	// Negative pid addresses the process group created by Setpgid.
	return syscall.Kill(-pid, s)
}

func killPID(pid int) {
	_ = syscall.Kill(pid, syscall.SIGKILL)
}

func killGroup(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
