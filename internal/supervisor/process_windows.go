//go:build windows

package supervisor

import (
	"errors"
	"os"
	"syscall"
)

var errNoProcessGroups = errors.New("process group signals are not supported on windows")

// sysProcAttr gives the child its own process group so console interrupts
// aimed at tandem do not reach it directly.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// signalGroup always fails; the caller falls back to signalling the child
// alone, and the stop timeout escalates to killing the tree.
func signalGroup(int, os.Signal) error {
	return errNoProcessGroups
}

func killPID(pid int) {
	if proc, err := os.FindProcess(pid); err == nil {
		_ = proc.Kill()
	}
}

// killGroup is a no-op. Descendants are killed one by one by KillProcessTree.
func killGroup(int) {}
