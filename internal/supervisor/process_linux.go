package supervisor

import "syscall"

// sysProcAttr puts the child in its own process group so the whole tree can
// be signalled at once. Pdeathsig is a Linux-only safety net: if tandem dies
// unexpectedly, the kernel sends SIGTERM to the direct child.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
