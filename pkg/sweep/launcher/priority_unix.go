//go:build unix

package launcher

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// detachAttr puts the child in its own process group so signals sent to
// the launcher's terminal group do not reach it.
func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// setPriority sets the niceness of pid. Values above the system maximum
// are clamped by the kernel.
func setPriority(pid, nice int) error {
	if nice == 0 {
		return nil
	}
	return unix.Setpriority(unix.PRIO_PROCESS, pid, nice)
}

// Priority returns the niceness of pid.
func Priority(pid int) (int, error) {
	prio, err := unix.Getpriority(unix.PRIO_PROCESS, pid)
	if err != nil {
		return 0, err
	}
	return normalizePriority(prio), nil
}
