//go:build !unix

package launcher

import (
	"errors"
	"syscall"
)

// errNoPriority is returned where process niceness is not supported.
var errNoPriority = errors.New("process priority not supported on this platform")

func detachAttr() *syscall.SysProcAttr {
	return nil
}

// setPriority is a no-op off unix; priority lowering is best-effort.
func setPriority(_, _ int) error {
	return nil
}

// Priority is not available off unix.
func Priority(_ int) (int, error) {
	return 0, errNoPriority
}
