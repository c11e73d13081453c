package registry

import (
	"errors"
	"os"
	"syscall"
)

// IsAlive reports whether a process with the given PID exists. A process
// owned by another user counts as alive.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// Running reports whether c's process still exists and is the child that
// was started. Children lead their own process group, so a PID that has been
// reused by an ordinary process fails the group check; where start times are
// available, a process older than the sweep is rejected too.
func Running(c Child) bool {
	if !IsAlive(c.PID) {
		return false
	}
	return leadsGroup(c.PID) && !startedBefore(c.PID, c.StartedAt)
}

// Status is a child together with its current state.
type Status struct {
	Child
	Alive      bool
	LogSize    int64
	LogModTime int64 // Unix seconds, zero when the log is missing
}

// Inspect returns the status of each child.
func Inspect(children []Child) []Status {
	statuses := make([]Status, 0, len(children))
	for _, c := range children {
		st := Status{Child: c, Alive: Running(c)}
		if info, err := os.Stat(c.LogPath); err == nil {
			st.LogSize = info.Size()
			st.LogModTime = info.ModTime().Unix()
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// Signal sends sig to every running child and returns the PIDs signalled.
// PIDs that now belong to another process are skipped.
func Signal(children []Child, sig os.Signal) ([]int, error) {
	var signalled []int
	var errs []error
	for _, c := range children {
		if !Running(c) {
			continue
		}
		process, err := os.FindProcess(c.PID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := process.Signal(sig); err != nil {
			errs = append(errs, err)
			continue
		}
		signalled = append(signalled, c.PID)
	}
	return signalled, errors.Join(errs...)
}
