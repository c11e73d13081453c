//go:build unix

package registry

import "golang.org/x/sys/unix"

// leadsGroup reports whether pid is the leader of its process group, as
// every child started by the launcher is.
func leadsGroup(pid int) bool {
	pgid, err := unix.Getpgid(pid)
	return err == nil && pgid == pid
}
