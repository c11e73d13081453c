//go:build linux

package launcher

// normalizePriority converts the raw getpriority syscall result, which is
// 20-nice on Linux, back to a niceness.
func normalizePriority(prio int) int {
	return 20 - prio
}
