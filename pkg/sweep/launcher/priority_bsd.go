//go:build unix && !linux

package launcher

func normalizePriority(prio int) int {
	return prio
}
