//go:build !unix

package registry

func leadsGroup(int) bool { return true }
