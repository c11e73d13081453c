//go:build !unix

package logging

import "os"

// Advisory locking is unix-only; the in-process mutex still serializes
// writes.
func lockFile(_ *os.File) error { return nil }

func unlockFile(_ *os.File) error { return nil }
