package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// backupTimeFormat stamps rotated files: optsweep.2024-01-20-150405.log.
const backupTimeFormat = "2006-01-02-150405"

// RotationConfig configures log file rotation behavior.
type RotationConfig struct {
	// MaxSize is the size in bytes that triggers rotation. Zero means the
	// default of 10MB.
	MaxSize int64

	// MaxAge is how many days rotated files are kept. Zero keeps them
	// regardless of age.
	MaxAge int

	// MaxBackups caps the number of rotated files. Zero keeps all of them
	// (subject to MaxAge).
	MaxBackups int

	// Daily starts a new file on the first write of each day.
	Daily bool
}

// ParseMaxSize parses a human size such as "10MB" or "512KiB" into bytes.
// An empty string yields zero, which NewRotatingWriter replaces with the
// default.
func ParseMaxSize(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parsing rotation size %q: %w", s, err)
	}
	return int64(n), nil
}

// DefaultRotationConfig returns the rotation used when none is configured.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    10 * 1024 * 1024,
		MaxAge:     30,
		MaxBackups: 5,
		Daily:      true,
	}
}

// RotatingWriter is an io.WriteCloser appending to a log file that several
// optsweep processes may share. Every write holds an advisory lock on the
// file; the rotation decision uses the size on disk, and a writer whose file
// was rotated away by another process reopens the path before writing.
type RotatingWriter struct {
	path string
	cfg  RotationConfig

	mu      sync.Mutex
	file    *os.File
	started time.Time // creation day of the current file, for Daily
}

// NewRotatingWriter opens path for appending, creating parent directories,
// and prunes old backups.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{path: path, cfg: cfg}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.prune(time.Now())

	return w, nil
}

// Write appends p, rotating first when p would push the file past MaxSize
// or the day has changed.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if err := w.follow(); err != nil {
		return 0, err
	}

	if err := lockFile(w.file); err != nil {
		return 0, fmt.Errorf("acquiring file lock: %w", err)
	}

	now := time.Now()
	if w.due(now, int64(len(p))) {
		// Closing the old descriptor inside rotate releases its lock.
		if err := w.rotate(now); err != nil {
			if w.file != nil {
				_ = unlockFile(w.file)
			}
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
		if err := lockFile(w.file); err != nil {
			return 0, fmt.Errorf("acquiring file lock: %w", err)
		}
	}

	f := w.file
	defer func() { _ = unlockFile(f) }()

	n, err := f.Write(p)
	if err != nil {
		return n, fmt.Errorf("writing to log file: %w", err)
	}
	return n, nil
}

// Close syncs and closes the log file. Further writes fail with
// os.ErrClosed.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.file = nil
	if syncErr != nil {
		return fmt.Errorf("syncing log file: %w", syncErr)
	}
	return closeErr
}

// open opens or creates the log file at w.path.
func (w *RotatingWriter) open() error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		return errors.Join(fmt.Errorf("stat log file: %w", err), file.Close())
	}

	w.file = file
	w.started = info.ModTime()
	if info.Size() == 0 {
		w.started = time.Now()
	}
	return nil
}

// follow reopens w.path when the open descriptor no longer refers to it,
// which happens after another process rotated the file.
func (w *RotatingWriter) follow() error {
	onDisk, err := os.Stat(w.path)
	if err == nil {
		current, statErr := w.file.Stat()
		if statErr == nil && os.SameFile(onDisk, current) {
			return nil
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat log file: %w", err)
	}

	_ = w.file.Close()
	w.file = nil
	return w.open()
}

// due reports whether writing n more bytes at now requires a new file.
func (w *RotatingWriter) due(now time.Time, n int64) bool {
	info, err := w.file.Stat()
	if err != nil {
		return false
	}
	if info.Size() > 0 && info.Size()+n > w.cfg.MaxSize {
		return true
	}
	return w.cfg.Daily && !sameDay(now, w.started)
}

// rotate renames the current file to a timestamped backup, opens a fresh
// file and prunes backups.
func (w *RotatingWriter) rotate(now time.Time) error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing current file: %w", err)
	}
	w.file = nil

	if _, err := os.Stat(w.path); err == nil {
		if err := os.Rename(w.path, w.backupPath(now)); err != nil {
			return fmt.Errorf("renaming log file: %w", err)
		}
	}

	if err := w.open(); err != nil {
		return err
	}
	w.started = now

	w.prune(now)
	return nil
}

// backupPath returns an unused backup name for a rotation at now.
func (w *RotatingWriter) backupPath(now time.Time) string {
	ext := filepath.Ext(w.path)
	base := strings.TrimSuffix(w.path, ext)
	stamp := now.Format(backupTimeFormat)

	candidate := fmt.Sprintf("%s.%s%s", base, stamp, ext)
	for i := 2; ; i++ {
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s.%s-%d%s", base, stamp, i, ext)
	}
}

type backup struct {
	path    string
	modTime time.Time
}

// backups lists rotated files of w.path, newest first.
func (w *RotatingWriter) backups() []backup {
	dir := filepath.Dir(w.path)
	name := filepath.Base(w.path)
	ext := filepath.Ext(name)
	prefix := strings.TrimSuffix(name, ext) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var found []backup
	for _, entry := range entries {
		n := entry.Name()
		if entry.IsDir() || n == name || !strings.HasPrefix(n, prefix) || !strings.HasSuffix(n, ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, backup{path: filepath.Join(dir, n), modTime: info.ModTime()})
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].modTime.After(found[j].modTime)
	})
	return found
}

// prune removes backups beyond MaxBackups or older than MaxAge days.
func (w *RotatingWriter) prune(now time.Time) {
	maxAge := time.Duration(w.cfg.MaxAge) * 24 * time.Hour

	for i, b := range w.backups() {
		tooMany := w.cfg.MaxBackups > 0 && i >= w.cfg.MaxBackups
		tooOld := w.cfg.MaxAge > 0 && now.Sub(b.modTime) > maxAge
		if tooMany || tooOld {
			_ = os.Remove(b.path)
		}
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
