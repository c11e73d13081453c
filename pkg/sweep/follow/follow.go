// Package follow prints lines appended to sweep log files as the children
// write them.
package follow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/optsweep/pkg/sweep/logging"
)

// DefaultPollInterval is how often files are re-read when no event arrives.
const DefaultPollInterval = time.Second

// Options configures a Follower.
type Options struct {
	// FromStart prints the existing content of each file before following.
	FromStart bool

	// NoPrefix omits the "[name] " prefix on each line.
	NoPrefix bool

	// PollInterval re-reads every file periodically. Zero means
	// DefaultPollInterval; negative disables polling.
	PollInterval time.Duration
}

type tailFile struct {
	path    string
	name    string
	offset  int64
	partial []byte
}

// Follower watches the directories containing a set of files and copies new
// lines to an io.Writer.
type Follower struct {
	out     io.Writer
	opts    Options
	watcher *fsnotify.Watcher
	files   map[string]*tailFile
	dirs    map[string]bool
	log     *logging.Logger
}

// New creates a Follower writing to out.
func New(out io.Writer, opts Options) (*Follower, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}

	return &Follower{
		out:     out,
		opts:    opts,
		watcher: fsw,
		files:   make(map[string]*tailFile),
		dirs:    make(map[string]bool),
		log:     logging.Get("follow"),
	}, nil
}

// Add starts tracking the given files. Files that do not exist yet are
// followed from their creation. Unless FromStart is set, existing content is
// skipped.
func (f *Follower) Add(paths ...string) error {
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		if _, ok := f.files[abs]; ok {
			continue
		}

		tf := &tailFile{path: abs, name: filepath.Base(abs)}
		if info, err := os.Stat(abs); err == nil && !f.opts.FromStart {
			tf.offset = info.Size()
		}
		f.files[abs] = tf

		dir := filepath.Dir(abs)
		if !f.dirs[dir] {
			if err := f.watcher.Add(dir); err != nil {
				return fmt.Errorf("watching %s: %w", dir, err)
			}
			f.dirs[dir] = true
		}
	}
	return nil
}

// Close releases the underlying watcher.
func (f *Follower) Close() error {
	return f.watcher.Close()
}

// Run copies new lines until ctx is cancelled. Pending partial lines are
// flushed on return.
func (f *Follower) Run(ctx context.Context) error {
	if f.opts.FromStart {
		for _, tf := range f.files {
			if err := f.drain(tf); err != nil {
				return err
			}
		}
	}

	var tick <-chan time.Time
	if f.opts.PollInterval > 0 {
		ticker := time.NewTicker(f.opts.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return f.flush()

		case event, ok := <-f.watcher.Events:
			if !ok {
				return f.flush()
			}
			tf, tracked := f.files[event.Name]
			if !tracked {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if err := f.drain(tf); err != nil {
					return err
				}
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				tf.offset = 0
				tf.partial = nil
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return f.flush()
			}
			f.log.Warn("watcher error", "error", err)

		case <-tick:
			for _, tf := range f.files {
				if err := f.drain(tf); err != nil {
					return err
				}
			}
		}
	}
}

// drain reads everything past the file's offset and emits complete lines.
func (f *Follower) drain(tf *tailFile) error {
	file, err := os.Open(tf.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		f.log.Debug("open failed", "path", tf.path, "error", err)
		return nil
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil //nolint:nilerr // File vanished between open and stat
	}
	if info.Size() < tf.offset {
		// Truncated by a new sweep over the same alpha
		tf.offset = 0
		tf.partial = nil
	}
	if info.Size() == tf.offset {
		return nil
	}

	if _, err := file.Seek(tf.offset, io.SeekStart); err != nil {
		return nil //nolint:nilerr // Retry on the next event
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil //nolint:nilerr // Retry on the next event
	}
	tf.offset += int64(len(data))

	buf := append(tf.partial, data...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		if err := f.emit(tf, buf[:i]); err != nil {
			return err
		}
		buf = buf[i+1:]
	}
	tf.partial = append([]byte(nil), buf...)
	return nil
}

func (f *Follower) flush() error {
	for _, tf := range f.files {
		if len(tf.partial) == 0 {
			continue
		}
		if err := f.emit(tf, tf.partial); err != nil {
			return err
		}
		tf.partial = nil
	}
	return nil
}

func (f *Follower) emit(tf *tailFile, line []byte) error {
	var err error
	if f.opts.NoPrefix {
		_, err = fmt.Fprintf(f.out, "%s\n", line)
	} else {
		_, err = fmt.Fprintf(f.out, "[%s] %s\n", tf.name, line)
	}
	return err
}

// Follow prints lines appended to paths, prefixed with the file name, until
// ctx is cancelled.
func Follow(ctx context.Context, paths []string, w io.Writer) error {
	return FollowWithOptions(ctx, paths, w, Options{})
}

// FollowWithOptions is Follow with explicit options.
func FollowWithOptions(ctx context.Context, paths []string, w io.Writer, opts Options) error {
	f, err := New(w, opts)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Add(paths...); err != nil {
		return err
	}
	return f.Run(ctx)
}
