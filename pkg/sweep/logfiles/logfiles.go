// Package logfiles discovers the output files left by sweeps.
package logfiles

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/optsweep/pkg/sweep/plan"
)

// File is a sweep log file found on disk.
type File struct {
	Path    string    `json:"path" yaml:"path"`
	Alpha   float64   `json:"alpha" yaml:"alpha"`
	Size    int64     `json:"size" yaml:"size"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
}

// Options configures Find.
type Options struct {
	// Root is the directory to search. Empty means the working directory.
	Root string

	// Prefix and Suffix select log names. Empty means the sweep defaults.
	Prefix string
	Suffix string

	// Recursive descends into subdirectories.
	Recursive bool
}

// Find returns the sweep log files under root, sorted by alpha.
func Find(root, prefix, suffix string) ([]File, error) {
	return FindContext(context.Background(), Options{Root: root, Prefix: prefix, Suffix: suffix, Recursive: true})
}

// FindContext walks opts.Root with fastwalk and collects every regular file
// whose name parses as <prefix><alpha><suffix>. Unreadable entries are
// skipped.
func FindContext(ctx context.Context, opts Options) ([]File, error) {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.Prefix == "" {
		opts.Prefix = plan.DefaultLogPrefix
	}
	if opts.Suffix == "" {
		opts.Suffix = plan.DefaultLogSuffix
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, os.ErrInvalid
	}

	var (
		mu    sync.Mutex
		files []File
	)

	conf := fastwalk.Config{
		Follow: false, // Don't follow symlinks.
	}

	walkErr := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return fastwalk.ErrSkipFiles
		default:
		}

		if err != nil {
			return nil //nolint:nilerr // Skip entries with errors
		}

		if d.IsDir() {
			if path != root && !opts.Recursive {
				return fastwalk.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		alpha, ok := plan.ParseLogName(opts.Prefix, opts.Suffix, d.Name())
		if !ok {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr // File removed mid-walk
		}

		mu.Lock()
		files = append(files, File{Path: path, Alpha: alpha, Size: fi.Size(), ModTime: fi.ModTime()})
		mu.Unlock()
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, fastwalk.ErrSkipFiles) {
		return nil, walkErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Alpha != files[j].Alpha {
			return files[i].Alpha < files[j].Alpha
		}
		return files[i].Path < files[j].Path
	})

	if files == nil {
		files = []File{}
	}
	return files, nil
}

// TotalSize sums the sizes of files.
func TotalSize(files []File) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}
