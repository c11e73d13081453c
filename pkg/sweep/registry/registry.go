// Package registry provides a Badger DB-backed index of the children started
// by each sweep, so later invocations can inspect, follow or signal them.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jamesainslie/optsweep/pkg/sweep/launcher"
	"github.com/jamesainslie/optsweep/pkg/sweep/logging"
)

// Key prefixes for different data types
const (
	prefixRun   = "r:" // r:<run id> -> Run
	prefixChild = "c:" // c:<run id>/<index> -> Child
	prefixMeta  = "m:" // Metadata (schema)
)

var (
	// ErrRunNotFound is returned when no run matches an id.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousID is returned when an id prefix matches more than one run.
	ErrAmbiguousID = errors.New("ambiguous run id")
)

// Run is one recorded sweep invocation.
type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Program   string    `json:"program"`
	Children  int       `json:"children"`
}

// Child is one started optimizer process.
type Child struct {
	RunID     string    `json:"run_id"`
	Index     int       `json:"index"`
	Alpha     float64   `json:"alpha"`
	AlphaEnd  float64   `json:"alpha_end"`
	Args      []string  `json:"args"`
	PID       int       `json:"pid"`
	LogPath   string    `json:"log_path"`
	Program   string    `json:"program"`
	StartedAt time.Time `json:"started_at"`
}

// Registry is the child index backed by Badger DB.
type Registry struct {
	db  *badger.DB
	log *logging.Logger
}

// Open opens or creates a registry at the given directory.
func Open(path string) (*Registry, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger's own logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening registry %s: %w", path, err)
	}

	r := &Registry{db: db, log: logging.Get("registry")}
	if err := r.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// Close closes the registry.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Record implements launcher.Recorder.
func (r *Registry) Record(report *launcher.Report) error {
	return r.PutRun(report)
}

// PutRun stores a run and every child that was started. Runs that started
// nothing are not stored.
func (r *Registry) PutRun(report *launcher.Report) error {
	if report == nil || report.ID == "" {
		return errors.New("report has no id")
	}

	var children []Child
	for _, res := range report.Results {
		if !res.OK() || res.PID == 0 {
			continue
		}
		children = append(children, Child{
			RunID:     report.ID,
			Index:     res.Point.Index,
			Alpha:     res.Point.Alpha,
			AlphaEnd:  res.Point.AlphaEnd,
			Args:      res.Args,
			PID:       res.PID,
			LogPath:   res.LogLocation(),
			Program:   report.Program,
			StartedAt: report.StartedAt,
		})
	}
	if len(children) == 0 {
		r.log.Debug("no children to register", "run", report.ID)
		return nil
	}

	run := Run{
		ID:        report.ID,
		StartedAt: report.StartedAt,
		Program:   report.Program,
		Children:  len(children),
	}

	wb := r.db.NewWriteBatch()
	defer wb.Cancel()

	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	if err := wb.Set(runKey(run.ID), data); err != nil {
		return err
	}

	for _, c := range children {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if err := wb.Set(childKey(c.RunID, c.Index), data); err != nil {
			return err
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("writing run %s: %w", run.ID, err)
	}

	r.log.Debug("run registered", "run", run.ID, "children", len(children))
	return nil
}

// Runs returns all runs, newest first.
func (r *Registry) Runs() ([]Run, error) {
	var runs []Run
	err := r.scan(prefixRun, func(val []byte) error {
		var run Run
		if err := json.Unmarshal(val, &run); err != nil {
			return nil // Skip invalid entries
		}
		runs = append(runs, run)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

// ResolveRun returns the run whose id equals id or uniquely starts with it.
func (r *Registry) ResolveRun(id string) (*Run, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}

	runs, err := r.Runs()
	if err != nil {
		return nil, err
	}

	var matches []Run
	for _, run := range runs {
		if run.ID == id {
			return &run, nil
		}
		if strings.HasPrefix(run.ID, id) {
			matches = append(matches, run)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s matches %d runs", ErrAmbiguousID, id, len(matches))
	}
}

// Latest returns the most recent run.
func (r *Registry) Latest() (*Run, error) {
	runs, err := r.Runs()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[0], nil
}

// Children returns the children of one run in sweep order.
func (r *Registry) Children(runID string) ([]Child, error) {
	return r.children(prefixChild + runID + "/")
}

// AllChildren returns every registered child, grouped by run in key order.
func (r *Registry) AllChildren() ([]Child, error) {
	return r.children(prefixChild)
}

func (r *Registry) children(prefix string) ([]Child, error) {
	children := []Child{}
	err := r.scan(prefix, func(val []byte) error {
		var c Child
		if err := json.Unmarshal(val, &c); err != nil {
			return nil // Skip invalid entries
		}
		children = append(children, c)
		return nil
	})
	return children, err
}

// Forget removes a run and its children. It returns the number of children
// removed.
func (r *Registry) Forget(runID string) (int, error) {
	removed := 0
	err := r.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var keysToDelete [][]byte
		prefix := []byte(prefixChild + runID + "/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keysToDelete = append(keysToDelete, it.Item().KeyCopy(nil))
		}

		for _, key := range keysToDelete {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		removed = len(keysToDelete)
		return txn.Delete(runKey(runID))
	})
	if err != nil {
		return 0, fmt.Errorf("forgetting run %s: %w", runID, err)
	}
	return removed, nil
}

// Prune forgets every run whose children have all exited and returns the ids
// of the forgotten runs.
func (r *Registry) Prune() ([]string, error) {
	runs, err := r.Runs()
	if err != nil {
		return nil, err
	}

	var pruned []string
	for _, run := range runs {
		children, err := r.Children(run.ID)
		if err != nil {
			return pruned, err
		}
		alive := false
		for _, c := range children {
			if Running(c) {
				alive = true
				break
			}
		}
		if alive {
			continue
		}
		if _, err := r.Forget(run.ID); err != nil {
			return pruned, err
		}
		pruned = append(pruned, run.ID)
	}
	return pruned, nil
}

// scan calls fn with the value of every key under prefix.
func (r *Registry) scan(prefix string, fn func(val []byte) error) error {
	return r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

func runKey(runID string) []byte {
	return []byte(prefixRun + runID)
}

// childKey zero-pads the index so keys sort in sweep order.
func childKey(runID string, index int) []byte {
	return []byte(fmt.Sprintf("%s%s/%06d", prefixChild, runID, index))
}
