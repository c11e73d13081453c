package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jamesainslie/optsweep/pkg/sweep/launcher"
	"github.com/jamesainslie/optsweep/pkg/sweep/logging"
)

var (
	// ErrRunNotFound is returned when no entry matches an id.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousID is returned when an id prefix matches more than one entry.
	ErrAmbiguousID = errors.New("ambiguous run id")

	// ErrInvalidID is returned for ids that could name a file outside the
	// history directory.
	ErrInvalidID = errors.New("invalid run id")
)

// Manifest manages run history in a directory.
type Manifest struct {
	dir string
	mu  sync.Mutex
}

// New creates a new Manifest with the given directory.
// The directory is not created until EnsureDir or LogRun is called.
func New(dir string) (*Manifest, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	return &Manifest{dir: dir}, nil
}

// Dir returns the history directory.
func (m *Manifest) Dir() string {
	return m.dir
}

// EnsureDir creates the history directory if it does not exist.
func (m *Manifest) EnsureDir() error {
	return os.MkdirAll(m.dir, 0o755)
}

// Record implements launcher.Recorder.
func (m *Manifest) Record(report *launcher.Report) error {
	entry, err := m.LogRun(report)
	if err != nil {
		return err
	}
	logging.Get("history").Debug("run recorded", "id", entry.ID, "dir", m.dir)
	return nil
}

// LogRun converts a launch report to an entry and persists it.
func (m *Manifest) LogRun(report *launcher.Report) (*Entry, error) {
	if report == nil {
		return nil, errors.New("nil report")
	}
	if report.ID == "" {
		return nil, errors.New("report has no id")
	}

	entry := FromReport(report)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	if err := m.writeEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to write history entry: %w", err)
	}

	return entry, nil
}

// FromReport builds a history entry from a launch report.
func FromReport(report *launcher.Report) *Entry {
	children := make([]ChildRecord, 0, len(report.Results))
	for _, res := range report.Results {
		children = append(children, ChildRecord{
			Index:    res.Point.Index,
			Alpha:    res.Point.Alpha,
			AlphaEnd: res.Point.AlphaEnd,
			Args:     res.Args,
			LogPath:  res.LogLocation(),
			PID:      res.PID,
			Error:    res.Error,
		})
	}

	ts := report.StartedAt.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return &Entry{
		ID:          report.ID,
		Timestamp:   ts,
		Program:     report.Program,
		Params:      report.Params,
		Interrupted: report.Interrupted,
		Children:    children,
		Summary: Summary{
			Launched: report.Launched(),
			Failed:   report.Failed(),
		},
	}
}

// writeEntry writes an entry to a JSON file in the history directory.
func (m *Manifest) writeEntry(entry *Entry) error {
	filePath := filepath.Join(m.dir, entry.ID+".json")

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	// Write atomically using a temp file and rename
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// List returns all entries sorted by timestamp descending (newest first).
// If limit is 0 or negative, all entries are returned.
func (m *Manifest) List(limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.readAll()
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

// Get retrieves an entry by its exact id or a unique id prefix.
func (m *Manifest) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("run id cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, err := m.readEntryFile(id + ".json"); err == nil {
		return entry, nil
	}

	entries, err := m.readAll()
	if err != nil {
		return nil, err
	}

	var matches []Entry
	for _, e := range entries {
		if e.ID == id {
			return &e, nil
		}
		if strings.HasPrefix(e.ID, id) {
			matches = append(matches, e)
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

// readAll parses every entry file. Unreadable files are skipped.
func (m *Manifest) readAll() ([]Entry, error) {
	files, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	entries := []Entry{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}

		entry, err := m.readEntryFile(f.Name())
		if err != nil {
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// readEntryFile reads and parses an entry from a JSON file.
func (m *Manifest) readEntryFile(filename string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}

	return &entry, nil
}

// Cleanup removes entries older than retentionDays and returns how many
// were removed.
func (m *Manifest) Cleanup(retentionDays int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	files, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read history directory: %w", err)
	}

	removed := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}

		info, err := f.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(m.dir, f.Name())); err != nil {
				logging.Get("history").Warn("failed to remove entry", "file", f.Name(), "error", err)
				continue
			}
			removed++
		}
	}

	return removed, nil
}
