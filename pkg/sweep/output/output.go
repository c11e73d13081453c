// Package output provides formatters for displaying sweep launch results
// in various output formats (pretty, plain, json, yaml, etc.).
//
// The package uses a registry pattern to allow registration of multiple
// formatter implementations that can be selected at runtime.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, output.FromReport(report)); err != nil {
//	    return err
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jamesainslie/optsweep/pkg/sweep/launcher"
	"github.com/jamesainslie/optsweep/pkg/sweep/plan"
)

// Child states shown by the formatters.
const (
	StatusStarted = "started"
	StatusFailed  = "failed"
	StatusPlanned = "planned" // Dry run
)

// Child is one sweep point prepared for display.
type Child struct {
	Index int `json:"index" yaml:"index"`

	// Alpha and AlphaEnd are the exact argument strings passed to the
	// optimizer.
	Alpha    string `json:"alpha" yaml:"alpha"`
	AlphaEnd string `json:"alpha_end" yaml:"alpha_end"`

	Args    []string `json:"args" yaml:"args"`
	PID     int      `json:"pid,omitempty" yaml:"pid,omitempty"`
	LogPath string   `json:"log_path" yaml:"log_path"`
	Status  string   `json:"status" yaml:"status"`
	Error   string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// CommandLine renders the child's invocation.
func (c Child) CommandLine(program string) string {
	return fmt.Sprintf("%s %s > %s", program, strings.Join(c.Args, " "), c.LogPath)
}

// Result contains the complete output data for formatting.
type Result struct {
	ID          string        `json:"id" yaml:"id"`
	Program     string        `json:"program" yaml:"program"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	DryRun      bool          `json:"dry_run" yaml:"dry_run"`
	Interrupted bool          `json:"interrupted" yaml:"interrupted"`
	Params      plan.Params   `json:"params" yaml:"params"`
	Children    []Child       `json:"children" yaml:"children"`

	// Warnings contains problems that did not stop the sweep, such as a
	// history write failure.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// FromReport converts a launch report for display.
func FromReport(rep *launcher.Report, warnings ...string) *Result {
	r := &Result{
		ID:          rep.ID,
		Program:     rep.Program,
		StartedAt:   rep.StartedAt,
		Duration:    rep.Duration,
		DryRun:      rep.DryRun,
		Interrupted: rep.Interrupted,
		Params:      rep.Params,
		Children:    make([]Child, 0, len(rep.Results)),
		Warnings:    warnings,
	}

	for _, res := range rep.Results {
		c := Child{
			Index:    res.Point.Index,
			Alpha:    plan.FormatDecimal(res.Point.Alpha),
			AlphaEnd: plan.FormatDecimal(res.Point.AlphaEnd),
			Args:     res.Args,
			PID:      res.PID,
			LogPath:  res.Point.LogPath,
			Error:    res.Error,
		}
		switch {
		case !res.OK():
			c.Status = StatusFailed
		case rep.DryRun:
			c.Status = StatusPlanned
		default:
			c.Status = StatusStarted
		}
		r.Children = append(r.Children, c)
	}

	return r
}

// Launched counts started children.
func (r *Result) Launched() int {
	return r.count(StatusStarted)
}

// Failed counts children that could not be started.
func (r *Result) Failed() int {
	return r.count(StatusFailed)
}

func (r *Result) count(status string) int {
	n := 0
	for _, c := range r.Children {
		if c.Status == status {
			n++
		}
	}
	return n
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
