// Package launcher runs a parameter sweep by starting one detached optimizer
// process per sweep point.
//
// The launcher never waits on a child. A point whose process cannot be
// started is reported and skipped; the sweep always runs to completion.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/optsweep/pkg/sweep/logging"
	"github.com/jamesainslie/optsweep/pkg/sweep/plan"
)

// Defaults for the external program invocation.
const (
	DefaultProgram  = "./optimization"
	DefaultConstArg = "1"

	// DefaultNice is the lowest scheduling priority. The kernel clamps it to
	// its own maximum.
	DefaultNice = 20
)

// ErrNoProgram is returned when no program path is configured.
var ErrNoProgram = errors.New("no optimizer program configured")

// Request describes one child process to start.
type Request struct {
	Program string
	Args    []string
	LogPath string
	Nice    int
}

// Spawner starts a child process and returns its PID without waiting for it.
type Spawner interface {
	Spawn(ctx context.Context, req Request) (int, error)
}

// Recorder persists a finished launch report.
type Recorder interface {
	Record(report *Report) error
}

// Options configures a Launcher.
type Options struct {
	// Program is the optimizer executable. Empty means DefaultProgram.
	Program string

	// ConstArg is the fixed third argument. Empty means DefaultConstArg.
	ConstArg string

	// Nice is the niceness applied to every child.
	Nice int

	// Spawner starts children. Nil means an ExecSpawner; the child inherits
	// Stderr when it is an *os.File and has its stderr discarded otherwise.
	Spawner Spawner

	// Stderr receives per-point failure reports. Nil means os.Stderr.
	Stderr io.Writer

	// DryRun computes the report without starting anything.
	DryRun bool

	// Recorders are called once after the sweep, in order.
	Recorders []Recorder
}

// Launcher starts the children of a sweep.
type Launcher struct {
	opts   Options
	logger *logging.Logger
}

// New creates a Launcher, filling unset options with defaults.
func New(opts Options) *Launcher {
	if opts.Program == "" {
		opts.Program = DefaultProgram
	}
	if opts.ConstArg == "" {
		opts.ConstArg = DefaultConstArg
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Spawner == nil {
		spawner := &ExecSpawner{}
		if f, ok := opts.Stderr.(*os.File); ok && f != nil {
			spawner.Stderr = f
		}
		opts.Spawner = spawner
	}

	return &Launcher{
		opts:   opts,
		logger: logging.Get("launcher"),
	}
}

// Args returns the positional arguments passed to the child for p.
func (l *Launcher) Args(p plan.Point) []string {
	return []string{
		plan.FormatDecimal(p.Alpha),
		plan.FormatDecimal(p.AlphaEnd),
		l.opts.ConstArg,
	}
}

// Run starts one child per point of params. It returns an error only when
// the sweep cannot begin at all; per-point failures are in the report.
// Cancelling ctx stops the sweep before the next spawn.
func (l *Launcher) Run(ctx context.Context, params plan.Params) (*Report, error) {
	if l.opts.Program == "" {
		return nil, ErrNoProgram
	}

	points, err := plan.Generate(params)
	if err != nil {
		return nil, fmt.Errorf("planning sweep: %w", err)
	}

	started := time.Now()
	report := &Report{
		ID:        NewRunID(started),
		StartedAt: started,
		Program:   l.opts.Program,
		Params:    params,
		DryRun:    l.opts.DryRun,
		Results:   make([]Result, 0, len(points)),
	}

	l.logger.Info("sweep started", "run", report.ID, "program", l.opts.Program, "points", len(points))

	for _, pt := range points {
		if err := ctx.Err(); err != nil {
			l.logger.Warn("sweep interrupted", "run", report.ID, "remaining", len(points)-len(report.Results))
			report.Interrupted = true
			break
		}
		report.Results = append(report.Results, l.launch(ctx, pt))
	}

	report.Duration = time.Since(started)
	l.logger.Info("sweep finished",
		"run", report.ID,
		"launched", report.Launched(),
		"failed", report.Failed(),
		"duration", report.Duration,
	)

	if !l.opts.DryRun {
		for _, rec := range l.opts.Recorders {
			if err := rec.Record(report); err != nil {
				l.logger.Warn("recording sweep failed", "run", report.ID, "error", err)
			}
		}
	}

	return report, nil
}

// launch starts the child for a single point.
func (l *Launcher) launch(ctx context.Context, pt plan.Point) Result {
	res := Result{
		Point: pt,
		Args:  l.Args(pt),
	}

	if l.opts.DryRun {
		l.logger.Debug("dry run", "alpha", pt.Alpha, "args", res.Args, "log", pt.LogPath)
		return res
	}

	// Later invocations read the log from other directories.
	if abs, err := filepath.Abs(pt.LogPath); err == nil {
		res.LogFile = abs
	}

	pid, err := l.opts.Spawner.Spawn(ctx, Request{
		Program: l.opts.Program,
		Args:    res.Args,
		LogPath: pt.LogPath,
		Nice:    l.opts.Nice,
	})
	if err != nil {
		res.setErr(err)
		alpha := plan.FormatDecimal(pt.Alpha)
		l.logger.Error("spawn failed", "alpha", alpha, "error", err)
		fmt.Fprintf(l.opts.Stderr, "optsweep: alpha %s: %v\n", alpha, err)
		return res
	}

	res.PID = pid
	l.logger.Info("child started", "alpha", pt.Alpha, "pid", pid, "log", res.LogLocation())
	return res
}

// NewRunID returns a sortable unique run identifier such as
// "sweep-2024-06-15T10-30-00-1a2b3c4d".
func NewRunID(t time.Time) string {
	return fmt.Sprintf("sweep-%s-%s", t.UTC().Format("2006-01-02T15-04-05"), uuid.NewString()[:8])
}
