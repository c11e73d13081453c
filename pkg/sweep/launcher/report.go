package launcher

import (
	"time"

	"github.com/jamesainslie/optsweep/pkg/sweep/plan"
)

// Result is the outcome of launching a single sweep point.
type Result struct {
	Point plan.Point `json:"point" yaml:"point"`
	Args  []string   `json:"args" yaml:"args"`

	// LogFile is the absolute path of the child's log, resolved against the
	// launcher's working directory. Empty in a dry run.
	LogFile string `json:"log_file,omitempty" yaml:"log_file,omitempty"`

	// PID is zero when the child was not started.
	PID int `json:"pid,omitempty" yaml:"pid,omitempty"`

	// Err is the spawn error, if any. Error carries its text for encoding.
	Err   error  `json:"-" yaml:"-"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// OK reports whether the child was started.
func (r Result) OK() bool {
	return r.Err == nil && r.Error == ""
}

// LogLocation returns LogFile, or the planned path when it was not resolved.
func (r Result) LogLocation() string {
	if r.LogFile != "" {
		return r.LogFile
	}
	return r.Point.LogPath
}

func (r *Result) setErr(err error) {
	r.Err = err
	r.Error = err.Error()
}

// Report summarizes one sweep invocation.
type Report struct {
	ID          string        `json:"id" yaml:"id"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	Program     string        `json:"program" yaml:"program"`
	Params      plan.Params   `json:"params" yaml:"params"`
	DryRun      bool          `json:"dry_run" yaml:"dry_run"`
	Interrupted bool          `json:"interrupted" yaml:"interrupted"`
	Results     []Result      `json:"results" yaml:"results"`
}

// Launched counts the children that were started.
func (r *Report) Launched() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() && res.PID != 0 {
			n++
		}
	}
	return n
}

// Failed counts the points whose child could not be started.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK() {
			n++
		}
	}
	return n
}

// PIDs returns the PIDs of started children in sweep order.
func (r *Report) PIDs() []int {
	pids := make([]int, 0, len(r.Results))
	for _, res := range r.Results {
		if res.PID != 0 {
			pids = append(pids, res.PID)
		}
	}
	return pids
}
