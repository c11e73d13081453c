// Package manifest keeps the history of sweep invocations as one JSON file
// per run.
package manifest

import (
	"time"

	"github.com/jamesainslie/optsweep/pkg/sweep/plan"
)

// Entry represents a single recorded sweep.
type Entry struct {
	ID          string        `json:"id" yaml:"id"`
	Timestamp   time.Time     `json:"timestamp" yaml:"timestamp"`
	Program     string        `json:"program" yaml:"program"`
	Params      plan.Params   `json:"params" yaml:"params"`
	Interrupted bool          `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	Children    []ChildRecord `json:"children" yaml:"children"`
	Summary     Summary       `json:"summary" yaml:"summary"`
}

// ChildRecord represents one sweep point in the history.
type ChildRecord struct {
	Index    int      `json:"index" yaml:"index"`
	Alpha    float64  `json:"alpha" yaml:"alpha"`
	AlphaEnd float64  `json:"alpha_end" yaml:"alpha_end"`
	Args     []string `json:"args" yaml:"args"`
	LogPath  string   `json:"log_path" yaml:"log_path"`
	PID      int      `json:"pid,omitempty" yaml:"pid,omitempty"` // Zero when the child did not start
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary contains run totals.
type Summary struct {
	Launched int `json:"launched" yaml:"launched"`
	Failed   int `json:"failed" yaml:"failed"`
}
