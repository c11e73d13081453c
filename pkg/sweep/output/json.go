package output

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/jamesainslie/optsweep/pkg/sweep/plan"
)

// document is the structure shared by the json and yaml formatters.
type document struct {
	Run      documentRun     `json:"run" yaml:"run"`
	Children []Child         `json:"children" yaml:"children"`
	Summary  documentSummary `json:"summary" yaml:"summary"`
}

type documentRun struct {
	ID          string      `json:"id" yaml:"id"`
	Program     string      `json:"program" yaml:"program"`
	StartedAt   time.Time   `json:"started_at" yaml:"started_at"`
	Duration    string      `json:"duration,omitempty" yaml:"duration,omitempty"`
	DryRun      bool        `json:"dry_run" yaml:"dry_run"`
	Interrupted bool        `json:"interrupted" yaml:"interrupted"`
	Params      plan.Params `json:"params" yaml:"params"`
}

type documentSummary struct {
	Points   int      `json:"points" yaml:"points"`
	Launched int      `json:"launched" yaml:"launched"`
	Failed   int      `json:"failed" yaml:"failed"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// buildDocument converts Result to the json/yaml output structure.
func buildDocument(r *Result) document {
	children := r.Children
	if children == nil {
		children = []Child{}
	}
	return document{
		Run: documentRun{
			ID:          r.ID,
			Program:     r.Program,
			StartedAt:   r.StartedAt,
			Duration:    formatDurationString(r.Duration),
			DryRun:      r.DryRun,
			Interrupted: r.Interrupted,
			Params:      r.Params,
		},
		Children: children,
		Summary: documentSummary{
			Points:   len(r.Children),
			Launched: r.Launched(),
			Failed:   r.Failed(),
			Warnings: r.Warnings,
		},
	}
}

// formatDurationString formats a duration as a string for encoded output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

// JSONFormatter formats output as a single indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocument(r))
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)

// jsonlChild is one line of JSONL output.
type jsonlChild struct {
	Run string `json:"run"`
	Child
}

// JSONLFormatter writes one compact JSON object per child, suitable for
// streaming through jq.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, c := range r.Children {
		data, err := json.Marshal(jsonlChild{Run: r.ID, Child: c})
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

// Ensure JSONLFormatter implements Formatter.
var _ Formatter = (*JSONLFormatter)(nil)
