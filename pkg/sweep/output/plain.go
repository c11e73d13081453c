package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// PlainFormatter formats output as a simple aligned table without styling.
// It produces plain text output suitable for scripting and piping.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := tw.Write([]byte("ALPHA\tEND\tPID\tSTATUS\tLOG\n")); err != nil {
		return err
	}

	for _, c := range r.Children {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Alpha, c.AlphaEnd, pidString(c.PID), c.Status, c.LogPath); err != nil {
			return err
		}
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	// Errors go below the table so columns stay aligned.
	for _, c := range r.Children {
		if c.Error != "" {
			fmt.Fprintf(w, "alpha %s: %s\n", c.Alpha, c.Error)
		}
	}
	return nil
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
