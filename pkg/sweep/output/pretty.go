package output

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

// PrettyFormatter renders a sweep report for a terminal.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.header(r))
	w.WriteString("\n")
	w.WriteString(f.children(r))
	w.WriteString(f.footer(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(styles.warn.Bold(true).Render("Warnings:"))
		w.WriteString("\n")
		for _, warning := range r.Warnings {
			w.WriteString(styles.warn.Render("  " + warning))
			w.WriteString("\n")
		}
	}

	return nil
}

func (f *PrettyFormatter) header(r *Result) string {
	info := []string{styles.pair("Program:", styles.value, r.Program)}
	if !r.StartedAt.IsZero() {
		info = append(info, styles.pair("Started:", styles.muted, humanize.Time(r.StartedAt)))
	}

	lines := []string{
		styles.pair("Run:", styles.value, r.ID),
		strings.Join(info, "  "),
	}
	notice := styles.warn.Bold(true)
	if r.DryRun {
		lines = append(lines, notice.Render("Dry run: nothing was started"))
	}
	if r.Interrupted {
		lines = append(lines, notice.Render("Sweep interrupted before all points were launched"))
	}

	return styles.header.Render(strings.Join(lines, "\n"))
}

// children renders one row per sweep point followed by the spawn errors.
func (f *PrettyFormatter) children(r *Result) string {
	if len(r.Children) == 0 {
		return styles.muted.Render("  No sweep points in range\n")
	}

	rows := make([][]string, 0, len(r.Children))
	for _, c := range r.Children {
		rows = append(rows, []string{c.Alpha, c.AlphaEnd, pidString(c.PID), c.Status, c.LogPath})
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		Headers("ALPHA", "END", "PID", "STATUS", "LOG").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.column
			}
			cell := styles.value.PaddingRight(2)
			switch col {
			case 0:
				cell = styles.alpha.PaddingRight(2)
			case 2:
				cell = cell.Align(lipgloss.Right)
			case 3:
				if s, ok := styles.status[r.Children[row].Status]; ok {
					cell = s.PaddingRight(2)
				}
			}
			return cell
		})

	var sb strings.Builder
	sb.WriteString(t.Render())
	sb.WriteString("\n")
	for _, c := range r.Children {
		if c.Error != "" {
			sb.WriteString("  " + styles.bad.Render(fmt.Sprintf("alpha %s: %s", c.Alpha, c.Error)) + "\n")
		}
	}
	return sb.String()
}

func (f *PrettyFormatter) footer(r *Result) string {
	var parts []string

	if r.DryRun {
		parts = append(parts, styles.pair("Planned:", styles.value, strconv.Itoa(len(r.Children))))
	} else {
		failed := styles.muted
		if r.Failed() > 0 {
			failed = styles.bad
		}
		parts = append(parts,
			styles.pair("Launched:", styles.status[StatusStarted], strconv.Itoa(r.Launched())),
			styles.pair("Failed:", failed, strconv.Itoa(r.Failed())),
		)
	}

	parts = append(parts,
		styles.pair("Took:", styles.value, formatDuration(r.Duration)),
		styles.muted.Render("Use optsweep tail to follow the logs"),
	)

	return styles.footer.Render(strings.Join(parts, "  "))
}

func pidString(pid int) string {
	if pid == 0 {
		return "-"
	}
	return strconv.Itoa(pid)
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Round(time.Millisecond).Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
