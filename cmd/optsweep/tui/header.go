package tui

import (
	"fmt"
)

// renderHeader renders the application name and child counts.
func renderHeader(title string, total, running int, loading bool, spin string) string {
	header := " " + titleStyle.Render("OPTSWEEP TOP")
	if title != "" {
		header += mutedTextStyle.Render("  " + title)
	}

	header += mutedTextStyle.Render(fmt.Sprintf("  %d children  •  ", total))
	if running > 0 {
		header += successTextStyle.Render(fmt.Sprintf("● %d running", running))
	} else {
		header += mutedTextStyle.Render("0 running")
	}

	if loading {
		header += " " + spin
	}
	return header
}
