package output

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette shared by the pretty formatter.
const (
	colorAccent = lipgloss.Color("39")
	colorGood   = lipgloss.Color("42")
	colorWarn   = lipgloss.Color("214")
	colorBad    = lipgloss.Color("196")
	colorMuted  = lipgloss.Color("245")
	colorText   = lipgloss.Color("255")
)

type theme struct {
	header lipgloss.Style // box around run metadata
	footer lipgloss.Style // box around the launch summary

	label lipgloss.Style
	value lipgloss.Style
	muted lipgloss.Style
	alpha lipgloss.Style
	warn  lipgloss.Style
	bad   lipgloss.Style

	column lipgloss.Style
	status map[string]lipgloss.Style
}

func newTheme() theme {
	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return theme{
		header: box.BorderForeground(colorAccent).MarginBottom(1),
		footer: box.BorderForeground(colorMuted).MarginTop(1),
		label:  fg(colorMuted),
		value:  fg(colorText),
		muted:  fg(colorMuted),
		alpha:  fg(colorAccent).Bold(true),
		warn:   fg(colorWarn),
		bad:    fg(colorBad),
		column: fg(colorMuted).Bold(true).PaddingRight(2),
		status: map[string]lipgloss.Style{
			StatusStarted: fg(colorGood),
			StatusFailed:  fg(colorBad),
			StatusPlanned: fg(colorWarn),
		},
	}
}

var styles = newTheme()

// pair renders "label value" with the label muted.
func (t theme) pair(label string, value lipgloss.Style, v string) string {
	return t.label.Render(label) + " " + value.Render(v)
}
