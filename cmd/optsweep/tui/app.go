package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/optsweep/pkg/sweep/plan"
	"github.com/jamesainslie/optsweep/pkg/sweep/registry"
)

// DefaultInterval is how often the child list is reloaded.
const DefaultInterval = time.Second

// Loader returns the current state of the children to display.
type Loader func() ([]registry.Status, error)

// Options configures the TUI application.
type Options struct {
	// Load is called on every refresh.
	Load Loader

	// Interval between refreshes. Zero means DefaultInterval.
	Interval time.Duration

	// Title is shown next to the application name, e.g. a run id.
	Title string
}

// Model is the Bubble Tea model for the live child view.
type Model struct {
	options  Options
	table    table.Model
	spinner  spinner.Model
	statuses []registry.Status
	err      error
	loaded   time.Time
	loading  bool

	// Window dimensions
	width  int
	height int
}

// refreshMsg carries the result of a Loader call.
type refreshMsg struct {
	statuses []registry.Status
	err      error
	at       time.Time
}

// tickMsg triggers the next refresh.
type tickMsg time.Time

var columns = []table.Column{
	{Title: "ALPHA", Width: 6},
	{Title: "END", Width: 6},
	{Title: "PID", Width: 8},
	{Title: "STATE", Width: 8},
	{Title: "LOG SIZE", Width: 10},
	{Title: "LAST WRITE", Width: 16},
	{Title: "LOG", Width: 30},
}

// NewModel creates a new TUI model with the given options.
func NewModel(opts Options) Model {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = titleStyle

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles())

	return Model{
		options: opts,
		table:   t,
		spinner: s,
		loading: true,
		width:   80,
		height:  24,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

// load runs the loader in a command.
func (m Model) load() tea.Cmd {
	loader := m.options.Load
	return func() tea.Msg {
		if loader == nil {
			return refreshMsg{at: time.Now()}
		}
		statuses, err := loader()
		return refreshMsg{statuses: statuses, err: err, at: time.Now()}
	}
}

// tick schedules the next refresh.
func (m Model) tick() tea.Cmd {
	return tea.Tick(m.options.Interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(m.height-8, 3))
		m.table.SetWidth(max(m.width-4, 20))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.loading = true
		return m, m.load()

	case refreshMsg:
		m.loading = false
		m.loaded = msg.at
		m.err = msg.err
		if msg.err == nil {
			m.statuses = msg.statuses
			m.table.SetRows(rows(msg.statuses))
		}
		return m, m.tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKey handles keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.loading = true
		return m, m.load()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// rows converts statuses to table rows.
func rows(statuses []registry.Status) []table.Row {
	out := make([]table.Row, 0, len(statuses))
	for _, st := range statuses {
		state := "exited"
		if st.Alive {
			state = "running"
		}
		last := "-"
		if st.LogModTime != 0 {
			last = humanize.Time(time.Unix(st.LogModTime, 0))
		}
		out = append(out, table.Row{
			plan.FormatDecimal(st.Alpha),
			plan.FormatDecimal(st.AlphaEnd),
			strconv.Itoa(st.PID),
			state,
			humanize.IBytes(uint64(st.LogSize)),
			last,
			st.LogPath,
		})
	}
	return out
}

// alive counts running children.
func alive(statuses []registry.Status) int {
	n := 0
	for _, st := range statuses {
		if st.Alive {
			n++
		}
	}
	return n
}

// View renders the current state.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(renderHeader(m.options.Title, len(m.statuses), alive(m.statuses), m.loading, m.spinner.View()))
	b.WriteString("\n\n")

	if len(m.statuses) == 0 && !m.loaded.IsZero() {
		b.WriteString(mutedTextStyle.Render("No children recorded. Run 'optsweep' to launch a sweep."))
	} else {
		b.WriteString(m.table.View())
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorTextStyle.Render(fmt.Sprintf("Refresh failed: %v", m.err)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(renderKeyHints("↑/↓", "move", "r", "refresh", "q", "quit"))

	return outerBoxStyle.Render(b.String())
}

// Run starts the TUI application.
func Run(opts Options) error {
	model := NewModel(opts)

	p := tea.NewProgram(model, tea.WithAltScreen())

	_, err := p.Run()
	return err
}
