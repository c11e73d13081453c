package output

import (
	"bytes"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

// defaultTemplate prints each invocation as a shell command line.
const defaultTemplate = `{{range .Children}}{{cmdline $.Program .}}
{{end}}`

// TemplateFormatter renders a report through a user-supplied text/template.
// The template sees the Result plus Launched and Failed counts.
type TemplateFormatter struct {
	mu     sync.Mutex
	source string
	parsed *template.Template
}

// NewTemplateFormatter returns a formatter for the template text src. The
// text is parsed on first use.
func NewTemplateFormatter(src string) *TemplateFormatter {
	return &TemplateFormatter{source: src}
}

// SetTemplate replaces the template text.
func (f *TemplateFormatter) SetTemplate(src string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.source, f.parsed = src, nil
}

var templateFuncs = template.FuncMap{
	"date": func(t time.Time, layout string) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(layout)
	},
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return humanize.Time(t)
	},
	"bytes":    func(n int64) string { return humanize.IBytes(uint64(n)) },
	"join":     strings.Join,
	"cmdline":  func(program string, c Child) string { return c.CommandLine(program) },
	"duration": formatDuration,
}

// Format writes the formatted output to the buffer.
func (f *TemplateFormatter) Format(w *bytes.Buffer, r *Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.parsed == nil {
		t, err := template.New("report").Funcs(templateFuncs).Parse(f.source)
		if err != nil {
			return err
		}
		f.parsed = t
	}

	return f.parsed.Execute(w, struct {
		*Result
		Launched int
		Failed   int
	}{r, r.Launched(), r.Failed()})
}

func init() {
	Register("template", func() Formatter {
		return NewTemplateFormatter(defaultTemplate)
	})
}

var _ Formatter = (*TemplateFormatter)(nil)
