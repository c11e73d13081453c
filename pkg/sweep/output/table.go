package output

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"
)

var tableHeader = []string{"ALPHA", "ALPHA_END", "PID", "STATUS", "LOG", "ERROR"}

func tableRow(c Child) []string {
	pid := ""
	if c.PID != 0 {
		pid = strconv.Itoa(c.PID)
	}
	return []string{c.Alpha, c.AlphaEnd, pid, c.Status, c.LogPath, c.Error}
}

// rowWriter emits one table row.
type rowWriter func(w *bytes.Buffer, cells []string) error

// TableFormatter writes the header and one row per child through a
// rowWriter. It backs the tsv, csv and markdown formats.
type TableFormatter struct {
	newRow func(w *bytes.Buffer) (row rowWriter, flush func() error)
	rule   string // written after the header, if any
}

// Format writes the formatted output to the buffer.
func (f *TableFormatter) Format(w *bytes.Buffer, r *Result) error {
	row, flush := f.newRow(w)

	if err := row(w, tableHeader); err != nil {
		return err
	}
	w.WriteString(f.rule)
	for _, c := range r.Children {
		if err := row(w, tableRow(c)); err != nil {
			return err
		}
	}
	return flush()
}

func noFlush() error { return nil }

// tsvRows joins cells with tabs. Fields are not quoted.
func tsvRows(*bytes.Buffer) (rowWriter, func() error) {
	return func(w *bytes.Buffer, cells []string) error {
		w.WriteString(strings.Join(cells, "\t"))
		return w.WriteByte('\n')
	}, noFlush
}

// csvRows quotes per RFC 4180.
func csvRows(w *bytes.Buffer) (rowWriter, func() error) {
	cw := csv.NewWriter(w)
	row := func(_ *bytes.Buffer, cells []string) error { return cw.Write(cells) }
	flush := func() error {
		cw.Flush()
		return cw.Error()
	}
	return row, flush
}

// markdownRows writes GitHub-flavored table rows with pipes escaped.
func markdownRows(*bytes.Buffer) (rowWriter, func() error) {
	escape := strings.NewReplacer("|", `\|`)
	return func(w *bytes.Buffer, cells []string) error {
		w.WriteString("|")
		for _, cell := range cells {
			w.WriteString(" " + escape.Replace(cell) + " |")
		}
		return w.WriteByte('\n')
	}, noFlush
}

func init() {
	Register("tsv", func() Formatter { return &TableFormatter{newRow: tsvRows} })
	Register("csv", func() Formatter { return &TableFormatter{newRow: csvRows} })
	Register("markdown", func() Formatter {
		return &TableFormatter{
			newRow: markdownRows,
			rule:   "|" + strings.Repeat("---|", len(tableHeader)) + "\n",
		}
	})
}

var _ Formatter = (*TableFormatter)(nil)
