package output

import (
	"bytes"
	"strconv"
)

// ListFormatter writes one field per child followed by a separator, for
// piping into xargs or kill. Children whose field is empty are skipped.
type ListFormatter struct {
	Field func(Child) string
	Sep   byte
}

// Format writes the formatted output to the buffer.
func (f *ListFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, c := range r.Children {
		v := f.Field(c)
		if v == "" {
			continue
		}
		w.WriteString(v)
		w.WriteByte(f.Sep)
	}
	return nil
}

func logPathOf(c Child) string { return c.LogPath }

func pidOf(c Child) string {
	if c.PID == 0 {
		return ""
	}
	return strconv.Itoa(c.PID)
}

func init() {
	Register("paths", func() Formatter { return &ListFormatter{Field: logPathOf, Sep: '\n'} })
	Register("null", func() Formatter { return &ListFormatter{Field: logPathOf, Sep: 0} })
	Register("pids", func() Formatter { return &ListFormatter{Field: pidOf, Sep: '\n'} })
}

var _ Formatter = (*ListFormatter)(nil)
