package trace

import (
	"fmt"
	"io"
	"strings"
)

// WriteText prints one line per frame, then the log output.
func WriteText(w io.Writer, t *Trace) error {
	if t.Error != nil {
		_, err := fmt.Fprintf(w, "syntax error at %s: %s\n", t.Error.Location.Start, t.Error.Message)
		return err
	}
	for i, f := range t.Frames {
		marker := " "
		if f.Status != "SUCCESS" {
			marker = "!"
		}
		code := strings.ReplaceAll(f.Code, "\n", " ")
		if len(code) > 40 {
			code = code[:37] + "..."
		}
		if _, err := fmt.Fprintf(w, "%s%4d  %3d  %-40s  %s\n", marker, i+1, f.Line, code, f.Description); err != nil {
			return err
		}
	}
	if len(t.LogLines) > 0 {
		if _, err := fmt.Fprintln(w, "--- log"); err != nil {
			return err
		}
		for _, l := range t.LogLines {
			if _, err := fmt.Fprintln(w, l.Output); err != nil {
				return err
			}
		}
	}
	return nil
}
