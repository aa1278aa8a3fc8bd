// Package output formats CLI results for terminals and pipes.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Writer prints human-readable status lines.
// Write errors are ignored; there is nowhere better to report them.
type Writer struct {
	out io.Writer
}

// New returns a Writer over out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Successf prints a completed action.
func (w *Writer) Successf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "ok  "+format+"\n", args...)
}

// Warningf prints something the user should look at.
func (w *Writer) Warningf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "!!  "+format+"\n", args...)
}

// Field prints an aligned "label: value" line.
func (w *Writer) Field(label string, value any) {
	_, _ = fmt.Fprintf(w.out, "%-11s %v\n", label+":", value)
}

// JSON writes v indented.
func JSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// IsTerminal reports whether out is an interactive terminal.
func IsTerminal(out any) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
