package diag

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// colorCapable mirrors the CanColorStdout/CanColorStderr probe gitea's
// log package runs at init for its console writer, applied per-Reporter
// instead of process-wide since a Reporter can wrap any io.Writer.
func colorCapable(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Reporter prints Diagnostics and, in verbose mode, per-pass timings to a
// stream. Color is enabled only when that stream is a terminal.
type Reporter struct {
	w       io.Writer
	color   bool
	verbose bool
}

// NewReporter builds a Reporter writing to w. Color is auto-detected from w;
// verbose additionally enables per-pass timing lines from Pass.
func NewReporter(w io.Writer, verbose bool) *Reporter {
	return &Reporter{w: w, color: colorCapable(w), verbose: verbose}
}

const (
	ansiRed   = "\x1b[31m"
	ansiGray  = "\x1b[90m"
	ansiReset = "\x1b[0m"
)

// Report prints a single diagnostic, red when color is enabled.
func (r *Reporter) Report(d Diagnostic) {
	if r.color {
		fmt.Fprintf(r.w, "%s%s%s\n", ansiRed, d.String(), ansiReset)
		return
	}
	fmt.Fprintln(r.w, d.String())
}

// Pass records the elapsed time of a completed compiler pass. It is a no-op
// unless the Reporter was built with verbose set.
func (r *Reporter) Pass(name string, elapsed time.Duration) {
	if !r.verbose {
		return
	}
	if r.color {
		fmt.Fprintf(r.w, "%s[%s] %s%s\n", ansiGray, name, elapsed, ansiReset)
		return
	}
	fmt.Fprintf(r.w, "[%s] %s\n", name, elapsed)
}
