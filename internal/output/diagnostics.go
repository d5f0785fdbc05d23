package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Diagnostics writes error, warning and probe failure lines. Colors are only
// used when the destination is a terminal.
type Diagnostics struct {
	mu    sync.Mutex
	w     io.Writer
	red   *color.Color
	amber *color.Color
	dim   *color.Color
}

// NewDiagnostics returns diagnostics for w, enabling colors when w is a
// terminal file.
func NewDiagnostics(w io.Writer) *Diagnostics {
	if w == nil {
		w = io.Discard
	}
	return newDiagnostics(w, isTerminal(w))
}

func newDiagnostics(w io.Writer, colored bool) *Diagnostics {
	d := &Diagnostics{
		w:     w,
		red:   color.New(color.FgRed, color.Bold),
		amber: color.New(color.FgYellow),
		dim:   color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{d.red, d.amber, d.dim} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return d
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Error prints "Error: <err>".
func (d *Diagnostics) Error(err error) {
	d.println(d.red.Sprint("Error:") + " " + err.Error())
}

// Warnf prints a formatted warning.
func (d *Diagnostics) Warnf(format string, args ...interface{}) {
	d.println(d.amber.Sprint("Warning:") + " " + fmt.Sprintf(format, args...))
}

// LogFailure reports a swallowed probe failure.
func (d *Diagnostics) LogFailure(err error) {
	d.println(d.dim.Sprintf("[ttfr] probe failed: %v", err))
}

func (d *Diagnostics) println(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.w, line)
}
