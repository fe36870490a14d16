package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/Swind/go-forkjoin-bench/bench"
)

// ColorScheme defines the colors used in text output
type ColorScheme struct {
	Title *color.Color
	Label *color.Color
	Value *color.Color
	Dim   *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title: color.New(color.FgCyan, color.Bold),
		Label: color.New(color.FgYellow),
		Value: color.New(color.FgWhite, color.Bold),
		Dim:   color.New(color.FgHiBlack),
	}
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	scheme.Title.DisableColor()
	scheme.Label.DisableColor()
	scheme.Value.DisableColor()
	scheme.Dim.DisableColor()
	return scheme
}

// TextListener prints every result in the time(1) layout:
//
//	Results for parallelSort0
//	real  0m1.234s
//	user  0m4.567s
//	sys   0m0.089s
//	mem   76.3MB
type TextListener struct {
	w       io.Writer
	mu      *sync.Mutex
	name    string
	colors  *ColorScheme
	verbose bool
}

var _ bench.Listener = (*TextListener)(nil)

// NewTextListener writes to w. A nil scheme disables colors.
func NewTextListener(w io.Writer, colors *ColorScheme, verbose bool) *TextListener {
	if colors == nil {
		colors = NoColorScheme()
	}
	return &TextListener{w: w, mu: &sync.Mutex{}, colors: colors, verbose: verbose}
}

// Named returns a listener sharing the writer that titles results with name.
func (l *TextListener) Named(name string) *TextListener {
	c := *l
	c.name = name
	return &c
}

// Result implements bench.Listener.
func (l *TextListener) Result(r bench.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.colors.Title.Fprintf(l.w, "Results for %s\n", l.name)
	l.line("real", FormatTime(r.Real))
	l.line("user", FormatTime(r.UserTime()))
	l.line("sys", FormatTime(r.Sys()))
	l.line("mem", FormatMemory(r.Alloc.Sum))
	if l.verbose {
		l.colors.Dim.Fprintf(l.w, "      %d worker threads, cpu max/thread %s\n",
			r.Workers, FormatTime(r.MaxThreadCPU()))
	}
}

func (l *TextListener) line(label, value string) {
	l.colors.Label.Fprintf(l.w, "%-5s ", label)
	l.colors.Value.Fprint(l.w, value)
	fmt.Fprintln(l.w)
}
