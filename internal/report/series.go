package report

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/dustin/go-humanize"

	"github.com/Swind/go-forkjoin-bench/bench"
)

// Series groups results by benchmark name so repeated iterations can be
// summarized together. Wall time goes into an HDR histogram in microseconds.
type Series struct {
	mu     sync.Mutex
	order  []string
	groups map[string]*group
}

type group struct {
	real  *hdrhistogram.Histogram
	user  time.Duration
	sys   time.Duration
	alloc int64
	runs  int64
}

// Row is the summary of one benchmark name.
type Row struct {
	Name      string        `json:"name" yaml:"name"`
	Runs      int64         `json:"runs" yaml:"runs"`
	RealP50   time.Duration `json:"realP50Ns" yaml:"realP50"`
	RealP90   time.Duration `json:"realP90Ns" yaml:"realP90"`
	RealMax   time.Duration `json:"realMaxNs" yaml:"realMax"`
	MeanUser  time.Duration `json:"meanUserNs" yaml:"meanUser"`
	MeanSys   time.Duration `json:"meanSysNs" yaml:"meanSys"`
	MeanAlloc int64         `json:"meanAllocBytes" yaml:"meanAllocBytes"`
}

// NewSeries creates an empty series.
func NewSeries() *Series {
	return &Series{groups: make(map[string]*group)}
}

// Add records r under name.
func (s *Series) Add(name string, r bench.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[name]
	if !ok {
		// 1µs to 1h, three significant digits.
		g = &group{real: hdrhistogram.New(1, int64(time.Hour/time.Microsecond), 3)}
		s.groups[name] = g
		s.order = append(s.order, name)
	}

	us := r.Real.Microseconds()
	if us < g.real.LowestTrackableValue() {
		us = g.real.LowestTrackableValue()
	}
	if us > g.real.HighestTrackableValue() {
		us = g.real.HighestTrackableValue()
	}
	_ = g.real.RecordValue(us)

	g.user += r.UserTime()
	g.sys += r.Sys()
	g.alloc += r.Alloc.Sum
	g.runs++
}

// Listener returns a bench.Listener adding results under name.
func (s *Series) Listener(name string) bench.Listener {
	return bench.ListenerFunc(func(r bench.Result) { s.Add(name, r) })
}

// Rows returns one row per name in first-seen order.
func (s *Series) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]Row, 0, len(s.order))
	for _, name := range s.order {
		g := s.groups[name]
		n := time.Duration(g.runs)
		rows = append(rows, Row{
			Name:      name,
			Runs:      g.runs,
			RealP50:   time.Duration(g.real.ValueAtQuantile(50)) * time.Microsecond,
			RealP90:   time.Duration(g.real.ValueAtQuantile(90)) * time.Microsecond,
			RealMax:   time.Duration(g.real.Max()) * time.Microsecond,
			MeanUser:  g.user / n,
			MeanSys:   g.sys / n,
			MeanAlloc: g.alloc / g.runs,
		})
	}
	return rows
}

// WriteTable prints the rows as an aligned table.
func (s *Series) WriteTable(w io.Writer, colors *ColorScheme) {
	if colors == nil {
		colors = NoColorScheme()
	}
	rows := s.Rows()
	if len(rows) == 0 {
		return
	}

	width := len("benchmark")
	for _, r := range rows {
		width = max(width, len(r.Name))
	}

	colors.Title.Fprintf(w, "%-*s %5s %11s %11s %11s %11s %11s %10s\n",
		width, "benchmark", "runs", "real p50", "real p90", "real max", "user/run", "sys/run", "mem/run")
	for _, r := range rows {
		fmt.Fprintf(w, "%-*s %5s %11s %11s %11s %11s %11s %10s\n",
			width, r.Name,
			humanize.Comma(r.Runs),
			FormatTime(r.RealP50),
			FormatTime(r.RealP90),
			FormatTime(r.RealMax),
			FormatTime(r.MeanUser),
			FormatTime(r.MeanSys),
			humanize.IBytes(uint64(max(r.MeanAlloc, 0))),
		)
	}
}
