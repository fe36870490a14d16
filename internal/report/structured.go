package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Swind/go-forkjoin-bench/bench"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	// FormatText is the default human-readable text format
	FormatText OutputFormat = "text"
	// FormatJSON writes one JSON object per line
	FormatJSON OutputFormat = "json"
	// FormatYAML writes one YAML document per result
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// Record is the structured form of one result.
type Record struct {
	Name       string    `json:"name" yaml:"name"`
	Started    time.Time `json:"started" yaml:"started"`
	RealNs     int64     `json:"realNs" yaml:"realNs"`
	UserNs     int64     `json:"userNs" yaml:"userNs"`
	SysNs      int64     `json:"sysNs" yaml:"sysNs"`
	AllocBytes int64     `json:"allocBytes" yaml:"allocBytes"`
	Workers    int       `json:"workers" yaml:"workers"`

	User  bench.Summary `json:"userPerThread" yaml:"userPerThread"`
	CPU   bench.Summary `json:"cpuPerThread" yaml:"cpuPerThread"`
	Alloc bench.Summary `json:"allocPerThread" yaml:"allocPerThread"`
}

// NewRecord converts a result.
func NewRecord(name string, r bench.Result) Record {
	return Record{
		Name:       name,
		Started:    r.Started,
		RealNs:     r.Real.Nanoseconds(),
		UserNs:     r.User.Sum,
		SysNs:      r.Sys().Nanoseconds(),
		AllocBytes: r.Alloc.Sum,
		Workers:    r.Workers,
		User:       r.User,
		CPU:        r.CPU,
		Alloc:      r.Alloc,
	}
}

// StructuredListener writes results as JSON lines or YAML documents.
type StructuredListener struct {
	w      io.Writer
	mu     *sync.Mutex
	format OutputFormat
	name   string
	onErr  func(error)
}

var _ bench.Listener = (*StructuredListener)(nil)

// NewStructuredListener writes to w in format, which must be json or yaml.
// onErr receives encoding errors; it may be nil.
func NewStructuredListener(w io.Writer, format OutputFormat, onErr func(error)) (*StructuredListener, error) {
	if format != FormatJSON && format != FormatYAML {
		return nil, fmt.Errorf("structured output does not support format %q", format)
	}
	if onErr == nil {
		onErr = func(error) {}
	}
	return &StructuredListener{w: w, mu: &sync.Mutex{}, format: format, onErr: onErr}, nil
}

// Named returns a listener sharing the writer that tags results with name.
func (l *StructuredListener) Named(name string) *StructuredListener {
	c := *l
	c.name = name
	return &c
}

// Result implements bench.Listener.
func (l *StructuredListener) Result(r bench.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := NewRecord(l.name, r)
	var err error
	switch l.format {
	case FormatJSON:
		err = json.NewEncoder(l.w).Encode(rec)
	case FormatYAML:
		enc := yaml.NewEncoder(l.w)
		enc.SetIndent(2)
		if err = enc.Encode(rec); err == nil {
			err = enc.Close()
		}
	}
	if err != nil {
		l.onErr(fmt.Errorf("encoding result %s: %w", l.name, err))
	}
}
