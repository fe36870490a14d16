// Package config loads the benchmark settings from flags, environment
// variables and an optional YAML or JSON file, in that order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/Swind/go-forkjoin-bench/internal/report"
	"github.com/Swind/go-forkjoin-bench/internal/workload"
)

// EnvPrefix prefixes every environment override, e.g.
// FORKJOIN_BENCH_PARALLELISM=8.
const EnvPrefix = "FORKJOIN_BENCH"

// Config holds the settings of one benchmark invocation.
type Config struct {
	Parallelism int    `mapstructure:"parallelism"`
	MaxWorkers  int    `mapstructure:"max-workers"`
	Iterations  int    `mapstructure:"iterations"`
	Size        int    `mapstructure:"size"`
	N           int    `mapstructure:"n"`
	StreamN     int    `mapstructure:"stream-n"`
	Seed        uint64 `mapstructure:"seed"`
	Format      string `mapstructure:"format"`
	NoColor     bool   `mapstructure:"no-color"`
	Verbose     bool   `mapstructure:"verbose"`
	MetricsAddr string `mapstructure:"metrics-addr"`
	LogLevel    string `mapstructure:"log-level"`

	ConfigFile string `mapstructure:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	p := workload.DefaultParams()
	return Config{
		Parallelism: runtime.GOMAXPROCS(0),
		Iterations:  p.Iterations,
		Size:        p.SortSize,
		N:           p.FutureN,
		StreamN:     p.ReduceN,
		Seed:        p.Seed,
		Format:      string(report.FormatText),
		LogLevel:    "warn",
	}
}

// Params returns the workload sizes.
func (c Config) Params() workload.Params {
	return workload.Params{
		Iterations: c.Iterations,
		SortSize:   c.Size,
		Seed:       c.Seed,
		FutureN:    c.N,
		ReduceN:    c.StreamN,
	}
}

// OutputFormat returns the parsed format. Call Validate first.
func (c Config) OutputFormat() report.OutputFormat {
	f, _ := report.ParseFormat(c.Format)
	return f
}

// SlogLevel returns the parsed log level. Call Validate first.
func (c Config) SlogLevel() slog.Level {
	l, _ := ParseLogLevel(c.LogLevel)
	return l
}

// ParseLogLevel accepts debug, info, warn and error.
func ParseLogLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// ValidationError lists every problem found in a Config.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.issues, "; ")
}

// Issues returns the individual problems.
func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var issues []string

	if c.Parallelism < 1 {
		issues = append(issues, "parallelism must be >= 1")
	}
	if c.MaxWorkers < 0 {
		issues = append(issues, "max-workers must be >= 0")
	}
	if c.MaxWorkers > 0 && c.MaxWorkers < c.Parallelism {
		issues = append(issues, "max-workers must be 0 or >= parallelism")
	}
	if c.Iterations < 1 {
		issues = append(issues, "iterations must be >= 1")
	}
	if c.Size < 0 {
		issues = append(issues, "size must be >= 0")
	}
	if c.N < 0 {
		issues = append(issues, "n must be >= 0")
	}
	if c.StreamN < 0 {
		issues = append(issues, "stream-n must be >= 0")
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		issues = append(issues, err.Error())
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		issues = append(issues, err.Error())
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
