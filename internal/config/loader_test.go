package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"github.com/Swind/go-forkjoin-bench/internal/report"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newFlagSet(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	d := Default()
	if cfg.Parallelism != d.Parallelism {
		t.Errorf("Parallelism = %d, want %d", cfg.Parallelism, d.Parallelism)
	}
	if cfg.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3", cfg.Iterations)
	}
	if cfg.OutputFormat() != report.FormatText {
		t.Errorf("Format = %q, want text", cfg.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	content := "parallelism: 3\niterations: 5\nformat: yaml\nstream-n: 1000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(newFlagSet(t, "--config="+path, "--iterations=2"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Parallelism != 3 {
		t.Errorf("Parallelism = %d, want 3 from file", cfg.Parallelism)
	}
	if cfg.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2 from flag", cfg.Iterations)
	}
	if cfg.StreamN != 1000 {
		t.Errorf("StreamN = %d, want 1000", cfg.StreamN)
	}
	if cfg.OutputFormat() != report.FormatYAML {
		t.Errorf("Format = %q, want yaml", cfg.Format)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("FORKJOIN_BENCH_MAX_WORKERS", "64")
	t.Setenv("FORKJOIN_BENCH_LOG_LEVEL", "debug")

	cfg, err := Load(newFlagSet(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxWorkers != 64 {
		t.Errorf("MaxWorkers = %d, want 64", cfg.MaxWorkers)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", cfg.SlogLevel())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(newFlagSet(t, "--config=/does/not/exist.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Parallelism = 4
	cfg.MaxWorkers = 2
	cfg.Iterations = 0
	cfg.Format = "xml"
	cfg.LogLevel = "loud"
	cfg.N = -1

	err := cfg.Validate()
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %v, want ValidationError", err)
	}
	if got := len(verr.Issues()); got != 5 {
		t.Errorf("issues = %v, want 5", verr.Issues())
	}
}

func TestParams(t *testing.T) {
	cfg := Default()
	cfg.Size = 10
	cfg.N = 20
	cfg.StreamN = 30

	p := cfg.Params()
	if p.SortSize != 10 || p.FutureN != 20 || p.ReduceN != 30 || p.Iterations != cfg.Iterations {
		t.Errorf("Params() = %+v", p)
	}
}
