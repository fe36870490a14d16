package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	forkjoin "github.com/Swind/go-forkjoin-bench"
	"github.com/Swind/go-forkjoin-bench/bench"
	"github.com/Swind/go-forkjoin-bench/core"
	"github.com/Swind/go-forkjoin-bench/internal/config"
	"github.com/Swind/go-forkjoin-bench/internal/report"
	"github.com/Swind/go-forkjoin-bench/internal/workload"
	obs "github.com/Swind/go-forkjoin-bench/observability/prometheus"
)

const (
	poolID       = "bench-pool"
	pollInterval = 500 * time.Millisecond
)

// app wires one bench to one pool and the configured outputs.
type app struct {
	cfg    *config.Config
	stdout io.Writer
	logger core.Logger

	bench *bench.Bench
	pool  *forkjoin.Pool

	registry *prom.Registry
	runs     *obs.RunExporter
	poller   *obs.SnapshotPoller

	colors     *report.ColorScheme
	text       *report.TextListener
	structured *report.StructuredListener
	series     *report.Series
}

func newApp(cfg *config.Config, stdout, stderr io.Writer) (*app, error) {
	logger := core.NewSlogLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	b, err := bench.New(bench.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("per-thread accounting unavailable: %w", err)
	}

	reg := prom.NewRegistry()
	exporter, err := obs.NewMetricsExporter("forkjoin", reg, obs.ExporterOptions{})
	if err != nil {
		return nil, err
	}
	runs, err := obs.NewRunExporter("forkjoin", reg, "")
	if err != nil {
		return nil, err
	}
	poller, err := obs.NewSnapshotPoller(reg, pollInterval)
	if err != nil {
		return nil, err
	}

	pool := forkjoin.NewPool(
		forkjoin.WithID(poolID),
		forkjoin.WithParallelism(cfg.Parallelism),
		forkjoin.WithMaxWorkers(cfg.MaxWorkers),
		forkjoin.WithThreadFactory(b.ThreadFactory(core.DefaultThreadFactory)),
		forkjoin.WithLogger(logger),
		forkjoin.WithMetrics(exporter),
	)
	// Refuse to measure a pool whose threads would escape accounting.
	if err := b.Attach(pool); err != nil {
		pool.Close()
		return nil, err
	}
	poller.AddPool(poolID, pool)

	a := &app{
		cfg:      cfg,
		stdout:   stdout,
		logger:   logger,
		bench:    b,
		pool:     pool,
		registry: reg,
		runs:     runs,
		poller:   poller,
		series:   report.NewSeries(),
	}

	a.colors = report.DefaultColorScheme()
	if !useColor(cfg, stdout) {
		a.colors = report.NoColorScheme()
	}

	switch cfg.OutputFormat() {
	case report.FormatText:
		a.text = report.NewTextListener(stdout, a.colors, cfg.Verbose)
	default:
		a.structured, err = report.NewStructuredListener(stdout, cfg.OutputFormat(), func(err error) {
			logger.Error("writing result", core.F("error", err))
		})
		if err != nil {
			pool.Close()
			return nil, err
		}
	}

	logger.Info("pool ready",
		core.F("pool", poolID),
		core.F("parallelism", pool.Parallelism()),
		core.F("format", cfg.Format))
	return a, nil
}

func useColor(cfg *config.Config, w io.Writer) bool {
	if cfg.NoColor || color.NoColor {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// listenerFor aggregates c under its group and prints it under its name.
func (a *app) listenerFor(c workload.Case) bench.Listener {
	ls := []bench.Listener{a.series.Listener(c.Group), a.runs.Named(c.Group)}
	if a.text != nil {
		ls = append(ls, a.text.Named(c.Name))
	}
	if a.structured != nil {
		ls = append(ls, a.structured.Named(c.Name))
	}
	return bench.Listeners(ls...)
}

// Run measures every case in order. With a metrics address the Prometheus
// endpoint serves for the duration of the run.
func (a *app) Run(ctx context.Context, cases []workload.Case) error {
	if ctx == nil {
		ctx = context.Background()
	}
	g, ctx := errgroup.WithContext(ctx)

	var server *http.Server
	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		server = &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}

		a.poller.Start(ctx)
		g.Go(func() error {
			a.logger.Info("serving metrics", core.F("addr", a.cfg.MetricsAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			a.poller.Stop()
			if server != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}
		}()
		return a.runCases(ctx, cases)
	})

	return g.Wait()
}

func (a *app) runCases(ctx context.Context, cases []workload.Case) error {
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.Setup()
		a.logger.Debug("running case", core.F("case", c.Name))
		if err := a.bench.Run(c.Run, a.listenerFor(c)); err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
	}

	a.logger.Info("runs complete",
		core.F("cases", len(cases)),
		core.F("workers", a.bench.Workers()),
		core.F("steals", a.pool.Stats().Steals))

	if a.text != nil && len(cases) > 1 {
		fmt.Fprintln(a.stdout)
		a.series.WriteTable(a.stdout, a.colors)
	}
	return nil
}

// Close releases the pool.
func (a *app) Close() {
	a.pool.Close()
}
