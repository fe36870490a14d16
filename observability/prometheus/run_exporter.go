package prometheus

import (
	"github.com/Swind/go-forkjoin-bench/bench"
	prom "github.com/prometheus/client_golang/prometheus"
)

// RunExporter is a bench.Listener that publishes every run result.
// Gauges hold the last run of each benchmark; the histogram and counter
// accumulate across runs.
type RunExporter struct {
	name string

	runsTotal   *prom.CounterVec
	realSeconds *prom.HistogramVec
	lastSeconds *prom.GaugeVec
	lastBytes   *prom.GaugeVec
	lastWorkers *prom.GaugeVec
}

var _ bench.Listener = (*RunExporter)(nil)

// NewRunExporter registers the run collectors. name labels every sample.
func NewRunExporter(namespace string, reg prom.Registerer, name string) (*RunExporter, error) {
	if namespace == "" {
		namespace = "forkjoin"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	runsVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Subsystem: "bench",
		Name:      "runs_total",
		Help:      "Total number of completed benchmark runs.",
	}, []string{"benchmark"})
	realVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Subsystem: "bench",
		Name:      "real_seconds",
		Help:      "Wall-clock time of benchmark runs.",
		Buckets:   prom.ExponentialBuckets(0.001, 4, 10),
	}, []string{"benchmark"})
	secondsVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Subsystem: "bench",
		Name:      "last_seconds",
		Help:      "Time consumed by the last run, by dimension (real, user, sys).",
	}, []string{"benchmark", "dimension"})
	bytesVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Subsystem: "bench",
		Name:      "last_allocated_bytes",
		Help:      "Bytes allocated during the last run.",
	}, []string{"benchmark"})
	workersVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Subsystem: "bench",
		Name:      "last_workers",
		Help:      "Worker threads accounted in the last run.",
	}, []string{"benchmark"})

	var err error
	if runsVec, err = registerCollector(reg, runsVec); err != nil {
		return nil, err
	}
	if realVec, err = registerCollector(reg, realVec); err != nil {
		return nil, err
	}
	if secondsVec, err = registerCollector(reg, secondsVec); err != nil {
		return nil, err
	}
	if bytesVec, err = registerCollector(reg, bytesVec); err != nil {
		return nil, err
	}
	if workersVec, err = registerCollector(reg, workersVec); err != nil {
		return nil, err
	}

	return &RunExporter{
		name:        normalizeLabel(name, "unnamed"),
		runsTotal:   runsVec,
		realSeconds: realVec,
		lastSeconds: secondsVec,
		lastBytes:   bytesVec,
		lastWorkers: workersVec,
	}, nil
}

// Named returns an exporter sharing the collectors but labelling samples
// with name.
func (e *RunExporter) Named(name string) *RunExporter {
	c := *e
	c.name = normalizeLabel(name, "unnamed")
	return &c
}

// Result implements bench.Listener.
func (e *RunExporter) Result(r bench.Result) {
	if e == nil {
		return
	}
	e.runsTotal.WithLabelValues(e.name).Inc()
	e.realSeconds.WithLabelValues(e.name).Observe(r.Real.Seconds())
	e.lastSeconds.WithLabelValues(e.name, "real").Set(r.Real.Seconds())
	e.lastSeconds.WithLabelValues(e.name, "user").Set(float64(r.User.Sum) / 1e9)
	e.lastSeconds.WithLabelValues(e.name, "sys").Set(r.Sys().Seconds())
	e.lastBytes.WithLabelValues(e.name).Set(float64(r.Alloc.Sum))
	e.lastWorkers.WithLabelValues(e.name).Set(float64(r.Workers))
}
