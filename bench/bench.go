package bench

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Swind/go-forkjoin-bench/core"
)

var (
	// ErrWorkerThread is returned by Run when called from an admitted pool
	// worker. The worker's own entry would be charged twice.
	ErrWorkerThread = errors.New("bench: run started on a pool worker thread")

	// ErrNotAdmitted is returned by Attach for a pool whose threads are not
	// created through this bench's ThreadFactory.
	ErrNotAdmitted = errors.New("bench: pool does not use the admission thread factory")
)

// Workload is the code being measured. It runs synchronously on the calling
// goroutine and may fan work out onto the pool.
type Workload func() error

// Func adapts a workload that cannot fail.
func Func(f func()) Workload {
	return func() error {
		f()
		return nil
	}
}

// State is the lifecycle state of a Bench.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateReporting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateReporting:
		return "reporting"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Bench measures workloads running on pools created with its ThreadFactory.
//
// It accounts user CPU, total CPU and allocated bytes of every worker thread
// those pools ever created plus the thread calling Run. Only one run is in
// progress at a time; concurrent callers of Run block.
type Bench struct {
	metrics  Metrics
	counters *CounterSet
	history  *History
	logger   core.Logger

	runMu    sync.Mutex
	state    atomic.Int32
	admitted atomic.Int64
}

type benchOptions struct {
	metrics         Metrics
	logger          core.Logger
	historyCapacity int
}

// Option configures a Bench.
type Option func(*benchOptions)

// WithMetrics replaces the metric sources.
func WithMetrics(m Metrics) Option {
	return func(o *benchOptions) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l core.Logger) Option {
	return func(o *benchOptions) { o.logger = l }
}

// WithHistoryCapacity sets how many results History keeps.
func WithHistoryCapacity(n int) Option {
	return func(o *benchOptions) { o.historyCapacity = n }
}

// New creates a Bench. It fails when the metric sources cannot read the
// calling thread, e.g. on a platform without per-thread CPU clocks: a bench
// that cannot see threads would silently under-count.
func New(opts ...Option) (*Bench, error) {
	o := benchOptions{
		metrics:         DefaultMetrics(),
		historyCapacity: defaultHistoryCapacity,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = core.NewNoOpLogger()
	}
	if err := o.metrics.validate(); err != nil {
		return nil, err
	}
	if err := probe(o.metrics); err != nil {
		return nil, err
	}

	return &Bench{
		metrics:  o.metrics,
		counters: NewCounterSet(o.metrics, o.logger),
		history:  NewHistory(o.historyCapacity),
		logger:   o.logger,
	}, nil
}

func probe(m Metrics) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	self := Thread{ID: core.CurrentThreadID(), Caller: true}
	for _, metric := range []Metric{m.User, m.CPU, m.Alloc} {
		if _, err := metric.Read(self); err != nil {
			return fmt.Errorf("bench: probing %s metric: %w", metric.Name(), err)
		}
	}
	return nil
}

// =============================================================================
// Worker admission
// =============================================================================

type admissionFactory struct {
	bench *Bench
	next  core.ThreadFactory
}

// NewThread creates the thread through the wrapped factory and registers it
// on the new thread before body, and so before any task, runs.
func (f *admissionFactory) NewThread(name string, body func()) {
	f.next.NewThread(name, func() {
		f.bench.admit(name)
		body()
	})
}

// ThreadFactory wraps next so that every thread it creates is registered in
// all counters. Pass the result to the pool at construction time.
func (b *Bench) ThreadFactory(next core.ThreadFactory) core.ThreadFactory {
	if next == nil {
		next = core.DefaultThreadFactory
	}
	return &admissionFactory{bench: b, next: next}
}

func (b *Bench) admit(name string) {
	t := Thread{ID: core.CurrentThreadID()}
	b.counters.Register(t)
	b.admitted.Add(1)
	b.logger.Debug("worker admitted", core.F("thread", t.ID), core.F("name", name))
}

// ThreadFactoryProvider is implemented by pools that expose their factory.
type ThreadFactoryProvider interface {
	ThreadFactory() core.ThreadFactory
}

// Attach verifies that p creates its threads through b.
func (b *Bench) Attach(p ThreadFactoryProvider) error {
	f, ok := p.ThreadFactory().(*admissionFactory)
	if !ok || f.bench != b {
		return ErrNotAdmitted
	}
	return nil
}

// MustAttach is like Attach but panics. Use it at process start-up.
func MustAttach(b *Bench, p ThreadFactoryProvider) {
	if err := b.Attach(p); err != nil {
		panic(err)
	}
}

// =============================================================================
// Runs
// =============================================================================

// Run measures w and hands the result to l.
//
// Errors returned by w are returned unchanged and panics are re-raised, in
// both cases only after the counters have been collapsed, the caller
// unregistered and the run lock released. l is not called for a failed run.
func (b *Bench) Run(w Workload, l Listener) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	self := Thread{ID: core.CurrentThreadID(), Caller: true}
	if b.counters.Has(Thread{ID: self.ID}) {
		return ErrWorkerThread
	}

	res, err := b.measure(self, w)
	if err != nil {
		return err
	}
	b.history.Add(res)
	if l != nil {
		l.Result(res)
	}
	return nil
}

// RunN runs w n times in sequence, stopping at the first failure.
func (b *Bench) RunN(n int, w Workload, l Listener) error {
	for i := range n {
		if err := b.Run(w, l); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
	}
	return nil
}

func (b *Bench) measure(self Thread, w Workload) (res Result, err error) {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	b.state.Store(int32(StateRunning))
	b.counters.Register(self)

	var start time.Time
	defer func() {
		res.Real = time.Since(start)
		b.state.Store(int32(StateReporting))
		b.counters.CollapseAll()
		res.User, res.CPU, res.Alloc = b.counters.Summaries()
		res.Workers = b.counters.Workers()
		b.counters.Unregister(self)
		b.state.Store(int32(StateIdle))
	}()

	b.counters.ResetAll()
	start = time.Now()
	res.Started = start

	err = w()
	return res, err
}

// State returns the current lifecycle state.
func (b *Bench) State() State {
	return State(b.state.Load())
}

// Counters exposes the registries.
func (b *Bench) Counters() *CounterSet {
	return b.counters
}

// Workers returns the number of registered worker threads.
func (b *Bench) Workers() int {
	return b.counters.Workers()
}

// Admitted returns how many threads the admission factory has registered.
func (b *Bench) Admitted() int64 {
	return b.admitted.Load()
}

// History returns the recent results.
func (b *Bench) History() *History {
	return b.history
}
