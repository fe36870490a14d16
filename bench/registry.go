package bench

import (
	"sync"

	"github.com/Swind/go-forkjoin-bench/core"
)

// counter is a registry value. Between Reset and Collapse value holds the
// baseline; after Collapse it holds the delta.
type counter struct {
	value int64
	delta bool
	// stale is set when the thread could not be read at Reset; it then
	// contributes a zero delta.
	stale bool
}

// Registry maps threads to counters of one metric.
//
// Worker entries are never removed. The pool does not signal when a worker
// thread exits for good, so the table grows with the number of threads the
// process ever created.
type Registry struct {
	metric Metric
	logger core.Logger

	mu      sync.Mutex
	entries map[Thread]*counter
}

// NewRegistry creates an empty registry for metric.
func NewRegistry(metric Metric, logger core.Logger) *Registry {
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	return &Registry{
		metric:  metric,
		logger:  logger,
		entries: make(map[Thread]*counter),
	}
}

// Metric returns the metric this registry samples.
func (r *Registry) Metric() Metric {
	return r.metric
}

// Register records t with the metric's current value as baseline. An
// existing entry is re-based.
func (r *Registry) Register(t Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &counter{}
	r.rebase(t, c)
	r.entries[t] = c
}

// Unregister removes t.
func (r *Registry) Unregister(t Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, t)
}

// Reset re-bases every entry to the metric's current value.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for t, c := range r.entries {
		r.rebase(t, c)
	}
}

// Collapse replaces every baseline with current value minus baseline.
// Entries registered after the last Reset are collapsed as well; entries
// already collapsed are left alone.
func (r *Registry) Collapse() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for t, c := range r.entries {
		if c.delta {
			continue
		}
		c.delta = true
		if c.stale {
			c.value = 0
			continue
		}
		now, err := r.metric.Read(t)
		if err != nil {
			r.logger.Debug("collapse: thread stopped contributing",
				core.F("metric", r.metric.Name()),
				core.F("thread", t.String()),
				core.F("error", err))
			c.value = 0
			continue
		}
		c.value = now - c.value
	}
}

// Summarize aggregates the collapsed values. Entries still holding a
// baseline, i.e. registered after Collapse, are skipped.
func (r *Registry) Summarize() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s Summary
	for _, c := range r.entries {
		if c.delta {
			s.add(c.value)
		}
	}
	return s
}

// Values returns a copy of the stored values.
func (r *Registry) Values() map[Thread]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[Thread]int64, len(r.entries))
	for t, c := range r.entries {
		out[t] = c.value
	}
	return out
}

// Has reports whether t is registered.
func (r *Registry) Has(t Thread) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[t]
	return ok
}

// Len returns the number of registered threads.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) rebase(t Thread, c *counter) {
	c.delta = false
	now, err := r.metric.Read(t)
	if err != nil {
		r.logger.Debug("rebase: thread not readable",
			core.F("metric", r.metric.Name()),
			core.F("thread", t.String()),
			core.F("error", err))
		c.stale = true
		return
	}
	c.value = now
	c.stale = false
}

// =============================================================================
// CounterSet: the three registries, always mutated together
// =============================================================================

// CounterSet keeps one Registry per dimension. A thread present in one of
// them is present in all three.
//
// Register and Unregister may run concurrently with each other. ResetAll,
// CollapseAll and Summaries exclude them, so every registry sees the same
// set of threads in the same phase.
type CounterSet struct {
	User  *Registry
	CPU   *Registry
	Alloc *Registry

	mu sync.RWMutex
}

// NewCounterSet creates empty registries for m.
func NewCounterSet(m Metrics, logger core.Logger) *CounterSet {
	return &CounterSet{
		User:  NewRegistry(m.User, logger),
		CPU:   NewRegistry(m.CPU, logger),
		Alloc: NewRegistry(m.Alloc, logger),
	}
}

func (s *CounterSet) all() [3]*Registry {
	return [3]*Registry{s.User, s.CPU, s.Alloc}
}

// Register adds t to all three registries with the current values as
// baseline.
func (s *CounterSet) Register(t Thread) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.all() {
		r.Register(t)
	}
}

// Unregister removes t from all three registries.
func (s *CounterSet) Unregister(t Thread) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.all() {
		r.Unregister(t)
	}
}

// ResetAll re-bases every entry of every registry.
func (s *CounterSet) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.all() {
		r.Reset()
	}
}

// CollapseAll turns every baseline into a delta. Threads admitted while it
// runs wait and enter all three registries afterwards, in baseline phase.
func (s *CounterSet) CollapseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.all() {
		r.Collapse()
	}
}

// Summaries returns the user, cpu and alloc summaries.
func (s *CounterSet) Summaries() (user, cpu, alloc Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.User.Summarize(), s.CPU.Summarize(), s.Alloc.Summarize()
}

// Has reports whether t is registered.
func (s *CounterSet) Has(t Thread) bool {
	return s.User.Has(t)
}

// Workers returns the number of registered worker threads.
func (s *CounterSet) Workers() int {
	n := 0
	for t := range s.User.Values() {
		if !t.Caller {
			n++
		}
	}
	return n
}
