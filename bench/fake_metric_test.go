package bench

import (
	"fmt"
	"sync"

	"github.com/Swind/go-forkjoin-bench/core"
)

// fakeMetric serves scripted per-thread values. Every read advances the
// thread's value by step.
type fakeMetric struct {
	name string
	step int64

	mu     sync.Mutex
	values map[core.ThreadID]int64
	gone   map[core.ThreadID]bool
	reads  int
}

func newFakeMetric(name string, step int64) *fakeMetric {
	return &fakeMetric{
		name:   name,
		step:   step,
		values: make(map[core.ThreadID]int64),
		gone:   make(map[core.ThreadID]bool),
	}
}

func (m *fakeMetric) Name() string { return m.name }
func (m *fakeMetric) Unit() Unit   { return UnitNanoseconds }

func (m *fakeMetric) Read(t Thread) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reads++
	if m.gone[t.ID] {
		return 0, fmt.Errorf("thread %s: %w", t, ErrThreadGone)
	}
	v := m.values[t.ID]
	m.values[t.ID] = v + m.step
	return v, nil
}

func (m *fakeMetric) set(id core.ThreadID, v int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[id] = v
}

func (m *fakeMetric) kill(id core.ThreadID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gone[id] = true
}

func fakeMetrics(step int64) (Metrics, *fakeMetric, *fakeMetric, *fakeMetric) {
	user := newFakeMetric("user", step)
	cpu := newFakeMetric("cpu", step)
	alloc := newFakeMetric("alloc", step)
	return Metrics{User: user, CPU: cpu, Alloc: alloc}, user, cpu, alloc
}
