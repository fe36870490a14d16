//go:build linux

package bench

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	forkjoin "github.com/Swind/go-forkjoin-bench"
	"github.com/Swind/go-forkjoin-bench/core"
)

func newFakeBench(t *testing.T, step int64) *Bench {
	t.Helper()
	metrics, _, _, _ := fakeMetrics(step)
	b, err := New(WithMetrics(metrics))
	require.NoError(t, err)
	return b
}

func newAdmittedPool(t *testing.T, b *Bench, parallelism int) *forkjoin.Pool {
	t.Helper()
	pool := forkjoin.NewPool(
		forkjoin.WithID(t.Name()),
		forkjoin.WithParallelism(parallelism),
		forkjoin.WithMaxWorkers(parallelism),
		forkjoin.WithThreadFactory(b.ThreadFactory(core.DefaultThreadFactory)),
	)
	t.Cleanup(pool.Close)
	MustAttach(b, pool)
	return pool
}

// fanOut runs k tasks on the pool that only finish once all k are running
// at the same time, which forces k distinct worker threads.
func fanOut(pool *forkjoin.Pool, k int) Workload {
	return func() error {
		var started sync.WaitGroup
		started.Add(k)
		futures := make([]*forkjoin.Future[core.ThreadID], 0, k)
		for range k {
			futures = append(futures, forkjoin.Submit(context.Background(), pool,
				func(ctx context.Context) (core.ThreadID, error) {
					started.Done()
					started.Wait()
					info, _ := core.CurrentWorkerInfo(ctx)
					return info.Thread, nil
				}))
		}
		for _, f := range futures {
			if _, err := f.Join(context.Background()); err != nil {
				return err
			}
		}
		return nil
	}
}

func callerEntries(b *Bench) int {
	n := 0
	for _, r := range []*Registry{b.counters.User, b.counters.CPU, b.counters.Alloc} {
		for th := range r.Values() {
			if th.Caller {
				n++
			}
		}
	}
	return n
}

func TestBench_EmptyWorkloadReportsNoConsumption(t *testing.T) {
	b := newFakeBench(t, 0)

	var results []Result
	err := b.Run(Func(func() {}), ListenerFunc(func(r Result) {
		results = append(results, r)
	}))
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.GreaterOrEqual(t, r.Real, time.Duration(0))
	assert.Zero(t, r.User.Sum)
	assert.Zero(t, r.CPU.Sum)
	assert.Zero(t, r.Alloc.Sum)
	assert.Equal(t, int64(1), r.User.Count, "only the caller is accounted")
	assert.False(t, r.Started.IsZero())
}

func TestBench_CallerEntryNeverLeaks(t *testing.T) {
	b := newFakeBench(t, 1)
	pool := newAdmittedPool(t, b, 2)

	require.Zero(t, callerEntries(b))
	for i := range 5 {
		require.NoError(t, b.Run(fanOut(pool, 2), nil))
		assert.Zerof(t, callerEntries(b), "after run %d", i)
	}
}

func TestBench_ListenerRunsAfterUnlock(t *testing.T) {
	b := newFakeBench(t, 0)

	var state State
	var nested error
	err := b.Run(Func(func() {}), ListenerFunc(func(Result) {
		state = b.State()
		// The lock is already released, so a listener may start a new run.
		nested = b.Run(Func(func() {}), nil)
	}))
	require.NoError(t, err)
	assert.Equal(t, StateIdle, state)
	assert.NoError(t, nested)
}

func TestBench_StateDuringRun(t *testing.T) {
	b := newFakeBench(t, 0)
	assert.Equal(t, StateIdle, b.State())

	var during State
	require.NoError(t, b.Run(Func(func() { during = b.State() }), nil))

	assert.Equal(t, StateRunning, during)
	assert.Equal(t, StateIdle, b.State())
}

func TestBench_FanOutAdmitsWorkers(t *testing.T) {
	const k = 4
	b := newFakeBench(t, 1)
	pool := newAdmittedPool(t, b, k)

	var got Result
	require.NoError(t, b.Run(fanOut(pool, k), ListenerFunc(func(r Result) { got = r })))

	assert.Equal(t, k, b.Workers())
	assert.Equal(t, int64(k), b.Admitted())
	assert.Equal(t, k, got.Workers)
	assert.Equal(t, int64(k+1), got.CPU.Count, "k workers plus the caller")

	for _, tid := range pool.Threads() {
		th := Thread{ID: tid}
		for _, r := range []*Registry{b.counters.User, b.counters.CPU, b.counters.Alloc} {
			v, ok := r.Values()[th]
			require.Truef(t, ok, "%s missing from %s", th, r.Metric().Name())
			assert.GreaterOrEqual(t, v, int64(0))
		}
	}
}

func TestBench_WorkerEntriesPersistAcrossRuns(t *testing.T) {
	b := newFakeBench(t, 1)
	pool := newAdmittedPool(t, b, 3)

	require.NoError(t, b.Run(fanOut(pool, 3), nil))
	first := pool.Threads()
	require.Len(t, first, 3)

	previous := b.Workers()
	for range 3 {
		// An empty run leaves the workers idle; they stay registered.
		var r Result
		require.NoError(t, b.Run(Func(func() {}), ListenerFunc(func(res Result) { r = res })))

		assert.GreaterOrEqual(t, b.Workers(), previous)
		previous = b.Workers()
		assert.Equal(t, int64(4), r.CPU.Count)
		for _, tid := range first {
			assert.True(t, b.counters.Has(Thread{ID: tid}))
		}
	}
}

func TestBench_FailingWorkloadReleasesEverything(t *testing.T) {
	b := newFakeBench(t, 1)
	boom := errors.New("boom")

	called := false
	err := b.Run(func() error { return boom }, ListenerFunc(func(Result) { called = true }))

	require.ErrorIs(t, err, boom)
	assert.False(t, called, "listener must not see a failed run")
	assert.Zero(t, callerEntries(b))
	assert.Equal(t, StateIdle, b.State())
	assert.Zero(t, b.History().Len())

	// The lock was released: a second run completes normally.
	require.NoError(t, b.Run(Func(func() {}), ListenerFunc(func(Result) { called = true })))
	assert.True(t, called)
}

func TestBench_PanickingWorkloadReleasesEverything(t *testing.T) {
	b := newFakeBench(t, 1)

	called := false
	assert.PanicsWithValue(t, "kaboom", func() {
		_ = b.Run(Func(func() { panic("kaboom") }), ListenerFunc(func(Result) { called = true }))
	})
	assert.False(t, called)
	assert.Zero(t, callerEntries(b))
	assert.Equal(t, StateIdle, b.State())

	done := make(chan error, 1)
	go func() { done <- b.Run(Func(func() {}), nil) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run lock still held after panicking workload")
	}
}

func TestBench_ConcurrentRunsAreSerialized(t *testing.T) {
	b := newFakeBench(t, 1)

	var inside, maxInside atomic.Int32
	workload := Func(func() {
		n := inside.Add(1)
		for {
			m := maxInside.Load()
			if n <= m || maxInside.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inside.Add(-1)
	})

	var g errgroup.Group
	var runs atomic.Int32
	for range 8 {
		g.Go(func() error {
			return b.Run(workload, ListenerFunc(func(Result) { runs.Add(1) }))
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, int32(8), runs.Load())
	assert.Equal(t, 8, b.History().Len())
}

func TestBench_RunOnWorkerThreadIsRejected(t *testing.T) {
	b := newFakeBench(t, 1)
	pool := newAdmittedPool(t, b, 1)

	f := forkjoin.Submit(context.Background(), pool, func(ctx context.Context) (error, error) {
		return b.Run(Func(func() {}), nil), nil
	})
	runErr, err := f.Join(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, runErr, ErrWorkerThread)
	assert.Zero(t, callerEntries(b))
}

func TestBench_RunN(t *testing.T) {
	b := newFakeBench(t, 0)

	count := 0
	require.NoError(t, b.RunN(3, Func(func() {}), ListenerFunc(func(Result) { count++ })))
	assert.Equal(t, 3, count)

	fail := errors.New("second")
	calls := 0
	err := b.RunN(3, func() error {
		calls++
		if calls == 2 {
			return fail
		}
		return nil
	}, nil)
	assert.ErrorIs(t, err, fail)
	assert.Equal(t, 2, calls)
}

func TestBench_Attach(t *testing.T) {
	b := newFakeBench(t, 0)
	other := newFakeBench(t, 0)

	plain := forkjoin.NewPool()
	defer plain.Close()
	assert.ErrorIs(t, b.Attach(plain), ErrNotAdmitted)
	assert.Panics(t, func() { MustAttach(b, plain) })

	foreign := forkjoin.NewPool(forkjoin.WithThreadFactory(other.ThreadFactory(nil)))
	defer foreign.Close()
	assert.ErrorIs(t, b.Attach(foreign), ErrNotAdmitted)

	own := forkjoin.NewPool(forkjoin.WithThreadFactory(b.ThreadFactory(nil)))
	defer own.Close()
	assert.NoError(t, b.Attach(own))
}

func TestBench_RequiresAllMetrics(t *testing.T) {
	_, err := New(WithMetrics(Metrics{User: newFakeMetric("user", 0)}))
	assert.Error(t, err)
}

func TestBench_DefaultMetricsMeasureRealWork(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	pool := newAdmittedPool(t, b, 2)

	var got Result
	err = b.Run(func() error {
		if err := fanOut(pool, 2)(); err != nil {
			return err
		}
		deadline := time.Now().Add(30 * time.Millisecond)
		for time.Now().Before(deadline) {
			sink = make([]byte, 64<<10)
		}
		return nil
	}, ListenerFunc(func(r Result) { got = r }))
	require.NoError(t, err)

	assert.Positive(t, got.CPU.Sum)
	assert.Positive(t, got.Alloc.Sum)
	assert.GreaterOrEqual(t, got.CPU.Min, int64(0))
	assert.Equal(t, int64(3), got.CPU.Count)
}

var sink []byte
