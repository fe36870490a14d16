package forkjoin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Swind/go-forkjoin-bench/core"
)

type countingFactory struct {
	created atomic.Int32
	names   sync.Map
}

func (f *countingFactory) NewThread(name string, body func()) {
	f.created.Add(1)
	f.names.Store(name, true)
	core.DefaultThreadFactory.NewThread(name, body)
}

type recordingPanicHandler struct {
	mu     sync.Mutex
	values []any
}

func (h *recordingPanicHandler) HandlePanic(ctx context.Context, poolID string, workerID int, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values = append(h.values, panicInfo)
}

func (h *recordingPanicHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.values)
}

type recordingRejectedHandler struct {
	rejected atomic.Int32
}

func (h *recordingRejectedHandler) HandleRejectedTask(poolID string, reason string) {
	h.rejected.Add(1)
}

type countingMetrics struct {
	core.NilMetrics
	started      atomic.Int32
	compensating atomic.Int32
	durations    atomic.Int32
	steals       atomic.Int32
}

func (m *countingMetrics) RecordWorkerStarted(poolID string, compensating bool) {
	m.started.Add(1)
	if compensating {
		m.compensating.Add(1)
	}
}

func (m *countingMetrics) RecordTaskDuration(poolID string, d time.Duration) {
	m.durations.Add(1)
}

func (m *countingMetrics) RecordSteal(poolID string) {
	m.steals.Add(1)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPool_Lifecycle(t *testing.T) {
	pool := NewPool(WithID("test-pool"), WithParallelism(2))

	if pool.ID() != "test-pool" {
		t.Errorf("expected ID 'test-pool', got %s", pool.ID())
	}
	if !pool.IsRunning() {
		t.Error("pool should be running after NewPool()")
	}
	if pool.WorkerCount() != 0 {
		t.Errorf("expected no workers before the first task, got %d", pool.WorkerCount())
	}
	if pool.Parallelism() != 2 {
		t.Errorf("expected parallelism 2, got %d", pool.Parallelism())
	}

	pool.Close()
	pool.Close() // idempotent

	if pool.IsRunning() {
		t.Error("pool should not be running after Close()")
	}
}

func TestPool_Defaults(t *testing.T) {
	pool := NewPool(WithParallelism(0), WithMaxWorkers(-1))
	defer pool.Close()

	if pool.Parallelism() != 1 {
		t.Errorf("expected parallelism clamped to 1, got %d", pool.Parallelism())
	}
	if pool.maxWorkers != 1+defaultCompensationHeadroom {
		t.Errorf("expected default max workers %d, got %d", 1+defaultCompensationHeadroom, pool.maxWorkers)
	}
	if pool.ThreadFactory() != core.DefaultThreadFactory {
		t.Error("expected the default thread factory")
	}
}

func TestPool_TaskExecution(t *testing.T) {
	pool := NewPool(WithParallelism(4))
	defer pool.Close()

	var counter int32
	var wg sync.WaitGroup
	taskCount := 20
	wg.Add(taskCount)

	for i := 0; i < taskCount; i++ {
		err := pool.Execute(context.Background(), func(ctx context.Context) {
			defer wg.Done()
			atomic.AddInt32(&counter, 1)
		})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
	}
	wg.Wait()

	if val := atomic.LoadInt32(&counter); val != int32(taskCount) {
		t.Errorf("expected %d executed tasks, got %d", taskCount, val)
	}
	if n := pool.WorkerCount(); n < 1 || n > 4 {
		t.Errorf("expected between 1 and 4 workers, got %d", n)
	}
}

func TestPool_WorkersCreatedThroughFactory(t *testing.T) {
	factory := &countingFactory{}
	pool := NewPool(WithID("factory-pool"), WithParallelism(3), WithThreadFactory(factory))
	defer pool.Close()

	if pool.ThreadFactory() != factory {
		t.Fatal("ThreadFactory() should return the injected factory")
	}

	// Three tasks that wait for each other need three threads.
	var started sync.WaitGroup
	started.Add(3)
	var done sync.WaitGroup
	done.Add(3)
	for i := 0; i < 3; i++ {
		pool.Execute(context.Background(), func(ctx context.Context) {
			defer done.Done()
			started.Done()
			started.Wait()
		})
	}
	done.Wait()

	if got := factory.created.Load(); got != 3 {
		t.Errorf("expected 3 threads from the factory, got %d", got)
	}
	if got := pool.WorkerCount(); got != 3 {
		t.Errorf("expected 3 workers, got %d", got)
	}
	if _, ok := factory.names.Load("factory-pool-worker-0"); !ok {
		t.Error("expected worker thread names derived from the pool id")
	}
}

func TestPool_IdleWorkerIsReused(t *testing.T) {
	pool := NewPool(WithParallelism(4))
	defer pool.Close()

	for i := 0; i < 5; i++ {
		done := make(chan struct{})
		pool.Execute(context.Background(), func(ctx context.Context) { close(done) })
		<-done
		waitFor(t, "worker to go idle", func() bool { return pool.Stats().Idle == 1 })
	}

	if got := pool.WorkerCount(); got != 1 {
		t.Errorf("expected a single reused worker, got %d", got)
	}
}

func TestPool_WorkerInfoInContext(t *testing.T) {
	pool := NewPool(WithID("info-pool"), WithParallelism(1))
	defer pool.Close()

	infoCh := make(chan core.WorkerInfo, 1)
	pool.Execute(context.Background(), func(ctx context.Context) {
		info, ok := core.CurrentWorkerInfo(ctx)
		if !ok {
			t.Error("task context should carry worker info")
		}
		infoCh <- info
	})
	info := <-infoCh

	if info.PoolID != "info-pool" {
		t.Errorf("expected pool id 'info-pool', got %s", info.PoolID)
	}
	if info.WorkerID != 0 {
		t.Errorf("expected worker 0, got %d", info.WorkerID)
	}
	threads := pool.Threads()
	if len(threads) != 1 || threads[0] != info.Thread {
		t.Errorf("expected Threads() to report %v, got %v", info.Thread, threads)
	}
}

func TestPool_PanicHandler(t *testing.T) {
	handler := &recordingPanicHandler{}
	metrics := &countingMetrics{}
	pool := NewPool(WithParallelism(1), WithPanicHandler(handler), WithMetrics(metrics))
	defer pool.Close()

	pool.Execute(context.Background(), func(ctx context.Context) {
		panic("boom")
	})

	// The worker survives and keeps running tasks.
	done := make(chan struct{})
	pool.Execute(context.Background(), func(ctx context.Context) { close(done) })
	<-done

	if handler.count() != 1 {
		t.Errorf("expected 1 panic, got %d", handler.count())
	}
	if pool.WorkerCount() != 1 {
		t.Errorf("expected the panicking worker to survive, got %d workers", pool.WorkerCount())
	}
	waitFor(t, "task durations", func() bool { return metrics.durations.Load() == 2 })
}

func TestPool_CloseRejectsWork(t *testing.T) {
	rejected := &recordingRejectedHandler{}
	pool := NewPool(WithRejectedTaskHandler(rejected))
	pool.Close()

	err := pool.Execute(context.Background(), func(ctx context.Context) {
		t.Error("task should not run on a closed pool")
	})
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
	if rejected.rejected.Load() != 1 {
		t.Errorf("expected 1 rejected task, got %d", rejected.rejected.Load())
	}
}

func TestPool_CloseWaitsForRunningTask(t *testing.T) {
	pool := NewPool(WithParallelism(1))

	started := make(chan struct{})
	var finished atomic.Bool
	pool.Execute(context.Background(), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
	})
	<-started

	pool.Close()

	if !finished.Load() {
		t.Error("Close returned before the running task finished")
	}
	if pool.Stats().Running {
		t.Error("stats should report a stopped pool")
	}
}

func TestPool_Stats(t *testing.T) {
	pool := NewPool(WithID("stats-pool"), WithParallelism(1))
	defer pool.Close()

	block := make(chan struct{})
	pool.Execute(context.Background(), func(ctx context.Context) { <-block })
	waitFor(t, "task to start", func() bool { return pool.Stats().Active == 1 })

	pool.Execute(context.Background(), func(ctx context.Context) {})
	pool.Execute(context.Background(), func(ctx context.Context) {})

	stats := pool.Stats()
	if stats.ID != "stats-pool" || stats.Parallelism != 1 || !stats.Running {
		t.Errorf("unexpected stats header: %+v", stats)
	}
	if stats.Queued != 2 {
		t.Errorf("expected 2 queued tasks, got %d", stats.Queued)
	}
	if stats.Workers != 1 {
		t.Errorf("expected 1 worker, got %d", stats.Workers)
	}

	close(block)
	waitFor(t, "queue to drain", func() bool {
		s := pool.Stats()
		return s.Queued == 0 && s.Active == 0
	})
}

func TestPool_StealsForkedTasks(t *testing.T) {
	metrics := &countingMetrics{}
	pool := NewPool(WithParallelism(2), WithMetrics(metrics))
	defer pool.Close()

	childRan := make(chan core.WorkerInfo, 1)
	parentDone := make(chan core.WorkerInfo, 1)
	pool.Execute(context.Background(), func(ctx context.Context) {
		// Forked onto this worker's deque; this worker then waits without
		// helping, so only a thief can run the child.
		pool.Execute(ctx, func(ctx context.Context) {
			info, _ := core.CurrentWorkerInfo(ctx)
			childRan <- info
		})
		child := <-childRan
		parent, _ := core.CurrentWorkerInfo(ctx)
		if child.WorkerID == parent.WorkerID {
			t.Error("child should have been stolen by another worker")
		}
		parentDone <- parent
	})

	select {
	case <-parentDone:
	case <-time.After(5 * time.Second):
		t.Fatal("forked task was never stolen")
	}

	if pool.Stats().Steals < 1 {
		t.Errorf("expected at least one steal, got %d", pool.Stats().Steals)
	}
	if metrics.steals.Load() < 1 {
		t.Error("expected the steal to be recorded in metrics")
	}
}

func TestPool_BlockCompensates(t *testing.T) {
	metrics := &countingMetrics{}
	pool := NewPool(WithParallelism(1), WithMaxWorkers(2), WithMetrics(metrics))
	defer pool.Close()

	release := make(chan struct{})
	blocked := make(chan struct{})
	pool.Execute(context.Background(), func(ctx context.Context) {
		pool.Block(ctx, func() {
			close(blocked)
			<-release
		})
	})
	<-blocked

	// With the only worker parked, this task needs the compensation thread.
	ran := make(chan struct{})
	pool.Execute(context.Background(), func(ctx context.Context) { close(ran) })

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("blocked worker was not compensated")
	}
	close(release)

	if got := pool.WorkerCount(); got != 2 {
		t.Errorf("expected 2 workers, got %d", got)
	}
	if got := metrics.compensating.Load(); got != 1 {
		t.Errorf("expected 1 compensating worker, got %d", got)
	}
}

func TestPool_BlockOutsidePoolJustWaits(t *testing.T) {
	pool := NewPool(WithParallelism(1))
	defer pool.Close()

	called := false
	pool.Block(context.Background(), func() { called = true })
	if !called {
		t.Error("wait should run")
	}
	if pool.WorkerCount() != 0 {
		t.Error("blocking outside the pool must not start workers")
	}
}

func TestCommonPool(t *testing.T) {
	defer ShutdownCommonPool()

	p1 := InitCommonPool(WithParallelism(2))
	p2 := InitCommonPool(WithParallelism(8))
	if p1 != p2 {
		t.Error("InitCommonPool should return the existing pool")
	}
	if CommonPool() != p1 {
		t.Error("CommonPool should return the initialized pool")
	}
	if p1.Parallelism() != 2 {
		t.Errorf("expected parallelism 2, got %d", p1.Parallelism())
	}
	if p1.ID() != "common-pool" {
		t.Errorf("expected id 'common-pool', got %s", p1.ID())
	}

	ShutdownCommonPool()
	if p1.IsRunning() {
		t.Error("common pool should be closed")
	}

	defer func() {
		if recover() == nil {
			t.Error("CommonPool should panic when not initialized")
		}
	}()
	CommonPool()
}
