package forkjoin

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Swind/go-forkjoin-bench/core"
)

// ErrPoolClosed is returned for work submitted after Close.
var ErrPoolClosed = errors.New("forkjoin: pool closed")

// defaultCompensationHeadroom bounds how many extra threads managed blocking
// may add on top of the target parallelism.
const defaultCompensationHeadroom = 256

// Pool is a work-stealing pool of worker threads.
//
// Workers are created lazily: a submission starts a new worker only when no
// worker is idle and fewer than Parallelism unblocked workers exist. Every
// worker runs on its own OS thread for its whole life and never retires
// while the pool is open, so the set of threads only grows.
//
// Tasks forked from inside a worker go to that worker's deque; everything
// else goes to a shared FIFO queue. Idle workers steal from the top of other
// workers' deques.
type Pool struct {
	id          string
	parallelism int
	maxWorkers  int
	factory     core.ThreadFactory
	scheduler   *core.TaskScheduler
	logger      core.Logger
	metrics     core.Metrics

	mu      sync.RWMutex
	workers []*worker

	idle    atomic.Int32
	blocked atomic.Int32
	steals  atomic.Int64
	victim  atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

type worker struct {
	id     int
	pool   *Pool
	deque  *core.WorkDeque
	thread atomic.Int64
	// ctx is written once on the worker's own thread before its first task.
	ctx context.Context
}

type workerKeyType struct{}

var workerKey workerKeyType

type poolOptions struct {
	id          string
	parallelism int
	maxWorkers  int
	factory     core.ThreadFactory
	logger      core.Logger
	config      core.TaskSchedulerConfig
}

// Option configures a Pool.
type Option func(*poolOptions)

// WithID names the pool in logs, metrics and thread names.
func WithID(id string) Option {
	return func(o *poolOptions) { o.id = id }
}

// WithParallelism sets the target number of concurrently running workers.
func WithParallelism(n int) Option {
	return func(o *poolOptions) { o.parallelism = n }
}

// WithMaxWorkers caps the number of threads the pool may ever create,
// including compensation threads for managed blocking.
func WithMaxWorkers(n int) Option {
	return func(o *poolOptions) { o.maxWorkers = n }
}

// WithThreadFactory sets the factory every worker thread is created through.
func WithThreadFactory(f core.ThreadFactory) Option {
	return func(o *poolOptions) { o.factory = f }
}

// WithLogger sets the pool logger.
func WithLogger(l core.Logger) Option {
	return func(o *poolOptions) { o.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m core.Metrics) Option {
	return func(o *poolOptions) { o.config.Metrics = m }
}

// WithPanicHandler sets the handler for panics escaping plain tasks.
func WithPanicHandler(h core.PanicHandler) Option {
	return func(o *poolOptions) { o.config.PanicHandler = h }
}

// WithRejectedTaskHandler sets the handler for tasks posted after Close.
func WithRejectedTaskHandler(h core.RejectedTaskHandler) Option {
	return func(o *poolOptions) { o.config.RejectedTaskHandler = h }
}

// NewPool creates an open pool. No thread is started until work arrives.
func NewPool(opts ...Option) *Pool {
	o := poolOptions{
		id:          "forkjoin-pool",
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.parallelism < 1 {
		o.parallelism = 1
	}
	if o.maxWorkers <= 0 {
		o.maxWorkers = o.parallelism + defaultCompensationHeadroom
	}
	if o.maxWorkers < o.parallelism {
		o.maxWorkers = o.parallelism
	}
	if o.factory == nil {
		o.factory = core.DefaultThreadFactory
	}
	if o.logger == nil {
		o.logger = core.NewNoOpLogger()
	}

	scheduler := core.NewTaskSchedulerWithConfig(o.maxWorkers, &o.config)
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		id:          o.id,
		parallelism: o.parallelism,
		maxWorkers:  o.maxWorkers,
		factory:     o.factory,
		scheduler:   scheduler,
		logger:      o.logger,
		metrics:     scheduler.GetMetrics(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID returns the ID of the pool
func (p *Pool) ID() string {
	return p.id
}

// Parallelism returns the target number of running workers.
func (p *Pool) Parallelism() int {
	return p.parallelism
}

// ThreadFactory returns the factory the pool creates its threads with.
func (p *Pool) ThreadFactory() core.ThreadFactory {
	return p.factory
}

// IsRunning reports whether the pool still accepts work.
func (p *Pool) IsRunning() bool {
	return !p.closed.Load()
}

// Execute schedules task on the pool. When ctx belongs to one of the pool's
// own tasks the task is forked onto the current worker's deque.
func (p *Pool) Execute(ctx context.Context, task core.Task) error {
	return p.post(ctx, task)
}

// Close stops accepting work, drops queued tasks and waits for every worker
// thread to finish its current task and exit.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.scheduler.Shutdown()
	p.cancel()

	// A worker being added under mu has already been counted in wg.
	p.mu.Lock()
	p.mu.Unlock()
	p.wg.Wait()

	p.mu.RLock()
	for _, w := range p.workers {
		w.deque.Clear()
	}
	p.mu.RUnlock()

	p.logger.Debug("pool closed", core.F("pool", p.id))
}

// Stats returns a snapshot of the pool state.
func (p *Pool) Stats() core.PoolStats {
	p.mu.RLock()
	workers := len(p.workers)
	p.mu.RUnlock()

	return core.PoolStats{
		ID:          p.id,
		Parallelism: p.parallelism,
		Workers:     workers,
		Idle:        int(p.idle.Load()),
		Blocked:     int(p.blocked.Load()),
		Queued:      p.scheduler.QueuedTaskCount(),
		Active:      p.scheduler.ActiveTaskCount(),
		Steals:      p.steals.Load(),
		Running:     p.IsRunning(),
	}
}

// WorkerCount returns the number of threads created so far.
func (p *Pool) WorkerCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

// Threads returns the OS thread of every worker that has started running.
func (p *Pool) Threads() []core.ThreadID {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]core.ThreadID, 0, len(p.workers))
	for _, w := range p.workers {
		if tid := w.thread.Load(); tid != 0 {
			ids = append(ids, core.ThreadID(tid))
		}
	}
	return ids
}

// Block runs wait, which is expected to park the caller. When called from a
// worker of this pool, another worker is started first if parking the
// current one would leave fewer than Parallelism workers able to run.
func (p *Pool) Block(ctx context.Context, wait func()) {
	w := p.workerFrom(ctx)
	if w == nil {
		wait()
		return
	}
	p.block(wait)
}

func (p *Pool) block(wait func()) {
	p.blocked.Add(1)
	defer p.blocked.Add(-1)

	if p.idle.Load() > 0 {
		p.scheduler.Signal()
	} else {
		p.tryAddWorker(true)
	}
	wait()
}

// awaitDone waits for done. A worker first drains its own deque, running the
// tasks it forked itself, then parks in a managed block.
func (p *Pool) awaitDone(ctx context.Context, done <-chan struct{}) {
	w := p.workerFrom(ctx)
	if w == nil {
		<-done
		return
	}
	for {
		select {
		case <-done:
			return
		default:
		}
		task, ok := w.deque.PopBottom()
		if !ok {
			break
		}
		p.runTask(w, task)
	}
	p.block(func() { <-done })
}

func (p *Pool) workerFrom(ctx context.Context) *worker {
	if ctx == nil {
		return nil
	}
	if w, ok := ctx.Value(workerKey).(*worker); ok && w.pool == p {
		return w
	}
	return nil
}

func (p *Pool) post(ctx context.Context, task core.Task) error {
	if p.closed.Load() {
		p.scheduler.Reject(p.id, "closed")
		return ErrPoolClosed
	}
	if w := p.workerFrom(ctx); w != nil {
		w.deque.PushBottom(task)
		p.scheduler.OnTaskQueued()
	} else if !p.scheduler.PostInternal(p.id, task) {
		return ErrPoolClosed
	}
	p.signalWork()
	return nil
}

func (p *Pool) signalWork() {
	if p.idle.Load() > 0 {
		p.scheduler.Signal()
		return
	}
	p.tryAddWorker(false)
}

func (p *Pool) tryAddWorker(compensating bool) bool {
	p.mu.Lock()
	n := len(p.workers)
	if p.closed.Load() || n >= p.maxWorkers || n-int(p.blocked.Load()) >= p.parallelism {
		p.mu.Unlock()
		return false
	}
	w := &worker{id: n, pool: p, deque: core.NewWorkDeque()}
	p.workers = append(p.workers, w)
	p.wg.Add(1)
	p.mu.Unlock()

	p.metrics.RecordWorkerStarted(p.id, compensating)
	p.logger.Debug("starting worker",
		core.F("pool", p.id),
		core.F("worker", w.id),
		core.F("compensating", compensating))

	p.factory.NewThread(fmt.Sprintf("%s-worker-%d", p.id, w.id), func() {
		p.workerLoop(w)
	})
	return true
}

// workerLoop is the main loop for each worker
func (p *Pool) workerLoop(w *worker) {
	defer p.wg.Done()

	tid := core.CurrentThreadID()
	w.thread.Store(int64(tid))
	info := core.WorkerInfo{PoolID: p.id, WorkerID: w.id, Thread: tid}
	w.ctx = context.WithValue(core.WithWorkerInfo(p.ctx, info), workerKey, w)
	stopCh := p.ctx.Done()

	for p.ctx.Err() == nil {
		task, ok := p.findWork(w)
		if !ok {
			// Announce idleness before the second look so that a producer
			// either sees us idle or we see its task.
			p.idle.Add(1)
			task, ok = p.findWork(w)
			if !ok {
				woke := p.scheduler.Wait(stopCh)
				p.idle.Add(-1)
				if !woke {
					return
				}
				continue
			}
			p.idle.Add(-1)
		}
		p.runTask(w, task)
	}
}

func (p *Pool) findWork(w *worker) (core.Task, bool) {
	if task, ok := w.deque.PopBottom(); ok {
		return task, true
	}
	if task, ok := p.scheduler.Pop(); ok {
		return task, true
	}
	return p.steal(w)
}

func (p *Pool) steal(self *worker) (core.Task, bool) {
	p.mu.RLock()
	workers := p.workers
	p.mu.RUnlock()

	n := len(workers)
	if n < 2 {
		return nil, false
	}
	start := int(p.victim.Add(1) % uint64(n))
	for i := range n {
		victim := workers[(start+i)%n]
		if victim == self {
			continue
		}
		if task, ok := victim.deque.Steal(); ok {
			p.steals.Add(1)
			p.metrics.RecordSteal(p.id)
			return task, true
		}
	}
	return nil, false
}

// runTask executes task and captures panic
func (p *Pool) runTask(w *worker, task core.Task) {
	p.scheduler.OnTaskStart()
	start := time.Now()

	defer func() {
		p.scheduler.OnTaskEnd()
		p.metrics.RecordTaskDuration(p.id, time.Since(start))
		if r := recover(); r != nil {
			p.metrics.RecordTaskPanic(p.id, r)
			p.scheduler.GetPanicHandler().HandlePanic(w.ctx, p.id, w.id, r, debug.Stack())
		}
	}()
	task(w.ctx)
}

// =============================================================================
// Common Pool Helper (Singleton)
// =============================================================================

var (
	commonPool *Pool
	commonMu   sync.Mutex
)

// InitCommonPool creates the process-wide pool with opts. Later calls return
// the existing pool and ignore opts.
func InitCommonPool(opts ...Option) *Pool {
	commonMu.Lock()
	defer commonMu.Unlock()

	if commonPool == nil {
		opts = append([]Option{WithID("common-pool")}, opts...)
		commonPool = NewPool(opts...)
	}
	return commonPool
}

// CommonPool returns the process-wide pool.
// It panics if InitCommonPool has not been called.
func CommonPool() *Pool {
	commonMu.Lock()
	defer commonMu.Unlock()

	if commonPool == nil {
		panic("common pool not initialized. Call InitCommonPool() first.")
	}
	return commonPool
}

// ShutdownCommonPool closes the process-wide pool.
func ShutdownCommonPool() {
	commonMu.Lock()
	defer commonMu.Unlock()

	if commonPool != nil {
		commonPool.Close()
		commonPool = nil
	}
}
