package core

import (
	"sync/atomic"
)

// TaskScheduler owns the state a pool's workers share: the submission queue
// for tasks posted from outside the pool, the wake-up signal for idle
// workers, and the queued/active counters.
type TaskScheduler struct {
	queue  *FIFOTaskQueue
	signal chan struct{}

	metricQueued int32 // Waiting in the submission queue or a worker deque
	metricActive int32 // Executing in Worker

	// Handlers and Metrics
	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler

	// Lifecycle
	shuttingDown int32 // atomic flag
}

func NewTaskScheduler(maxWorkers int) *TaskScheduler {
	return NewTaskSchedulerWithConfig(maxWorkers, DefaultTaskSchedulerConfig())
}

func NewTaskSchedulerWithConfig(maxWorkers int, config *TaskSchedulerConfig) *TaskScheduler {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	s := &TaskScheduler{
		queue:  NewFIFOTaskQueue(),
		signal: make(chan struct{}, maxWorkers*2),
	}

	// Apply config
	if config != nil {
		s.panicHandler = config.PanicHandler
		s.metrics = config.Metrics
		s.rejectedTaskHandler = config.RejectedTaskHandler
	}

	// Use defaults if not provided
	if s.panicHandler == nil {
		s.panicHandler = &DefaultPanicHandler{}
	}
	if s.metrics == nil {
		s.metrics = &NilMetrics{}
	}
	if s.rejectedTaskHandler == nil {
		s.rejectedTaskHandler = &DefaultRejectedTaskHandler{}
	}

	return s
}

// PostInternal queues task on the shared submission queue. It reports false
// when the scheduler is shutting down and the task was dropped.
func (s *TaskScheduler) PostInternal(pool string, task Task) bool {
	if atomic.LoadInt32(&s.shuttingDown) == 1 {
		s.Reject(pool, "shutting down")
		return false
	}

	s.queue.Push(task)
	s.OnTaskQueued()
	return true
}

// Reject reports a task that will never run.
func (s *TaskScheduler) Reject(pool string, reason string) {
	s.rejectedTaskHandler.HandleRejectedTask(pool, reason)
	s.metrics.RecordTaskRejected(pool, reason)
}

// Pop takes the oldest task from the submission queue.
func (s *TaskScheduler) Pop() (Task, bool) {
	return s.queue.Pop()
}

// Signal wakes one waiting worker, if any.
func (s *TaskScheduler) Signal() {
	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full, every waiter will wake up anyway.
		// This is not an error, just a optimization hint
	}
}

// Wait parks the calling worker until Signal is called or stopCh closes.
// It reports false when stopCh closed.
func (s *TaskScheduler) Wait(stopCh <-chan struct{}) bool {
	select {
	case <-s.signal:
		return true
	case <-stopCh:
		return false
	}
}

func (s *TaskScheduler) IsShuttingDown() bool {
	return atomic.LoadInt32(&s.shuttingDown) == 1
}

func (s *TaskScheduler) Shutdown() {
	// 1. Mark as shutting down to stop accepting new tasks
	atomic.StoreInt32(&s.shuttingDown, 1)

	// 2. Clear queue to release all task references
	s.queue.Clear()
}

// Metrics
func (s *TaskScheduler) QueuedTaskCount() int { return int(atomic.LoadInt32(&s.metricQueued)) }
func (s *TaskScheduler) ActiveTaskCount() int { return int(atomic.LoadInt32(&s.metricActive)) }

// OnTaskQueued is called for every task entering a queue, shared or local.
func (s *TaskScheduler) OnTaskQueued() {
	atomic.AddInt32(&s.metricQueued, 1)
}

// OnTaskStart is called when a worker takes a task out of any queue.
func (s *TaskScheduler) OnTaskStart() {
	atomic.AddInt32(&s.metricQueued, -1)
	atomic.AddInt32(&s.metricActive, 1)
}

func (s *TaskScheduler) OnTaskEnd() {
	atomic.AddInt32(&s.metricActive, -1)
}

// GetPanicHandler returns the panic handler for this scheduler
func (s *TaskScheduler) GetPanicHandler() PanicHandler {
	return s.panicHandler
}

// GetMetrics returns the metrics collector for this scheduler
func (s *TaskScheduler) GetMetrics() Metrics {
	return s.metrics
}
