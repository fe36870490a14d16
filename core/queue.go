package core

import (
	"sync"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// =============================================================================
// FIFOTaskQueue: shared submission queue for tasks posted from outside a pool
// =============================================================================

type FIFOTaskQueue struct {
	mu    sync.Mutex
	tasks []Task
}

func NewFIFOTaskQueue() *FIFOTaskQueue {
	return &FIFOTaskQueue{
		tasks: make([]Task, 0, defaultQueueCap),
	}
}

func (q *FIFOTaskQueue) Push(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
}

func (q *FIFOTaskQueue) Pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}

	t := q.tasks[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	q.tasks = compact(q.tasks)

	return t, true
}

func (q *FIFOTaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *FIFOTaskQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes all tasks from the queue and releases references
func (q *FIFOTaskQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = make([]Task, 0, defaultQueueCap)
}

// =============================================================================
// WorkDeque: per-worker double ended queue
// =============================================================================

// WorkDeque holds the tasks forked by one worker. The owner pushes and pops
// at the bottom (LIFO, keeps recently forked work hot); thieves take from the
// top (FIFO, the oldest and usually largest pieces of work).
type WorkDeque struct {
	mu    sync.Mutex
	tasks []Task
}

func NewWorkDeque() *WorkDeque {
	return &WorkDeque{
		tasks: make([]Task, 0, defaultQueueCap),
	}
}

// PushBottom is called by the owning worker only.
func (d *WorkDeque) PushBottom(t Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, t)
}

// PopBottom is called by the owning worker only.
func (d *WorkDeque) PopBottom() (Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.tasks)
	if n == 0 {
		return nil, false
	}
	t := d.tasks[n-1]
	d.tasks[n-1] = nil
	d.tasks = d.tasks[:n-1]
	return t, true
}

// Steal removes the oldest task. Safe to call from any goroutine.
func (d *WorkDeque) Steal() (Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.tasks) == 0 {
		return nil, false
	}
	t := d.tasks[0]
	d.tasks[0] = nil
	d.tasks = d.tasks[1:]
	d.tasks = compact(d.tasks)
	return t, true
}

func (d *WorkDeque) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

func (d *WorkDeque) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = make([]Task, 0, defaultQueueCap)
}

// compact shrinks the backing array once the live window is a small fraction
// of it. Popping from the front leaves the dead prefix unreachable only after
// a copy.
func compact(tasks []Task) []Task {
	n := len(tasks)
	c := cap(tasks)

	if c < compactMinCap {
		return tasks
	}
	if n == 0 {
		return make([]Task, 0, defaultQueueCap)
	}
	if n*compactShrinkFactor >= c {
		return tasks
	}

	newCap := max(max(c/2, defaultQueueCap), n)
	newSlice := make([]Task, n, newCap)
	copy(newSlice, tasks)
	return newSlice
}
