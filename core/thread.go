package core

import (
	"runtime"
	"strconv"
)

// ThreadID identifies an OS thread. On Linux it is the kernel thread id.
// It is only meaningful while the goroutine asking for it stays locked to
// its thread.
type ThreadID int

func (id ThreadID) String() string {
	return strconv.Itoa(int(id))
}

// CurrentThreadID returns the id of the OS thread running the caller.
// Callers that need a stable answer must hold runtime.LockOSThread.
func CurrentThreadID() ThreadID {
	return ThreadID(gettid())
}

// =============================================================================
// ThreadFactory: creation of pool worker threads
// =============================================================================

// ThreadFactory creates the OS threads a pool runs its workers on.
//
// NewThread must arrange for body to run on a fresh goroutine that is locked
// to its OS thread for the whole life of body. Factories may wrap another
// factory to observe every thread the pool creates; anything a wrapper does
// before calling the wrapped body happens before the worker runs any task.
type ThreadFactory interface {
	NewThread(name string, body func())
}

// ThreadFactoryFunc adapts a function to ThreadFactory.
type ThreadFactoryFunc func(name string, body func())

// NewThread calls f(name, body).
func (f ThreadFactoryFunc) NewThread(name string, body func()) {
	f(name, body)
}

type defaultThreadFactory struct{}

// NewThread starts body on a new goroutine pinned to its own OS thread.
// The goroutine never unlocks, so the thread exits together with body.
func (defaultThreadFactory) NewThread(name string, body func()) {
	go func() {
		runtime.LockOSThread()
		body()
	}()
}

// DefaultThreadFactory is the factory pools use when none is configured.
var DefaultThreadFactory ThreadFactory = defaultThreadFactory{}
