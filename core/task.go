package core

import (
	"context"
	"fmt"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// PanicError carries a value recovered from a panicking task together with
// the stack captured at the point of recovery.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// =============================================================================
// Context Helper
// =============================================================================

// WorkerInfo describes the pool worker executing a task.
type WorkerInfo struct {
	PoolID   string
	WorkerID int
	Thread   ThreadID
}

type workerInfoKeyType struct{}

var workerInfoKey workerInfoKeyType

// WithWorkerInfo returns a context that reports info from CurrentWorkerInfo.
func WithWorkerInfo(ctx context.Context, info WorkerInfo) context.Context {
	return context.WithValue(ctx, workerInfoKey, info)
}

// CurrentWorkerInfo retrieves the worker executing the task owning ctx.
func CurrentWorkerInfo(ctx context.Context) (WorkerInfo, bool) {
	if v := ctx.Value(workerInfoKey); v != nil {
		return v.(WorkerInfo), true
	}
	return WorkerInfo{}, false
}
