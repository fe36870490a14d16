package bench

import (
	"errors"
	"fmt"

	"github.com/Swind/go-forkjoin-bench/core"
)

var (
	// ErrThreadGone is returned when a metric is read for a thread that no
	// longer exists.
	ErrThreadGone = errors.New("bench: thread no longer exists")

	// ErrUnsupported is returned by metrics on platforms without per-thread
	// accounting.
	ErrUnsupported = errors.New("bench: per-thread accounting unsupported on this platform")
)

// Thread is the registry key for one accounted thread. The run owner is
// registered with Caller set, pool workers without.
type Thread struct {
	ID     core.ThreadID
	Caller bool
}

func (t Thread) String() string {
	if t.Caller {
		return fmt.Sprintf("caller(%s)", t.ID)
	}
	return fmt.Sprintf("worker(%s)", t.ID)
}

// Unit is the unit a metric counts in.
type Unit int

const (
	UnitNanoseconds Unit = iota
	UnitBytes
)

func (u Unit) String() string {
	switch u {
	case UnitNanoseconds:
		return "ns"
	case UnitBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Metric reads a cumulative, non-decreasing per-thread counter.
type Metric interface {
	Name() string
	Unit() Unit
	// Read returns the absolute counter value for t.
	Read(t Thread) (int64, error)
}

// Metrics groups the three dimensions a bench accounts for.
type Metrics struct {
	User  Metric
	CPU   Metric
	Alloc Metric
}

// DefaultMetrics returns the platform metric sources: per-thread user and
// total CPU clocks plus heap allocation.
func DefaultMetrics() Metrics {
	return Metrics{
		User:  UserTime{},
		CPU:   CPUTime{},
		Alloc: AllocatedBytes{},
	}
}

func (m Metrics) validate() error {
	if m.User == nil || m.CPU == nil || m.Alloc == nil {
		return errors.New("bench: user, cpu and alloc metrics are all required")
	}
	return nil
}
