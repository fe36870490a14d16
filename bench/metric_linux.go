//go:build linux

package bench

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Per-thread CPU clock ids, see CPUCLOCK_* in the kernel's
// include/linux/posix-timers.h. Any thread of the calling process can be
// sampled this way, not only the current one.
const (
	cpuClockVirt      = 1 // user time
	cpuClockSched     = 2 // user + system time, scheduler precision
	cpuClockPerThread = 4
)

func threadClock(tid int, kind int32) int32 {
	return (^int32(tid))<<3 | cpuClockPerThread | kind
}

func readThreadClock(t Thread, kind int32) (int64, error) {
	if t.ID <= 0 {
		return 0, fmt.Errorf("thread %s: %w", t, ErrThreadGone)
	}
	var ts unix.Timespec
	if err := unix.ClockGettime(threadClock(int(t.ID), kind), &ts); err != nil {
		if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ESRCH) {
			return 0, fmt.Errorf("thread %s: %w", t, ErrThreadGone)
		}
		return 0, fmt.Errorf("thread %s: clock_gettime: %w", t, err)
	}
	return ts.Nano(), nil
}

// UserTime is the CPU time a thread spent in user mode, in nanoseconds.
type UserTime struct{}

func (UserTime) Name() string { return "user" }
func (UserTime) Unit() Unit   { return UnitNanoseconds }

func (UserTime) Read(t Thread) (int64, error) {
	return readThreadClock(t, cpuClockVirt)
}

// CPUTime is the CPU time a thread spent in user and system mode, in
// nanoseconds.
type CPUTime struct{}

func (CPUTime) Name() string { return "cpu" }
func (CPUTime) Unit() Unit   { return UnitNanoseconds }

func (CPUTime) Read(t Thread) (int64, error) {
	return readThreadClock(t, cpuClockSched)
}
