package bench

import "time"

// Result is what one successful run measured.
type Result struct {
	Started time.Time     `json:"started" yaml:"started"`
	Real    time.Duration `json:"real_ns" yaml:"real_ns"`
	User    Summary       `json:"user_ns" yaml:"user_ns"`
	CPU     Summary       `json:"cpu_ns" yaml:"cpu_ns"`
	Alloc   Summary       `json:"alloc_bytes" yaml:"alloc_bytes"`
	// Workers is the number of worker threads registered when the run ended.
	Workers int `json:"workers" yaml:"workers"`
}

// UserTime returns the user CPU time summed over all accounted threads.
func (r Result) UserTime() time.Duration {
	return time.Duration(r.User.Sum)
}

// CPUTime returns the total CPU time summed over all accounted threads.
func (r Result) CPUTime() time.Duration {
	return time.Duration(r.CPU.Sum)
}

// MaxThreadCPU returns the CPU time of the busiest thread.
func (r Result) MaxThreadCPU() time.Duration {
	return time.Duration(r.CPU.Max)
}

// Sys returns the system CPU time, total CPU minus user CPU, clamped at 0.
// The two clocks are sampled separately and with different precision, so
// the raw difference can dip below zero for tiny runs.
func (r Result) Sys() time.Duration {
	sys := r.CPU.Sum - r.User.Sum
	if sys < 0 {
		return 0
	}
	return time.Duration(sys)
}

// Listener receives the result of every successful run. It is called
// synchronously on the goroutine that called Run, after the run lock has
// been released, and never for a failed run.
type Listener interface {
	Result(r Result)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(r Result)

// Result calls f(r).
func (f ListenerFunc) Result(r Result) {
	f(r)
}

type multiListener []Listener

func (m multiListener) Result(r Result) {
	for _, l := range m {
		l.Result(r)
	}
}

// Listeners fans a result out to every non-nil listener in order.
func Listeners(ls ...Listener) Listener {
	out := make(multiListener, 0, len(ls))
	for _, l := range ls {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}
