//go:build !linux

package core

// Thread ids are not exposed on this platform. Every thread reports -1 and
// per-thread accounting refuses to start.
func gettid() int {
	return -1
}
