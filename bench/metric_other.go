//go:build !linux

package bench

// UserTime is unavailable on this platform.
type UserTime struct{}

func (UserTime) Name() string                 { return "user" }
func (UserTime) Unit() Unit                   { return UnitNanoseconds }
func (UserTime) Read(t Thread) (int64, error) { return 0, ErrUnsupported }

// CPUTime is unavailable on this platform.
type CPUTime struct{}

func (CPUTime) Name() string                 { return "cpu" }
func (CPUTime) Unit() Unit                   { return UnitNanoseconds }
func (CPUTime) Read(t Thread) (int64, error) { return 0, ErrUnsupported }
