package engine

import "time"

// Clock abstracts time.Now() to allow deterministic testing.
// The service reads "today" from it before calling into the engine, which
// never reads the wall clock itself.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}
