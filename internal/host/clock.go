// internal/host/clock.go

package host

import "time"

// Clock is a monotonic clock reporting elapsed time since its origin.
type Clock struct {
	origin time.Time
}

// NewClock creates a clock whose origin is now.
func NewClock() *Clock {
	return &Clock{origin: time.Now()}
}

// Now returns the time elapsed since the origin. time.Since uses the
// monotonic reading, so wall clock changes do not affect it.
func (c *Clock) Now() time.Duration {
	return time.Since(c.origin)
}

// Origin returns the wall clock time the clock started at.
func (c *Clock) Origin() time.Time { return c.origin }
