package testfixtures

import (
	"sync"
	"time"
)

// Clock is a manually driven time source. Services take their notion of "now"
// as an injected func, so tests swap in NowFunc and steer time explicitly.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock starts the clock at the given instant; a zero start falls back to
// the shared ReferenceTime.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now reports the instant the clock currently points at.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc adapts the clock to the func() time.Time shape services accept.
// A nil clock degrades to real time.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set jumps the clock to an arbitrary instant.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Advance moves time forward by d and reports the resulting instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// AdvanceToNextDay shifts the clock to the same wall-clock time on the
// following civil day, which is the step day-keyed session flows need.
func (c *Clock) AdvanceToNextDay() time.Time {
	return c.Advance(24 * time.Hour)
}
