package bus

import "sync/atomic"

// Clock hands out the logical sequence numbers that order executions and
// firings. It is safe for concurrent use.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock {
	return new(Clock)
}

// NewClockAt returns a clock whose first Next is after+1, e.g. to continue
// numbering after the last journaled seq.
func NewClockAt(after int64) *Clock {
	c := new(Clock)
	c.last.Store(after)
	return c
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 { return c.last.Add(1) }

// Current returns the last value handed out, or the starting point.
func (c *Clock) Current() int64 { return c.last.Load() }
