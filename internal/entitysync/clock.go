package entitysync

import "sync/atomic"

// Clock is a monotonic logical clock stamping applied updates.
//
// Every applied update gets a strictly increasing seq. The store uses it to
// reject stale writes and to order reads; watches use it to tell updates
// applied before registration from those applied after.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming from a known seq, typically the
// store's MaxSeq after a restart.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
