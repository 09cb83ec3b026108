package pass

import "sync/atomic"

// Sequencer hands out decision sequence numbers.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock. The first call to Next returns 1.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock that continues after start. Used to append
// decisions of a new run after the last stored sequence number.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
