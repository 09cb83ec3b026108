package testutil

import "sync"

// RecordingClock is a logical clock for tests that remembers every
// sequence number it handed out. It satisfies pass.Sequencer. A fresh clock
// starts at 1, so reports of the same scenario number their decisions the
// same way on every run.
type RecordingClock struct {
	mu     sync.Mutex
	next   int64
	issued []int64
}

// NewRecordingClock returns a clock whose first Next is 1.
func NewRecordingClock() *RecordingClock {
	return NewRecordingClockAt(0)
}

// NewRecordingClockAt returns a clock whose first Next is after+1, the way
// a run appended to an existing decision log is numbered.
func NewRecordingClockAt(after int64) *RecordingClock {
	return &RecordingClock{next: after + 1}
}

// Next hands out the next sequence number.
func (c *RecordingClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.next
	c.next++
	c.issued = append(c.issued, n)
	return n
}

// Issued returns the numbers handed out so far, in order.
func (c *RecordingClock) Issued() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, len(c.issued))
	copy(out, c.issued)
	return out
}
