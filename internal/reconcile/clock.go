package reconcile

import "sync/atomic"

// Clock hands out mutation sequence numbers for replica writes. Pending rows
// are pushed in sequence order, and an acknowledgement applies only while a
// row still carries the sequence that was pushed, so a sequence must never
// be issued twice for the same replica.
//
// Clock is safe for concurrent use.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first sequence is 1.
func NewClock() *Clock {
	return NewClockAt(0)
}

// NewClockAt returns a clock that continues after last, the highest
// sequence already stored in the replica.
func NewClockAt(last int64) *Clock {
	c := &Clock{}
	c.last.Store(last)
	return c
}

// Next issues the next sequence.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}

// Current returns the last sequence issued or observed.
func (c *Clock) Current() int64 {
	return c.last.Load()
}

// Observe moves the clock up to seq when another writer to the same replica
// has already used it. Lower values are ignored.
func (c *Clock) Observe(seq int64) {
	for {
		cur := c.last.Load()
		if seq <= cur || c.last.CompareAndSwap(cur, seq) {
			return
		}
	}
}
