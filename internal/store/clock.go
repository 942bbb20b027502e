package store

import "sync/atomic"

// RevisionSource issues revisions for committed updates.
// Clock is the default; tests may substitute a resettable clock.
type RevisionSource interface {
	Next() int64
	Current() int64
}

// Clock is the monotonic logical clock behind Store.Revision.
//
// Each committed update takes the next value. Updates that fail or change
// nothing do not advance it.
//
// Reads are atomic so a revision can be sampled from another goroutine;
// only the goroutine running Update advances it.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific revision.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new revision.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current revision without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
