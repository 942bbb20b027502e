package testutil

import "sync"

// RevisionClock is a resettable revision source for stores under test.
//
// It satisfies store.RevisionSource. Unlike store.Clock it remembers every
// revision it issued and can be rewound, so one scenario can be replayed
// against a fresh store and produce identical revisions.
//
// Thread-safety: All methods are safe for concurrent use.
type RevisionClock struct {
	mu     sync.Mutex
	start  int64
	seq    int64
	issued []int64
}

// NewRevisionClock creates a clock at start. The first Next returns
// start+1.
func NewRevisionClock(start int64) *RevisionClock {
	return &RevisionClock{start: start, seq: start}
}

// Next advances the clock and returns the new revision.
func (c *RevisionClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.issued = append(c.issued, c.seq)
	return c.seq
}

// Current returns the last issued revision (or start).
func (c *RevisionClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Issued returns a copy of every revision handed out since the last Reset.
func (c *RevisionClock) Issued() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, len(c.issued))
	copy(out, c.issued)
	return out
}

// Reset rewinds the clock to its start value.
func (c *RevisionClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = c.start
	c.issued = nil
}
