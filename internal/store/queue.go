package store

import (
	"github.com/roach88/substate/internal/draft"
)

// deferredQueue is a FIFO of recipes submitted while an update was already
// in progress (typically by a listener).
//
// It is only touched by the goroutine running Update, so it needs no lock.
type deferredQueue struct {
	recipes []draft.Recipe
}

func newDeferredQueue() *deferredQueue {
	return &deferredQueue{
		recipes: make([]draft.Recipe, 0, 8),
	}
}

// Enqueue adds a recipe to the back of the queue.
func (q *deferredQueue) Enqueue(r draft.Recipe) {
	q.recipes = append(q.recipes, r)
}

// TryDequeue removes and returns the front recipe.
// Returns (nil, false) if the queue is empty.
func (q *deferredQueue) TryDequeue() (draft.Recipe, bool) {
	if len(q.recipes) == 0 {
		return nil, false
	}

	r := q.recipes[0]

	// Clear the slot so the closure can be collected.
	q.recipes[0] = nil

	if len(q.recipes) == 1 {
		q.recipes = q.recipes[:0]
	} else {
		q.recipes = q.recipes[1:]
	}

	return r, true
}

// Len returns the current queue length.
func (q *deferredQueue) Len() int {
	return len(q.recipes)
}

// Reset drops every queued recipe and returns how many were dropped.
func (q *deferredQueue) Reset() int {
	n := len(q.recipes)
	clear(q.recipes)
	q.recipes = q.recipes[:0]
	return n
}
