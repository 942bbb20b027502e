package draft

import (
	"github.com/roach88/substate/internal/path"
	"github.com/roach88/substate/internal/value"
)

// Recipe mutates a draft in place, or returns a non-nil value that replaces
// the draft's whole scope. A returned error aborts the update.
type Recipe func(d *Draft) (value.Value, error)

// Producer turns a base snapshot and a recipe into the next snapshot and
// the ordered list of change-paths between the two.
//
// Implementations must leave base untouched and must return an error
// (with no snapshot) when the recipe fails.
type Producer interface {
	Produce(base value.Value, recipe Recipe) (value.Value, []path.Path, error)
}

// CopyOnWrite is the default Producer. It runs the recipe against a Draft
// that copies containers on first write and records a change-path for each
// successful Set, Delete, and Append.
type CopyOnWrite struct{}

// Produce implements Producer.
func (CopyOnWrite) Produce(base value.Value, recipe Recipe) (value.Value, []path.Path, error) {
	return Produce(base, recipe)
}

// Produce runs recipe against a fresh draft of base.
//
// Change-paths are normalized: duplicates are dropped, a path is dropped
// when one of its ancestors also changed, and the survivors keep the order
// of their first occurrence. A recipe that changes nothing yields an empty
// list.
func Produce(base value.Value, recipe Recipe) (value.Value, []path.Path, error) {
	d := newDraft(base)
	defer func() { d.tx.done = true }()

	replacement, err := recipe(d)
	if err != nil {
		return nil, nil, err
	}
	if replacement != nil {
		if err := d.Replace(replacement); err != nil {
			return nil, nil, err
		}
	}

	return d.tx.root, Normalize(d.tx.changes), nil
}

// Normalize removes duplicate change-paths and paths subsumed by a changed
// ancestor, keeping first-occurrence order.
func Normalize(changes []path.Path) []path.Path {
	out := make([]path.Path, 0, len(changes))
	for i, p := range changes {
		if subsumed(p, changes, i) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// subsumed reports whether changes[i] repeats an earlier path or sits
// below any other changed path.
func subsumed(p path.Path, changes []path.Path, i int) bool {
	for j, q := range changes {
		if q.IsAncestorOf(p) {
			return true
		}
		if j < i && q.Equal(p) {
			return true
		}
	}
	return false
}
