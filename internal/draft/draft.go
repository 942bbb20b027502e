package draft

import (
	"errors"
	"fmt"

	"github.com/roach88/substate/internal/path"
	"github.com/roach88/substate/internal/value"
)

// Errors returned (wrapped in *PathError) by Draft methods.
var (
	ErrMissing      = errors.New("no value at path")
	ErrNotContainer = errors.New("value is not a container")
	ErrKeyKind      = errors.New("key kind does not match container")
	ErrOutOfRange   = errors.New("index out of range")
	ErrDeleteRoot   = errors.New("cannot delete the root")
	ErrFinalized    = errors.New("draft used after its recipe returned")
)

// PathError records a failed draft operation and the path it targeted.
type PathError struct {
	Op   string
	Path path.Path
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Draft is a mutable view of a snapshot during one recipe.
//
// All paths passed to Draft methods are relative to the draft's scope (see
// At). Values returned by Get are shared with the base snapshot and must not
// be mutated directly; use Set, Delete, and Append instead.
type Draft struct {
	tx     *txn
	prefix path.Path
}

// txn is the state shared by a root draft and every scoped draft derived
// from it.
type txn struct {
	root    value.Value
	owned   map[string]path.Path // containers copied during this txn
	changes []path.Path          // in the order they happened
	done    bool
}

func newDraft(base value.Value) *Draft {
	return &Draft{
		tx: &txn{
			root:  base,
			owned: make(map[string]path.Path),
		},
		prefix: path.Root(),
	}
}

// At returns a draft scoped to p. Both drafts share one transaction.
func (d *Draft) At(p path.Path) *Draft {
	return &Draft{tx: d.tx, prefix: d.prefix.Concat(p)}
}

// Path returns the absolute path of the draft's scope.
func (d *Draft) Path() path.Path {
	return d.prefix
}

// Value returns the current value at the draft's scope.
func (d *Draft) Value() value.Value {
	return d.Get(path.Root())
}

// Get returns the current value at p, or nil when absent.
func (d *Draft) Get(p path.Path) value.Value {
	return value.Lookup(d.tx.root, d.prefix.Concat(p))
}

// Set stores v at p. The parent of p must already exist and be a container.
// Setting index len(array) appends. Assigning a scalar equal to the current
// scalar is not a change.
func (d *Draft) Set(p path.Path, v value.Value) error {
	full := d.prefix.Concat(p)
	if d.tx.done {
		return &PathError{Op: "set", Path: full, Err: ErrFinalized}
	}
	if v == nil {
		return d.Delete(p)
	}

	old := value.Lookup(d.tx.root, full)
	if old != nil && !value.IsContainer(old) && !value.IsContainer(v) && value.Equal(old, v) {
		return nil
	}

	if last, ok := full.Last(); ok && last.IsIndex() {
		if arr, isArr := value.Lookup(d.tx.root, full.Parent()).(value.Array); isArr && last.Index() == len(arr) {
			return d.tx.appendAt(full.Parent(), v, "set")
		}
	}

	if err := d.tx.put(full, v, "set"); err != nil {
		return err
	}
	d.tx.record(full)
	return nil
}

// Replace swaps the whole value at the draft's scope.
func (d *Draft) Replace(v value.Value) error {
	return d.Set(path.Root(), v)
}

// Delete removes the value at p. Deleting a map key removes the entry;
// deleting an array index removes the element and shifts the rest, which
// counts as a change to the whole array. Deleting something already absent
// is a no-op.
func (d *Draft) Delete(p path.Path) error {
	full := d.prefix.Concat(p)
	if d.tx.done {
		return &PathError{Op: "delete", Path: full, Err: ErrFinalized}
	}
	last, ok := full.Last()
	if !ok {
		return &PathError{Op: "delete", Path: full, Err: ErrDeleteRoot}
	}
	if value.Lookup(d.tx.root, full) == nil {
		return nil
	}

	parentPath := full.Parent()
	switch parent := value.Lookup(d.tx.root, parentPath).(type) {
	case value.Object:
		owned, err := d.tx.own(parentPath, "delete")
		if err != nil {
			return err
		}
		delete(owned.(value.Object), last.Name())
		d.tx.disown(full)
		d.tx.record(full)
	case value.Array:
		i := last.Index()
		next := make(value.Array, 0, len(parent)-1)
		next = append(next, parent[:i]...)
		next = append(next, parent[i+1:]...)
		if err := d.tx.put(parentPath, next, "delete"); err != nil {
			return err
		}
		d.tx.markOwned(parentPath)
		d.tx.record(parentPath)
	}
	return nil
}

// Append adds v to the end of the array at p.
func (d *Draft) Append(p path.Path, v value.Value) error {
	full := d.prefix.Concat(p)
	if d.tx.done {
		return &PathError{Op: "append", Path: full, Err: ErrFinalized}
	}
	return d.tx.appendAt(full, v, "append")
}

// appendAt appends v to the array at p and records p[len] as changed.
func (tx *txn) appendAt(p path.Path, v value.Value, op string) error {
	cur := value.Lookup(tx.root, p)
	arr, ok := cur.(value.Array)
	if !ok {
		if cur == nil {
			return &PathError{Op: op, Path: p, Err: ErrMissing}
		}
		return &PathError{Op: op, Path: p, Err: ErrNotContainer}
	}

	next := make(value.Array, len(arr), len(arr)+1)
	copy(next, arr)
	next = append(next, v)
	if err := tx.put(p, next, op); err != nil {
		return err
	}
	tx.markOwned(p)
	tx.record(p.Append(path.Index(len(arr))))
	return nil
}

// put assigns v at p, copying every container between the root and p's
// parent that this txn does not own yet.
func (tx *txn) put(p path.Path, v value.Value, op string) error {
	last, ok := p.Last()
	if !ok {
		tx.disown(p)
		tx.root = v
		return nil
	}

	parent, err := tx.own(p.Parent(), op)
	if err != nil {
		return err
	}

	switch c := parent.(type) {
	case value.Object:
		if last.IsIndex() {
			return &PathError{Op: op, Path: p, Err: ErrKeyKind}
		}
		tx.disown(p)
		c[last.Name()] = v
	case value.Array:
		if !last.IsIndex() {
			return &PathError{Op: op, Path: p, Err: ErrKeyKind}
		}
		if last.Index() < 0 || last.Index() >= len(c) {
			return &PathError{Op: op, Path: p, Err: ErrOutOfRange}
		}
		tx.disown(p)
		c[last.Index()] = v
	}
	return nil
}

// own returns a container at p that is safe to mutate, copying it (and its
// ancestors) on first use.
func (tx *txn) own(p path.Path, op string) (value.Value, error) {
	cur := value.Lookup(tx.root, p)
	if cur == nil {
		return nil, &PathError{Op: op, Path: p, Err: ErrMissing}
	}
	if !value.IsContainer(cur) {
		return nil, &PathError{Op: op, Path: p, Err: ErrNotContainer}
	}
	if _, ok := tx.owned[p.String()]; ok {
		return cur, nil
	}

	cp := value.ShallowCopy(cur)
	if err := tx.put(p, cp, op); err != nil {
		return nil, err
	}
	tx.markOwned(p)
	return cp, nil
}

func (tx *txn) markOwned(p path.Path) {
	tx.owned[p.String()] = p
}

// disown forgets ownership of p and everything below it. Called whenever
// the value at p is swapped, since the new value may be shared.
func (tx *txn) disown(p path.Path) {
	for k, owned := range tx.owned {
		if owned.HasPrefix(p) {
			delete(tx.owned, k)
		}
	}
}

func (tx *txn) record(p path.Path) {
	tx.changes = append(tx.changes, p)
}
