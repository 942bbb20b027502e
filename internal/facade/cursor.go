package facade

import (
	"github.com/roach88/substate/internal/draft"
	"github.com/roach88/substate/internal/path"
	"github.com/roach88/substate/internal/store"
	"github.com/roach88/substate/internal/value"
)

// Cursor addresses one path in a store. The zero Cursor is not usable;
// start from Bind or Observer.Root.
type Cursor struct {
	store *store.Store
	path  path.Path
	obs   *Observer
}

// Bind returns an untracked cursor at the root of s.
func Bind(s *store.Store) Cursor {
	return Cursor{store: s, path: path.Root()}
}

// Field descends into a record field.
func (c Cursor) Field(name string) Cursor {
	return c.with(path.Name(name))
}

// Key descends into a map-like container entry. It addresses the same
// location Field would; the separate name keeps call sites explicit about
// which containers hold arbitrary keys.
func (c Cursor) Key(k string) Cursor {
	return c.with(path.Name(k))
}

// Index descends into an array element.
func (c Cursor) Index(i int) Cursor {
	return c.with(path.Index(i))
}

// At descends by a whole relative path.
func (c Cursor) At(p path.Path) Cursor {
	return Cursor{store: c.store, path: c.path.Concat(p), obs: c.obs}
}

func (c Cursor) with(k path.Key) Cursor {
	return Cursor{store: c.store, path: c.path.Append(k), obs: c.obs}
}

// Path returns the cursor's absolute path.
func (c Cursor) Path() path.Path {
	return c.path
}

// Read returns the current value at the cursor, or nil when nothing is
// there. From an Observer cursor it also subscribes the observer to this
// path.
func (c Cursor) Read() value.Value {
	if c.obs != nil {
		c.obs.track(c.path)
	}
	return value.Lookup(c.store.GetState(), c.path)
}

// Write runs recipe as a store update scoped to the cursor: the draft it
// receives is rooted here, and a non-nil return replaces the value here.
func (c Cursor) Write(recipe draft.Recipe) error {
	return c.store.Update(func(d *draft.Draft) (value.Value, error) {
		sub := d.At(c.path)
		replacement, err := recipe(sub)
		if err != nil {
			return nil, err
		}
		if replacement != nil {
			return nil, sub.Replace(replacement)
		}
		return nil, nil
	})
}

// ReadAndGetWriter reads the value and returns the cursor's Write, for
// callers that render a value and hand out an edit callback together.
func (c Cursor) ReadAndGetWriter() (value.Value, func(draft.Recipe) error) {
	return c.Read(), c.Write
}

// Set replaces the value at the cursor with v.
func (c Cursor) Set(v value.Value) error {
	return c.Write(func(*draft.Draft) (value.Value, error) {
		return v, nil
	})
}

// Delete removes the value at the cursor. Deleting the root is an error.
func (c Cursor) Delete() error {
	return c.store.Update(func(d *draft.Draft) (value.Value, error) {
		return nil, d.Delete(c.path)
	})
}
