package facade

import (
	"github.com/roach88/substate/internal/path"
	"github.com/roach88/substate/internal/store"
)

// Observer is an evaluation context that collects the paths it reads and
// gets notified when any of them may have changed. It stands in for a UI
// component: read through Root during render, re-render in onChange.
//
// Observer is not safe for concurrent use, matching the store.
type Observer struct {
	store    *store.Store
	onChange func()
	subs     map[string]func()
	paths    []path.Path
	closed   bool
}

// NewObserver creates an observer over s that calls onChange whenever a
// path it has read is notified.
func NewObserver(s *store.Store, onChange func()) *Observer {
	return &Observer{
		store:    s,
		onChange: onChange,
		subs:     make(map[string]func()),
	}
}

// Root returns a tracked cursor at the root of the store.
func (o *Observer) Root() Cursor {
	return Cursor{store: o.store, path: path.Root(), obs: o}
}

// Paths returns the tracked paths in the order they were first read.
func (o *Observer) Paths() []path.Path {
	out := make([]path.Path, len(o.paths))
	copy(out, o.paths)
	return out
}

// Close drops every subscription. Reads after Close are not tracked.
// Calling Close twice is a no-op.
func (o *Observer) Close() {
	if o.closed {
		return
	}
	o.closed = true
	for _, p := range o.paths {
		o.subs[p.String()]()
	}
	clear(o.subs)
	o.paths = nil
}

func (o *Observer) track(p path.Path) {
	if o.closed {
		return
	}
	key := p.String()
	if _, ok := o.subs[key]; ok {
		return
	}
	o.subs[key] = o.store.Subscribe(p, o.onChange)
	o.paths = append(o.paths, p)
}
