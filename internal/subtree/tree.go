package subtree

import (
	"github.com/roach88/substate/internal/path"
)

// Tree is the subscription tree. Its shape lazily mirrors the parts of the
// state tree that somebody subscribed to; it never stores values.
//
// Tree is not safe for concurrent use. The owning Store serializes access.
type Tree struct {
	root   *node
	nextID uint64
	nodes  int
	prune  bool
}

// Option configures a Tree.
type Option func(*Tree)

// WithPruning removes nodes that are left with no listeners and no
// children after an unsubscribe, walking upward from the emptied node.
// Without it, nodes live as long as the tree.
func WithPruning() Option {
	return func(t *Tree) {
		t.prune = true
	}
}

// New creates a tree holding only the root node.
func New(opts ...Option) *Tree {
	t := &Tree{root: &node{}, nodes: 1}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Subscribe registers fn at p, creating any missing nodes on the way.
// The returned func removes exactly this registration; calling it again is
// a no-op.
func (t *Tree) Subscribe(p path.Path, fn func()) (unsubscribe func()) {
	n := t.root
	for _, k := range p {
		var created bool
		n, created = n.childOrCreate(k)
		if created {
			t.nodes++
		}
	}

	t.nextID++
	r := &registration{
		id:     t.nextID,
		fn:     fn,
		node:   n,
		path:   p.Append(),
		active: true,
	}
	n.listeners = append(n.listeners, r)

	return func() { t.unsubscribe(r) }
}

func (t *Tree) unsubscribe(r *registration) {
	if !r.active {
		return
	}
	r.active = false
	r.node.removeListener(r)

	if t.prune {
		t.pruneFrom(r.node)
	}
}

func (t *Tree) pruneFrom(n *node) {
	for n != t.root && n.empty() {
		parent := n.parent
		// A node pruned earlier may still be referenced by a stale handle.
		if parent.child(n.key) != n {
			return
		}
		parent.removeChild(n.key)
		t.nodes--
		n = parent
	}
}

// Nodes returns the number of nodes, including the root.
func (t *Tree) Nodes() int {
	return t.nodes
}

// Listeners returns the number of active registrations exactly at p.
func (t *Tree) Listeners(p path.Path) int {
	n := t.find(p)
	if n == nil {
		return 0
	}
	return len(n.listeners)
}

// Has reports whether a node exists for p.
func (t *Tree) Has(p path.Path) bool {
	return t.find(p) != nil
}

func (t *Tree) find(p path.Path) *node {
	n := t.root
	for _, k := range p {
		n = n.child(k)
		if n == nil {
			return nil
		}
	}
	return n
}
