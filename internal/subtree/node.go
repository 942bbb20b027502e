package subtree

import (
	"slices"

	"github.com/roach88/substate/internal/path"
)

// node is one location in the subscription tree. It stores no path of its
// own; its identity is the edge from its parent.
type node struct {
	parent    *node
	key       path.Key
	listeners []*registration
	children  map[path.Key]*node
	order     []path.Key // child insertion order, for deterministic cascades
}

// registration is one Subscribe call. Two calls with the same callback are
// two registrations.
type registration struct {
	id     uint64
	fn     func()
	node   *node
	path   path.Path
	active bool
}

func (n *node) child(k path.Key) *node {
	if n.children == nil {
		return nil
	}
	return n.children[k]
}

// childOrCreate returns the child for k, creating it on first use.
// The bool reports whether a node was created.
func (n *node) childOrCreate(k path.Key) (*node, bool) {
	if c := n.child(k); c != nil {
		return c, false
	}
	if n.children == nil {
		n.children = make(map[path.Key]*node)
	}
	c := &node{parent: n, key: k}
	n.children[k] = c
	n.order = append(n.order, k)
	return c, true
}

func (n *node) removeListener(r *registration) {
	n.listeners = slices.DeleteFunc(n.listeners, func(x *registration) bool {
		return x == r
	})
}

func (n *node) removeChild(k path.Key) {
	delete(n.children, k)
	n.order = slices.DeleteFunc(n.order, func(x path.Key) bool {
		return x == k
	})
}

// empty reports whether n holds nothing worth keeping.
func (n *node) empty() bool {
	return len(n.listeners) == 0 && len(n.children) == 0
}
