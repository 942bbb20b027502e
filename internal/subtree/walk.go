package subtree

import (
	"github.com/roach88/substate/internal/path"
)

// Hit is one listener selected by a notification walk.
type Hit struct {
	// ID identifies the registration. IDs are unique within a Tree and
	// increase with each Subscribe call.
	ID uint64

	// Path is where the listener was registered.
	Path path.Path

	// Change is the change-path whose walk selected this listener.
	Change path.Path

	reg *registration
}

// Fire invokes the listener unless it was unsubscribed after the walk.
// Returns whether the listener ran.
func (h Hit) Fire() bool {
	if h.reg == nil || !h.reg.active {
		return false
	}
	h.reg.fn()
	return true
}

// Walk computes the listeners to notify for an ordered list of
// change-paths. For each change-path P:
//
//  1. every listener at the root is selected;
//  2. P's keys are followed from the root, stopping at the first missing
//     child;
//  3. at the node for P's last key, that node's listeners and every
//     descendant's listeners are selected (the value there was replaced
//     wholesale, so nested subscribers are stale too);
//  4. at nodes above it, only the node's own listeners are selected.
//
// An empty change-path is a root replacement and selects the whole tree.
//
// Each registration is selected at most once per Walk, at its first
// position. Within a node listeners keep registration order, and
// descendants are visited depth-first in child insertion order.
//
// Walk only reads the tree. The returned hits hold their registrations,
// so listeners can subscribe or unsubscribe while the hits are fired.
func (t *Tree) Walk(changes []path.Path) []Hit {
	w := walker{seen: make(map[*registration]struct{})}

	for _, change := range changes {
		if change.IsRoot() {
			w.cascade(t.root, change)
			continue
		}

		w.emit(t.root, change)
		n := t.root
		for i, k := range change {
			n = n.child(k)
			if n == nil {
				break
			}
			if i == len(change)-1 {
				w.cascade(n, change)
			} else {
				w.emit(n, change)
			}
		}
	}

	return w.hits
}

type walker struct {
	seen map[*registration]struct{}
	hits []Hit
}

func (w *walker) emit(n *node, change path.Path) {
	for _, r := range n.listeners {
		if _, dup := w.seen[r]; dup {
			continue
		}
		w.seen[r] = struct{}{}
		w.hits = append(w.hits, Hit{
			ID:     r.id,
			Path:   r.path,
			Change: change,
			reg:    r,
		})
	}
}

func (w *walker) cascade(n *node, change path.Path) {
	w.emit(n, change)
	for _, k := range n.order {
		w.cascade(n.children[k], change)
	}
}
