package value

import (
	"github.com/roach88/substate/internal/path"
)

// Child returns the value one key below v, or nil when v has no such child.
// Indexing into a primitive, a missing map key, a name key on an Array, or
// an out-of-range index are all absent rather than errors.
func Child(v Value, k path.Key) Value {
	switch c := v.(type) {
	case Object:
		if k.IsIndex() {
			return nil
		}
		child, ok := c[k.Name()]
		if !ok {
			return nil
		}
		return child
	case Array:
		if !k.IsIndex() {
			return nil
		}
		i := k.Index()
		if i < 0 || i >= len(c) {
			return nil
		}
		return c[i]
	default:
		return nil
	}
}

// Lookup returns the value at p below v, or nil when any segment is missing.
func Lookup(v Value, p path.Path) Value {
	cur := v
	for _, k := range p {
		cur = Child(cur, k)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Equal reports deep equality. Absent equals only absent.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, ae := range av {
			be, ok := bv[k]
			if !ok || !Equal(ae, be) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone returns a deep copy of v. Scalars are returned as is.
func Clone(v Value) Value {
	switch c := v.(type) {
	case Array:
		out := make(Array, len(c))
		for i, elem := range c {
			out[i] = Clone(elem)
		}
		return out
	case Object:
		out := make(Object, len(c))
		for k, elem := range c {
			out[k] = Clone(elem)
		}
		return out
	default:
		return v
	}
}

// ShallowCopy copies the top level of a container. Scalars are returned as is.
func ShallowCopy(v Value) Value {
	switch c := v.(type) {
	case Array:
		out := make(Array, len(c))
		copy(out, c)
		return out
	case Object:
		out := make(Object, len(c))
		for k, elem := range c {
			out[k] = elem
		}
		return out
	default:
		return v
	}
}
