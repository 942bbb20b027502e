// Package path defines the addressing scheme for locations inside a state
// snapshot.
//
// A Path is an ordered sequence of Keys from the snapshot root to a value.
// A Key is either a name (record field or map key) or an integer index into
// an ordered sequence. Paths are plain values: they carry no reference to
// any snapshot and can be compared, extended, and rendered freely.
//
// Textual form:
//
//	$                  root (empty path)
//	counter.value      two names
//	todos[2].title     name, index, name
//	m["a.b"].x         quoted name containing a separator
package path

import (
	"fmt"
	"strconv"
	"strings"
)

// Key is one segment of a Path.
// The zero Key is the empty name.
type Key struct {
	name    string
	index   int
	isIndex bool
}

// Name returns a Key addressing a record field or map key.
func Name(s string) Key {
	return Key{name: s}
}

// Index returns a Key addressing a position in an ordered sequence.
func Index(i int) Key {
	return Key{index: i, isIndex: true}
}

// IsIndex reports whether k addresses a sequence position.
func (k Key) IsIndex() bool {
	return k.isIndex
}

// Name returns the name of a name Key, or "" for an index Key.
func (k Key) Name() string {
	return k.name
}

// Index returns the position of an index Key, or -1 for a name Key.
func (k Key) Index() int {
	if !k.isIndex {
		return -1
	}
	return k.index
}

// String renders the key the way it appears inside a textual path.
func (k Key) String() string {
	if k.isIndex {
		return "[" + strconv.Itoa(k.index) + "]"
	}
	if needsQuote(k.name) {
		return "[" + strconv.Quote(k.name) + "]"
	}
	return k.name
}

// needsQuote reports whether a name cannot be written bare.
func needsQuote(s string) bool {
	if s == "" || s == "$" {
		return true
	}
	return strings.ContainsAny(s, `.[]"`)
}

// Path is an ordered sequence of keys from the snapshot root.
// The empty Path addresses the root.
type Path []Key

// Root returns the empty path.
func Root() Path {
	return Path{}
}

// Names builds a path consisting only of name keys.
func Names(names ...string) Path {
	p := make(Path, len(names))
	for i, n := range names {
		p[i] = Name(n)
	}
	return p
}

// Of builds a path from strings (names) and ints (indexes).
// Panics on any other element type; intended for literals in code and tests.
func Of(keys ...any) Path {
	p := make(Path, 0, len(keys))
	for _, k := range keys {
		switch v := k.(type) {
		case string:
			p = append(p, Name(v))
		case int:
			p = append(p, Index(v))
		case Key:
			p = append(p, v)
		default:
			panic(fmt.Sprintf("path.Of: unsupported key type %T", k))
		}
	}
	return p
}

// Len returns the number of keys.
func (p Path) Len() int {
	return len(p)
}

// IsRoot reports whether p addresses the root.
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Append returns a new path with keys appended. p is never modified.
func (p Path) Append(keys ...Key) Path {
	out := make(Path, len(p), len(p)+len(keys))
	copy(out, p)
	return append(out, keys...)
}

// Concat returns a new path p followed by q.
func (p Path) Concat(q Path) Path {
	return p.Append(q...)
}

// Parent returns p without its last key. The parent of the root is the root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Path{}
	}
	return p[:len(p)-1:len(p)-1]
}

// Last returns the last key and true, or false for the root.
func (p Path) Last() (Key, bool) {
	if len(p) == 0 {
		return Key{}, false
	}
	return p[len(p)-1], true
}

// Equal reports whether p and q have the same keys.
func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether q is a (not necessarily strict) prefix of p.
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	return p[:len(q)].Equal(q)
}

// IsAncestorOf reports whether p is a strict prefix of q.
func (p Path) IsAncestorOf(q Path) bool {
	return len(p) < len(q) && q.HasPrefix(p)
}

// String renders the textual form accepted by Parse.
func (p Path) String() string {
	if len(p) == 0 {
		return "$"
	}
	var b strings.Builder
	for i, k := range p {
		s := k.String()
		if i > 0 && !strings.HasPrefix(s, "[") {
			b.WriteByte('.')
		}
		b.WriteString(s)
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Path) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
