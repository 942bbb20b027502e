// Package draft produces the next snapshot and its change-paths from a
// recipe.
//
// A recipe receives a *Draft over the current snapshot. It either mutates the
// draft in place:
//
//	func(d *draft.Draft) (value.Value, error) {
//	    n := d.Get(path.Names("counter", "value")).(value.Int)
//	    return nil, d.Set(path.Names("counter", "value"), n+1)
//	}
//
// or returns a replacement for the whole scope:
//
//	func(d *draft.Draft) (value.Value, error) {
//	    return value.Obj(value.O("a", value.Int(1))), nil
//	}
//
// Containers are copied on first write, so the base snapshot is never
// modified. Each successful write records the path it touched:
//   - Set(p) and map-key Delete(p) record p
//   - Append(p) records p[len] where len is the old length
//   - Delete of an array index records the array itself (elements shift)
//
// The recorded list is normalized by Normalize before it is returned.
package draft
