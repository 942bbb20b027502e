// Package facade gives path-addressed access to a store.
//
// A Cursor is a path under construction. Field, Index, Key, and At return
// new cursors and touch nothing; Read, Write, ReadAndGetWriter, and Set act
// on the store at the accumulated path.
//
//	users := facade.Bind(s).Field("users")
//	name := users.Key(id).Field("name").Read()
//	err := users.Key(id).Field("age").Set(value.Int(27))
//
// Cursors obtained from an Observer also record which paths the observer
// read, and subscribe the observer to each of them once. This is the hook a
// rendering layer uses to re-render a component only when something it
// displayed may have changed.
package facade
