// Package value provides the snapshot value model.
//
// A snapshot is a tree of Values: records and map-like containers are
// Objects, ordered sequences are Arrays, and the leaves are String, Int,
// Bool, and Null. This package imports nothing internal except path.
//
// Key constraints:
//   - NO float kind; numbers are int64 so traces and digests stay stable
//   - A nil Value means absent, Null is an explicit null
//   - Values handed out by a Store are read-only by convention; nothing in
//     this module mutates a container it did not copy first
package value
