// Package subtree implements the subscription tree and its notification
// walk.
//
// The tree mirrors the shape of the state tree, but only along paths that
// somebody subscribed to. Each node holds the listeners registered exactly at
// its path and its children keyed by the next path segment. Nodes are created
// by Subscribe and, unless WithPruning is set, never removed.
//
// Given the change-paths of one update, Walk selects:
//   - listeners at the root, always;
//   - listeners at strict ancestors of a change-path (their subtree changed);
//   - listeners at the change-path and everywhere below it (their value was
//     replaced wholesale).
//
// Listeners on siblings of a change-path are never selected. A change below
// the deepest subscribed node stops the walk at the first missing child.
package subtree
