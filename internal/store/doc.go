// Package store owns the current state snapshot and notifies path-scoped
// subscribers when an update changes it.
//
// ARCHITECTURE:
//
// Run-to-completion updates:
// Update runs entirely on the caller's goroutine. There are no locks and no
// background workers. This ensures:
// - Listeners observe the committed snapshot, never a partial one
// - Notification order is a pure function of the change-paths and the tree
// - A failed update leaves no trace
//
// Update Flow:
// 1. Producer runs the recipe against a draft of the snapshot
// 2. Validator (optional) checks the candidate snapshot
// 3. Snapshot swapped with one assignment, revision advanced
// 4. Tracer (optional) records the update
// 5. Subscription tree walked for every change-path; hits fired inside the
// batch scope
// 6. Updates requested by listeners during step 5 drained in FIFO order,
// each with its own walk
//
// ORDERING:
//
// Root listeners first. Along one change-path, ancestors before the changed
// node, the changed node before its descendants, children in insertion
// order. Change-paths in the order the producer reported them. A listener
// fires at most once per update.
package store
