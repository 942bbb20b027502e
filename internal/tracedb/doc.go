// Package tracedb records notification traces in SQLite.
//
// A trace is grouped into runs. Each run holds the committed updates of one
// store (revision, update id, change-paths, snapshot, digest) and, per
// update, the listener invocations it caused in firing order.
//
// # Ordering
//
//   - Updates are read ORDER BY revision ASC, id ASC COLLATE BINARY
//   - Notifications are read ORDER BY revision ASC, seq ASC
//   - Revisions and seq come from the store's logical clock, never from
//     wall time, so two runs of one scenario produce identical rows
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Snapshots and change lists are stored as RFC 8785 canonical JSON; the
// digest column is value.Digest of the snapshot.
package tracedb
