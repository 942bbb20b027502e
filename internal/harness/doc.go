// Package harness runs YAML scenarios against a store and checks the
// notifications they produce.
//
// # Scenario Format
//
//	name: counter_and_users
//	description: "Sibling subscribers stay quiet"
//	schema: app.cue            # optional, relative to the scenario file
//	initial:
//	  counter: {value: 1}
//	  users: {a: {name: Sawyer, age: 26}}
//	subscribers:
//	  - name: root
//	    path: $
//	  - name: users
//	    path: users
//	    then:                  # optional: update scheduled from the listener
//	      - {op: set, path: audit.last, value: users}
//	steps:
//	  - update:
//	      - {op: set, path: counter.value, value: 2}
//	    expect:
//	      changes: [counter.value]
//	      fired: [root]
//	  - unsubscribe: users
//	  - update:
//	      - {op: delete, path: users.a}
//	    fail: "rejected"       # recipe fails after applying the ops
//	    expect:
//	      error: MUTATOR_FAILED
//	      fired: []
//	assertions:
//	  - type: trace_count
//	    subscriber: root
//	    count: 1
//	  - type: final_state
//	    path: users.a.name
//	    expect: Sawyer
//
// Ops are set, delete, append, and replace. A step's update ops run as one
// recipe, so they commit (or fail) together.
//
// # Assertion Types
//
//   - trace_contains: the subscriber was notified (optionally for a change)
//   - trace_order: subscribers were first notified in this order
//   - trace_count: the subscriber was notified exactly N times
//   - final_state: the value at a path equals expect (or is absent)
//   - revision: the store committed exactly N updates
//
// # Deterministic Testing
//
// Update ids come from testutil.SequentialTokens and revisions from
// testutil.RevisionClock, so a scenario produces the same trace on every
// run. RunWithGolden compares that trace, as canonical JSON, against
// testdata/golden/<name>.golden.
package harness
