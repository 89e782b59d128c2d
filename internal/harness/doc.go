// Package harness runs scripted play-and-sync scenarios against the real
// game runner, sync engine, SQLite store and an in-memory ledger.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: first_level_sync
//	description: "Win level 1 and upload it"
//	seed: 7
//	player: alice
//	local:
//	  stars: {3: 1}
//	  frontier: 4
//	ledger:
//	  stars: {5: 3}
//	steps:
//	  - action: start
//	    level: 1
//	  - action: flip_mismatch
//	  - action: finish
//	  - action: sync
//	assertions:
//	  - type: level_stars
//	    level: 1
//	    value: 3
//	  - type: ledger_stars
//	    level: 1
//	    value: 3
//
// # Steps
//
//   - start: deal a level
//   - flip, resolve: flip one card by ID, judge the two face-up cards
//   - flip_pair, flip_mismatch: flip and resolve a matching or mismatched pair
//   - finish: clear every remaining pair
//   - tick, pause, resume, restart, complete, fail: the matching game actions
//   - sync: one refresh pass; expect_error names an expected failure code
//   - fail_ledger: make ledger reads or writes fail (mode: reads|writes|none)
//
// # Assertions
//
// Session: session_status, moves, matched_pairs, time_remaining.
// Local progress: level_stars, frontier, completed.
// Sync: delta_size (last sync), operations (write log, optional state
// filter), ledger_stars, sync_state.
//
// # Deterministic Testing
//
// The shuffle is seeded from the scenario, card and operation IDs come
// from sequence generators, trace events are stamped by a logical clock,
// and the ledger reads a stepping fake wall clock. Identical scenarios produce
// identical traces for golden comparison.
package harness
