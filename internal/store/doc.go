// Package store provides SQLite-backed persistence for starmatch.
//
// One database holds three concerns:
//   - kv: the local key/value collaborator behind progress.Store
//   - write_operations, operation_transitions: the batcher's write log
//   - ledger_levels, ledger_players: DevLedger, a local stand-in for the
//     external progress ledger
//
// # Ordering
//
// Log entries are ordered by seq INTEGER from the batcher's logical clock,
// never by timestamps. Queries that list operations include
// ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Level and star lists are stored as canonical JSON arrays.
package store
