// Package ledger defines the external progress ledger contract and the
// read path over it.
//
// The ledger is treated as an opaque keyed store: per (player, level) star
// ratings plus a per-player aggregate. It is slow, possibly unreachable and
// eventually consistent. Reads therefore distinguish three outcomes:
//
//   - a known value
//   - ErrNoRecord: the player has never written (empty aggregate)
//   - ErrUnavailable: the read failed and the result must not be trusted
//
// Writes are submitted only by the batcher package. Memory is an in-process
// Ledger for tests and scenarios; store.DevLedger persists one in SQLite.
package ledger
