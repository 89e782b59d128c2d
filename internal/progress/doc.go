// Package progress holds a player's long-term progress and the local
// store that caches it.
//
// Data is a value type. Every mutation returns a new Data so readers
// holding an older snapshot never observe a partial update.
//
// The Store never fails a read or a write: load problems yield Default()
// and save problems are logged, so gameplay is never blocked by
// persistence. Validation errors (out-of-range level or stars) are still
// returned, since they are caller bugs rather than I/O conditions.
package progress
