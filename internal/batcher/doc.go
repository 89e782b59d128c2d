// Package batcher turns reconciliation deltas into ledger write operations
// and tracks each operation's lifecycle.
//
// Lifecycle per operation:
//
//	idle -> pending -> success
//	             \---> error
//
// Operations are terminal once they reach success or error and are never
// resubmitted. After a failure the caller recomputes a fresh delta from
// the current merge; a captured delta is never replayed.
//
// At most one Submit runs per player at a time. Once a write is pending it
// runs to completion even if the caller's context is cancelled, so the
// next reconciliation sees a settled ledger.
package batcher
