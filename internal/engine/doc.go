// Package engine implements the starmatch sync orchestrator.
//
// The engine ties the local progress store, the ledger reader, the
// reconciler and the write batcher together for one player identity.
//
// ARCHITECTURE:
//
// Single-Writer Refresh Loop:
// Refresh requests are enqueued from any goroutine (identity changes,
// explicit refreshes) and drained one at a time by Run. Requests that
// arrive while one is already queued coalesce into it.
//
// Refresh Flow:
//  1. Fetch the player's ledger progress (aggregate, then per-level stars)
//  2. Merge it into local progress and persist the merged value
//  3. Submit the delta the ledger is missing through the batcher
//
// Identity:
// SetPlayer bumps a generation counter and cancels reads issued for the
// previous identity. A refresh whose generation is stale when its read
// returns stops with IDENTITY_CHANGED and touches nothing.
//
// Local play never waits on the network: CompleteLevel only scores the
// game and writes the local store. The next refresh carries it upstream.
package engine
