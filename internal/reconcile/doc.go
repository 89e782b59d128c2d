// Package reconcile merges local progress with ledger progress and
// computes what must be written back.
//
// Merging is only-improve: the merged value dominates both inputs level by
// level, so applying it can never lose progress. When the ledger could
// not be read the local value is returned untouched.
//
// Frontier rule: the merged highestUnlockedLevel is
// max(local frontier, 1 + highest level with merged stars), capped at the
// catalog's max level. Progress cleared on another device therefore opens
// the levels after it, and the merged value is what gets saved locally so
// the local and merged views never diverge.
package reconcile
