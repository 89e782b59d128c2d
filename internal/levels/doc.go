// Package levels maps level numbers to board configurations and scores
// completed levels.
//
// Tiers are declared in CUE (catalog.cue) and unified with schema.cue, so a
// malformed tier (odd grid, acceptable <= optimal) fails at load time rather
// than at play time. Go-side checks add what CUE cannot express cheaply:
// tiers must cover 1..maxLevel contiguously and every grid must hold an even
// number of cells.
package levels
