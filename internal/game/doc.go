// Package game implements the card-matching session state machine.
//
// Machine.Reduce is a pure reducer: it never mutates its input and never
// blocks. Randomness (the shuffle) and card identity (ID generation) are
// injected so that tests can replay a session exactly.
//
// Runner owns the live session for one player. Player input and the timer
// task both funnel through Runner, which applies one action at a time, so
// no two transitions ever interleave.
package game
