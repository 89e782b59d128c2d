package game

import (
	"math/rand/v2"

	"github.com/google/uuid"
)

// IDGenerator produces card IDs that are unique within a session.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 card IDs.
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Shuffler permutes n elements in place via swap.
// *rand.Rand from math/rand/v2 satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// globalShuffler uses the math/rand/v2 top-level source, a Fisher-Yates
// shuffle that yields every permutation with equal probability.
type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}
