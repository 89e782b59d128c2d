package progress

import (
	"maps"
	"slices"
)

// Data is a player's persisted progress.
type Data struct {
	// CompletedLevels is the set of cleared levels. Only true entries are kept.
	CompletedLevels map[int]bool

	// LevelStars maps level to its best star rating (1..3).
	LevelStars map[int]int

	// HighestUnlockedLevel is the frontier: the highest playable level.
	HighestUnlockedLevel int

	SoundEnabled bool
}

// Default returns the progress of a new player.
func Default() Data {
	return Data{
		CompletedLevels:      map[int]bool{},
		LevelStars:           map[int]int{},
		HighestUnlockedLevel: 1,
		SoundEnabled:         true,
	}
}

// Clone returns a deep copy of d.
func (d Data) Clone() Data {
	out := d
	out.CompletedLevels = make(map[int]bool, len(d.CompletedLevels))
	for l, ok := range d.CompletedLevels {
		if ok {
			out.CompletedLevels[l] = true
		}
	}
	out.LevelStars = maps.Clone(d.LevelStars)
	if out.LevelStars == nil {
		out.LevelStars = map[int]int{}
	}
	return out
}

// Equal reports whether d and o hold the same progress.
// Nil and empty collections compare equal.
func (d Data) Equal(o Data) bool {
	return d.HighestUnlockedLevel == o.HighestUnlockedLevel &&
		d.SoundEnabled == o.SoundEnabled &&
		slices.Equal(d.Completed(), o.Completed()) &&
		maps.Equal(nonNil(d.LevelStars), nonNil(o.LevelStars))
}

func nonNil(m map[int]int) map[int]int {
	if m == nil {
		return map[int]int{}
	}
	return m
}

// Completed returns the completed levels in ascending order.
func (d Data) Completed() []int {
	out := make([]int, 0, len(d.CompletedLevels))
	for l, ok := range d.CompletedLevels {
		if ok {
			out = append(out, l)
		}
	}
	slices.Sort(out)
	return out
}

// RatedLevels returns the levels with a star rating in ascending order.
func (d Data) RatedLevels() []int {
	out := slices.Collect(maps.Keys(d.LevelStars))
	slices.Sort(out)
	return out
}

// Stars returns the rating for level, or 0 if it has none.
func (d Data) Stars(level int) int {
	return d.LevelStars[level]
}

// IsCompleted reports whether level has been cleared.
func (d Data) IsCompleted(level int) bool {
	return d.CompletedLevels[level]
}

// TotalStars sums every level's rating.
func (d Data) TotalStars() int {
	total := 0
	for _, s := range d.LevelStars {
		total += s
	}
	return total
}

// WithCompletion records a cleared level.
//
// Stars never decrease. The frontier advances to min(level+1, maxLevel)
// only when level is the current frontier; clearing an earlier level
// leaves it untouched.
func (d Data) WithCompletion(level, stars, maxLevel int) Data {
	out := d.Clone()
	out.CompletedLevels[level] = true
	out.LevelStars[level] = max(out.LevelStars[level], stars)
	if level == out.HighestUnlockedLevel {
		out.HighestUnlockedLevel = min(level+1, maxLevel)
	}
	return out
}
