package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/starmatch/internal/canon"
	"github.com/roach88/starmatch/internal/levels"
)

// ErrCorrupt marks a stored progress record that cannot be decoded.
var ErrCorrupt = errors.New("corrupt progress record")

type record struct {
	CompletedLevels      []int    `json:"completedLevels"`
	HighestUnlockedLevel int      `json:"highestUnlockedLevel"`
	LevelStars           [][2]int `json:"levelStars"`
	SoundEnabled         *bool    `json:"soundEnabled"`
}

// Encode serializes d as canonical JSON:
//
//	{"completedLevels":[...],"highestUnlockedLevel":n,"levelStars":[[l,s],...],"soundEnabled":b}
//
// Sequences are sorted ascending so equal Data always encode identically.
func Encode(d Data) ([]byte, error) {
	pairs := make([][2]int, 0, len(d.LevelStars))
	for _, l := range d.RatedLevels() {
		pairs = append(pairs, [2]int{l, d.LevelStars[l]})
	}
	return canon.Marshal(map[string]any{
		"completedLevels":      d.Completed(),
		"highestUnlockedLevel": d.HighestUnlockedLevel,
		"levelStars":           pairs,
		"soundEnabled":         d.SoundEnabled,
	})
}

// Decode parses a record produced by Encode.
//
// A missing soundEnabled defaults to true. Unknown fields are ignored so
// newer writers can add fields. Star ratings outside 1..3, a frontier
// below 1, or a completed level without stars wrap ErrCorrupt.
func Decode(data []byte) (Data, error) {
	var rec record
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&rec); err != nil {
		return Data{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	if rec.HighestUnlockedLevel < 1 {
		return Data{}, fmt.Errorf("%w: highestUnlockedLevel %d", ErrCorrupt, rec.HighestUnlockedLevel)
	}

	d := Default()
	d.HighestUnlockedLevel = rec.HighestUnlockedLevel
	if rec.SoundEnabled != nil {
		d.SoundEnabled = *rec.SoundEnabled
	}
	for _, p := range rec.LevelStars {
		if err := levels.CheckStars(p[1]); err != nil {
			return Data{}, fmt.Errorf("%w: level %d: %v", ErrCorrupt, p[0], err)
		}
		d.LevelStars[p[0]] = max(d.LevelStars[p[0]], p[1])
	}
	for _, l := range rec.CompletedLevels {
		if d.LevelStars[l] < levels.MinStars {
			return Data{}, fmt.Errorf("%w: level %d completed without stars", ErrCorrupt, l)
		}
		d.CompletedLevels[l] = true
	}
	return d, nil
}
