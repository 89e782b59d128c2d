package reconcile

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/starmatch/internal/ledger"
	"github.com/roach88/starmatch/internal/levels"
	"github.com/roach88/starmatch/internal/progress"
)

// RemoteState says how far the ledger read can be trusted.
type RemoteState int

const (
	// RemoteUnavailable means the read failed; nothing is known.
	RemoteUnavailable RemoteState = iota
	// RemoteNoRecord means the ledger has never been written for the player.
	RemoteNoRecord
	// RemoteKnown means Progress holds the ledger's view.
	RemoteKnown
)

func (s RemoteState) String() string {
	switch s {
	case RemoteUnavailable:
		return "unavailable"
	case RemoteNoRecord:
		return "no_record"
	case RemoteKnown:
		return "known"
	default:
		return fmt.Sprintf("RemoteState(%d)", int(s))
	}
}

// Remote is the ledger side of a reconciliation.
type Remote struct {
	State    RemoteState
	Progress ledger.Progress
}

// Known wraps a successful ledger read.
func Known(p ledger.Progress) Remote {
	return Remote{State: RemoteKnown, Progress: p}
}

// NoRecord is the remote for a player the ledger has never seen.
func NoRecord() Remote {
	return Remote{State: RemoteNoRecord}
}

// Unavailable is the remote for a failed read.
func Unavailable() Remote {
	return Remote{State: RemoteUnavailable}
}

// RemoteFrom classifies the result of ledger.Reader.Fetch.
func RemoteFrom(p ledger.Progress, err error) Remote {
	switch {
	case err == nil:
		return Known(p)
	case errors.Is(err, ledger.ErrNoRecord):
		return NoRecord()
	default:
		return Unavailable()
	}
}

// Entry is one (level, stars) pair to write.
type Entry struct {
	Level int
	Stars int
}

// Delta is the set of entries the ledger is missing, ordered by level.
type Delta []Entry

// Levels returns the delta's levels in order.
func (d Delta) Levels() []int {
	out := make([]int, len(d))
	for i, e := range d {
		out[i] = e.Level
	}
	return out
}

// Stars returns the delta's stars, parallel to Levels.
func (d Delta) Stars() []int {
	out := make([]int, len(d))
	for i, e := range d {
		out[i] = e.Stars
	}
	return out
}

// Chunks splits d into consecutive pieces of at most size entries.
func (d Delta) Chunks(size int) []Delta {
	if size <= 0 || len(d) <= size {
		if len(d) == 0 {
			return nil
		}
		return []Delta{d}
	}
	var out []Delta
	for c := range slices.Chunk(d, size) {
		out = append(out, c)
	}
	return out
}

// Result is the outcome of a reconciliation.
type Result struct {
	Merged progress.Data
	Delta  Delta
	Remote RemoteState
}

// Merge combines local progress with the ledger's.
//
// With a known remote every level's stars are the maximum of both sides
// and every starred level is completed. Any other remote returns local.
func Merge(local progress.Data, remote Remote, maxLevel int) progress.Data {
	if remote.State != RemoteKnown {
		return local.Clone()
	}

	merged := local.Clone()
	for l, s := range remote.Progress.PerLevelStars {
		if s > merged.LevelStars[l] {
			merged.LevelStars[l] = s
		}
	}

	highest := 0
	for l, s := range merged.LevelStars {
		if s >= levels.MinStars {
			merged.CompletedLevels[l] = true
			highest = max(highest, l)
		}
	}
	if highest > 0 {
		merged.HighestUnlockedLevel = max(merged.HighestUnlockedLevel, min(highest+1, maxLevel))
	}
	return merged
}

// ComputeDelta returns the entries where merged beats the ledger.
//
// A remote with no record needs every rated level; an unavailable remote
// needs nothing, since its contents are unknown.
func ComputeDelta(merged progress.Data, remote Remote) Delta {
	if remote.State == RemoteUnavailable {
		return nil
	}

	var d Delta
	for _, l := range merged.RatedLevels() {
		s := merged.LevelStars[l]
		if s > remote.Progress.PerLevelStars[l] {
			d = append(d, Entry{Level: l, Stars: s})
		}
	}
	return d
}

// Reconcile merges and computes the delta in one step.
func Reconcile(local progress.Data, remote Remote, maxLevel int) Result {
	merged := Merge(local, remote, maxLevel)
	return Result{
		Merged: merged,
		Delta:  ComputeDelta(merged, remote),
		Remote: remote.State,
	}
}
