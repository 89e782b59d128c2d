package reconcile

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/starmatch/internal/ledger"
	"github.com/roach88/starmatch/internal/progress"
)

const maxLevel = 100

func remoteWith(stars map[int]int) Remote {
	total := 0
	for _, s := range stars {
		total += s
	}
	return Known(ledger.Progress{
		TotalStars:    total,
		LastUpdatedAt: time.UnixMilli(1_700_000_000_000),
		PerLevelStars: stars,
	})
}

func localWith(frontier int, stars map[int]int) progress.Data {
	d := progress.Default()
	d.HighestUnlockedLevel = frontier
	for l, s := range stars {
		d.LevelStars[l] = s
		d.CompletedLevels[l] = true
	}
	return d
}

func TestMerge_LedgerImprovesLocal(t *testing.T) {
	local := localWith(6, map[int]int{1: 3, 2: 3, 3: 3, 4: 3, 5: 2})
	remote := remoteWith(map[int]int{1: 3, 2: 3, 3: 3, 4: 3, 5: 3})

	res := Reconcile(local, remote, maxLevel)

	assert.Equal(t, 3, res.Merged.Stars(5))
	assert.Empty(t, res.Delta, "nothing local beats the ledger")
	assert.Equal(t, 6, res.Merged.HighestUnlockedLevel)
	assert.Equal(t, RemoteKnown, res.Remote)
}

func TestMerge_UnavailableKeepsLocal(t *testing.T) {
	stars := map[int]int{}
	for l := 1; l <= 10; l++ {
		stars[l] = 1 + l%3
	}
	local := localWith(11, stars)

	res := Reconcile(local, Unavailable(), maxLevel)

	assert.True(t, local.Equal(res.Merged))
	assert.Empty(t, res.Delta)
	assert.Equal(t, RemoteUnavailable, res.Remote)
}

func TestMerge_NoRecordUploadsEverything(t *testing.T) {
	local := localWith(4, map[int]int{1: 3, 2: 1, 3: 2})

	res := Reconcile(local, NoRecord(), maxLevel)

	assert.True(t, local.Equal(res.Merged))
	assert.Equal(t, Delta{{1, 3}, {2, 1}, {3, 2}}, res.Delta)
}

func TestMerge_DeltaHoldsOnlyLocalImprovements(t *testing.T) {
	local := localWith(5, map[int]int{1: 3, 2: 2, 3: 3, 4: 1})
	remote := remoteWith(map[int]int{1: 3, 2: 3, 3: 1})

	res := Reconcile(local, remote, maxLevel)

	assert.Equal(t, Delta{{3, 3}, {4, 1}}, res.Delta)
	assert.Equal(t, 3, res.Merged.Stars(2))
}

func TestMerge_FrontierJumpsToRemoteProgress(t *testing.T) {
	local := localWith(2, map[int]int{1: 3})
	remote := remoteWith(map[int]int{1: 2, 2: 3, 3: 3, 4: 2})

	merged := Merge(local, remote, maxLevel)

	assert.Equal(t, 5, merged.HighestUnlockedLevel)
	assert.Equal(t, []int{1, 2, 3, 4}, merged.Completed())
	assert.Equal(t, 3, merged.Stars(1))
}

func TestMerge_FrontierNeverRegresses(t *testing.T) {
	local := localWith(30, map[int]int{1: 1})
	merged := Merge(local, remoteWith(map[int]int{1: 3}), maxLevel)
	assert.Equal(t, 30, merged.HighestUnlockedLevel)
}

func TestMerge_FrontierCapsAtMaxLevel(t *testing.T) {
	local := localWith(1, nil)
	merged := Merge(local, remoteWith(map[int]int{100: 2}), maxLevel)
	assert.Equal(t, 100, merged.HighestUnlockedLevel)
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	local := localWith(2, map[int]int{1: 1})
	remoteStars := map[int]int{1: 3, 2: 2}
	before := local.Clone()

	_ = Merge(local, remoteWith(remoteStars), maxLevel)

	assert.True(t, before.Equal(local))
	assert.Equal(t, map[int]int{1: 3, 2: 2}, remoteStars)
}

func TestMerge_Dominance(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))

	for i := 0; i < 300; i++ {
		local := progress.Default()
		for n := rng.IntN(30); n > 0; n-- {
			local = local.WithCompletion(1+rng.IntN(maxLevel), 1+rng.IntN(3), maxLevel)
		}
		remoteStars := map[int]int{}
		for n := rng.IntN(30); n > 0; n-- {
			remoteStars[1+rng.IntN(maxLevel)] = 1 + rng.IntN(3)
		}
		remote := remoteWith(remoteStars)

		res := Reconcile(local, remote, maxLevel)
		for l := 1; l <= maxLevel; l++ {
			want := max(local.Stars(l), remoteStars[l])
			require.GreaterOrEqual(t, res.Merged.Stars(l), want, "iteration %d level %d", i, l)
			if res.Merged.Stars(l) > 0 {
				require.True(t, res.Merged.IsCompleted(l))
			}
		}
		require.GreaterOrEqual(t, res.Merged.HighestUnlockedLevel, local.HighestUnlockedLevel)
		require.LessOrEqual(t, res.Merged.HighestUnlockedLevel, maxLevel)

		for _, e := range res.Delta {
			require.Greater(t, e.Stars, remoteStars[e.Level])
		}

		// Applying the delta to the ledger leaves nothing to write.
		applied := map[int]int{}
		for l, s := range remoteStars {
			applied[l] = s
		}
		for _, e := range res.Delta {
			applied[e.Level] = e.Stars
		}
		again := Reconcile(res.Merged, remoteWith(applied), maxLevel)
		require.Empty(t, again.Delta)
		require.True(t, res.Merged.Equal(again.Merged))

		require.True(t, local.Equal(Merge(local, Unavailable(), maxLevel)))
	}
}

func TestRemoteFrom(t *testing.T) {
	p := ledger.Progress{TotalStars: 3}

	assert.Equal(t, Known(p), RemoteFrom(p, nil))
	assert.Equal(t, RemoteNoRecord, RemoteFrom(ledger.Progress{}, ledger.ErrNoRecord).State)
	assert.Equal(t, RemoteUnavailable, RemoteFrom(ledger.Progress{}, ledger.ErrUnavailable).State)
	assert.Equal(t, RemoteUnavailable, RemoteFrom(ledger.Progress{}, errors.New("boom")).State)
}

func TestDelta_Chunks(t *testing.T) {
	var d Delta
	for l := 1; l <= 150; l++ {
		d = append(d, Entry{Level: l, Stars: 1})
	}

	chunks := d.Chunks(100)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 50)
	assert.Equal(t, 101, chunks[1][0].Level)

	assert.Len(t, d[:100].Chunks(100), 1)
	assert.Nil(t, Delta(nil).Chunks(100))
	assert.Equal(t, []int{1, 2}, d[:2].Levels())
	assert.Equal(t, []int{1, 1}, d[:2].Stars())
}

func TestRemoteStateString(t *testing.T) {
	assert.Equal(t, "known", RemoteKnown.String())
	assert.Equal(t, "no_record", RemoteNoRecord.String())
	assert.Equal(t, "unavailable", RemoteUnavailable.String())
}
