package progress

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/starmatch/internal/levels"
	"github.com/roach88/starmatch/internal/testutil"
)

func setupTestStore(t *testing.T) (*Store, *testutil.MemoryKV) {
	t.Helper()
	kv := testutil.NewMemoryKV()
	return NewStore(kv, levels.Default(), nil), kv
}

func TestKey(t *testing.T) {
	assert.Equal(t, "progress/guest", Key(""))
	assert.Equal(t, "progress/0xabc", Key("0xabc"))
	assert.Equal(t, Key("e\u0301"), Key("\u00e9"), "player IDs are NFC normalized")
}

func TestLoad_MissingReturnsDefault(t *testing.T) {
	s, _ := setupTestStore(t)
	assert.True(t, s.Load(context.Background(), "p1").Equal(Default()))
}

func TestLoad_ReadFailureReturnsDefault(t *testing.T) {
	s, kv := setupTestStore(t)
	kv.FailGets(true)
	assert.True(t, s.Load(context.Background(), "p1").Equal(Default()))
}

func TestLoad_CorruptReturnsDefault(t *testing.T) {
	s, kv := setupTestStore(t)
	kv.Put(Key("p1"), `{"highestUnlockedLevel":0}`)
	assert.True(t, s.Load(context.Background(), "p1").Equal(Default()))
}

func TestLoad_ClampsFrontierToCatalog(t *testing.T) {
	s, kv := setupTestStore(t)
	kv.Put(Key("p1"), `{"completedLevels":[],"highestUnlockedLevel":250,"levelStars":[],"soundEnabled":true}`)
	assert.Equal(t, 100, s.Load(context.Background(), "p1").HighestUnlockedLevel)
}

func seedCompleted(t *testing.T, kv *testutil.MemoryKV, player string, n int) {
	t.Helper()
	d := Default()
	for l := 1; l <= n; l++ {
		d = d.WithCompletion(l, 3, 100)
	}
	NewStore(kv, levels.Default(), nil).Save(context.Background(), player, d)
}

func TestCompleteLevel_ReadFailureKeepsStoredRecord(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryKV()
	seedCompleted(t, kv, "p1", 10)
	before := kv.Snapshot()[Key("p1")]

	s := NewStore(kv, levels.Default(), nil)
	kv.FailGets(true)
	d, err := s.CompleteLevel(ctx, "p1", 1, 1)
	require.NoError(t, err)
	assert.True(t, d.IsCompleted(1))
	assert.True(t, d.Equal(s.Load(ctx, "p1")), "change is visible in process")
	kv.FailGets(false)

	assert.Equal(t, before, kv.Snapshot()[Key("p1")], "stored record untouched")
	fresh := NewStore(kv, levels.Default(), nil)
	assert.Len(t, fresh.Load(ctx, "p1").Completed(), 10)
}

func TestLoad_MergesInProcessChangesOnceReadable(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryKV()
	seedCompleted(t, kv, "p1", 3)

	s := NewStore(kv, levels.Default(), nil)
	kv.FailGets(true)
	_, err := s.CompleteLevel(ctx, "p1", 1, 1)
	require.NoError(t, err)
	s.SetSound(ctx, "p1", false)
	s.Forget("p1")
	kv.FailGets(false)

	d := s.Load(ctx, "p1")
	assert.Equal(t, []int{1, 2, 3}, d.Completed())
	assert.Equal(t, 3, d.Stars(1), "stars never decrease")
	assert.Equal(t, 4, d.HighestUnlockedLevel)
	assert.False(t, d.SoundEnabled)

	fresh := NewStore(kv, levels.Default(), nil)
	assert.True(t, d.Equal(fresh.Load(ctx, "p1")), "merged record is persisted")
}

func TestCompleteLevel_CorruptRecordIsPreserved(t *testing.T) {
	ctx := context.Background()
	s, kv := setupTestStore(t)
	const raw = `{"highestUnlockedLevel":0}`
	kv.Put(Key("p1"), raw)

	_, err := s.CompleteLevel(ctx, "p1", 1, 2)
	require.NoError(t, err)

	snap := kv.Snapshot()
	assert.Equal(t, raw, snap[CorruptKey(Key("p1"))])
	fresh := NewStore(kv, levels.Default(), nil)
	assert.Equal(t, 2, fresh.Load(ctx, "p1").Stars(1))
}

func TestCompleteLevel_CorruptRecordKeptWhenCopyFails(t *testing.T) {
	ctx := context.Background()
	s, kv := setupTestStore(t)
	const raw = `not json`
	kv.Put(Key("p1"), raw)
	kv.FailSets(true)

	_, err := s.CompleteLevel(ctx, "p1", 1, 2)
	require.NoError(t, err)
	kv.FailSets(false)

	assert.Equal(t, raw, kv.Snapshot()[Key("p1")])
	assert.Equal(t, 2, s.Load(ctx, "p1").Stars(1))
}

func TestSaveLoad_RoundTripThroughKV(t *testing.T) {
	ctx := context.Background()
	s, kv := setupTestStore(t)

	d := Default().WithCompletion(1, 3, 100).WithCompletion(2, 1, 100)
	d.SoundEnabled = false
	s.Save(ctx, "p1", d)

	// A fresh store reads the durable copy.
	fresh := NewStore(kv, levels.Default(), nil)
	assert.True(t, d.Equal(fresh.Load(ctx, "p1")))
}

func TestSave_FailureStillVisibleInProcess(t *testing.T) {
	ctx := context.Background()
	s, kv := setupTestStore(t)
	kv.FailSets(true)

	d := Default().WithCompletion(1, 2, 100)
	s.Save(ctx, "p1", d)

	assert.Equal(t, 1, kv.SetCalls())
	assert.Empty(t, kv.Snapshot())
	assert.True(t, d.Equal(s.Load(ctx, "p1")))
}

func TestSave_CallerMutationDoesNotLeak(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStore(t)

	d := Default()
	s.Save(ctx, "p1", d)
	d.LevelStars[9] = 3

	assert.Zero(t, s.Load(ctx, "p1").Stars(9))
}

func TestCompleteLevel_FirstLevelThreeStars(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStore(t)

	cfg := levels.Default().ConfigFor(1)
	stars := levels.StarsFor(8, cfg)
	require.Equal(t, 3, stars)

	d, err := s.CompleteLevel(ctx, "p1", 1, stars)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Stars(1))
	assert.True(t, d.IsCompleted(1))
	assert.Equal(t, 2, d.HighestUnlockedLevel)
	assert.True(t, d.Equal(s.Load(ctx, "p1")))
}

func TestCompleteLevel_OnlyImproves(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStore(t)

	_, err := s.CompleteLevel(ctx, "p1", 1, 3)
	require.NoError(t, err)
	_, err = s.CompleteLevel(ctx, "p1", 2, 2)
	require.NoError(t, err)

	d, err := s.CompleteLevel(ctx, "p1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Stars(1))
	assert.Equal(t, 3, d.HighestUnlockedLevel)
}

func TestCompleteLevel_Validation(t *testing.T) {
	ctx := context.Background()
	s, kv := setupTestStore(t)

	_, err := s.CompleteLevel(ctx, "p1", 0, 3)
	assert.ErrorIs(t, err, levels.ErrLevelOutOfRange)
	_, err = s.CompleteLevel(ctx, "p1", 101, 3)
	assert.ErrorIs(t, err, levels.ErrLevelOutOfRange)
	_, err = s.CompleteLevel(ctx, "p1", 1, 0)
	assert.ErrorIs(t, err, levels.ErrStarsOutOfRange)
	_, err = s.CompleteLevel(ctx, "p1", 1, 4)
	assert.ErrorIs(t, err, levels.ErrStarsOutOfRange)

	assert.Zero(t, kv.SetCalls(), "validation happens before any I/O")
}

func TestCompleteLevel_PlayersAreIsolated(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStore(t)

	_, err := s.CompleteLevel(ctx, "alice", 1, 3)
	require.NoError(t, err)

	assert.True(t, s.Load(ctx, "bob").Equal(Default()))
	assert.True(t, s.Load(ctx, "").Equal(Default()))
}

func TestCompleteLevel_ConcurrentUpdatesAllLand(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStore(t)

	var wg sync.WaitGroup
	for l := 1; l <= 50; l++ {
		wg.Add(1)
		go func(level int) {
			defer wg.Done()
			_, _ = s.CompleteLevel(ctx, "p1", level, 2)
		}(l)
	}
	wg.Wait()

	assert.Len(t, s.Load(ctx, "p1").Completed(), 50)
}

func TestSetSound(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStore(t)

	_, err := s.CompleteLevel(ctx, "p1", 1, 2)
	require.NoError(t, err)

	d := s.SetSound(ctx, "p1", false)
	assert.False(t, d.SoundEnabled)
	assert.Equal(t, 2, d.Stars(1), "other fields survive")
	assert.False(t, s.Load(ctx, "p1").SoundEnabled)
}

func TestForget_RereadsBackingStore(t *testing.T) {
	ctx := context.Background()
	s, kv := setupTestStore(t)

	s.Save(ctx, "p1", Default())
	kv.Put(Key("p1"), `{"completedLevels":[3],"highestUnlockedLevel":1,"levelStars":[[3,2]],"soundEnabled":true}`)
	assert.False(t, s.Load(ctx, "p1").IsCompleted(3), "cached copy wins")

	s.Forget("p1")
	assert.True(t, s.Load(ctx, "p1").IsCompleted(3))
}
