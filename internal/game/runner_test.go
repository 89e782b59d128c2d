package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_ApplyNotifiesOnChangeOnly(t *testing.T) {
	r := NewRunner(newTestMachine(1))

	var changes int
	r.OnChange(func(Session) { changes++ })

	r.Apply(StartLevel(1))
	assert.Equal(t, 1, changes)

	// No-op actions do not notify.
	r.Apply(ResumeGame())
	r.Apply(FlipCard("missing"))
	assert.Equal(t, 1, changes)

	r.Apply(PauseGame())
	assert.Equal(t, 2, changes)
}

func TestRunner_SessionIsSnapshot(t *testing.T) {
	r := NewRunner(newTestMachine(2))
	r.Apply(StartLevel(1))

	snap := r.Session()
	snap.Cards[0].IsFlipped = true

	assert.False(t, r.Session().Cards[0].IsFlipped)
}

func TestRunner_OutcomeOnWin(t *testing.T) {
	r := NewRunner(newTestMachine(3))

	var outcomes []Outcome
	r.OnOutcome(func(o Outcome) { outcomes = append(outcomes, o) })

	s := r.Apply(StartLevel(2))
	for s.IsPlaying {
		a, b := findPair(t, s)
		r.Apply(FlipCard(a))
		r.Apply(FlipCard(b))
		var ok bool
		s, ok = r.Resolve()
		require.True(t, ok)
	}

	require.Len(t, outcomes, 1)
	assert.Equal(t, Outcome{Level: 2, Status: StatusWon, Moves: 8}, outcomes[0])

	// Further no-ops do not repeat the outcome.
	r.Apply(CompleteLevel())
	assert.Len(t, outcomes, 1)
}

func TestRunner_OutcomeOnFail(t *testing.T) {
	r := NewRunner(newTestMachine(4))

	var outcomes []Outcome
	r.OnOutcome(func(o Outcome) { outcomes = append(outcomes, o) })

	r.Apply(StartLevel(1))
	r.Apply(FailLevel())

	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusLost, outcomes[0].Status)
}

func TestRunner_ResolveWithoutPair(t *testing.T) {
	r := NewRunner(newTestMachine(5))
	r.Apply(StartLevel(1))

	_, ok := r.Resolve()
	assert.False(t, ok)
}

func TestRunner_RunDrainsQueue(t *testing.T) {
	r := NewRunner(newTestMachine(6))

	require.True(t, r.Dispatch(StartLevel(1)))
	require.True(t, r.Dispatch(TickTimer()))
	require.True(t, r.Dispatch(TickTimer()))
	assert.Equal(t, 3, r.Pending())

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	assert.Eventually(t, func() bool {
		return r.Session().TimeRemainingSeconds == 58
	}, time.Second, time.Millisecond)

	r.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	assert.False(t, r.Dispatch(TickTimer()), "dispatch after Stop must fail")
}

func TestRunner_RunCancelled(t *testing.T) {
	r := NewRunner(newTestMachine(7))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunner_TimerRunsSessionOut(t *testing.T) {
	r := NewRunner(newTestMachine(8))
	r.Apply(StartLevel(21))

	var mu sync.Mutex
	var outcome *Outcome
	r.OnOutcome(func(o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		outcome = &o
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()
	go func() { _ = r.RunTimer(ctx, time.Millisecond) }()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return outcome != nil
	}, 5*time.Second, 5*time.Millisecond)

	s := r.Session()
	assert.Equal(t, StatusLost, s.Status)
	assert.Zero(t, s.TimeRemainingSeconds)
	assert.False(t, s.IsPlaying)
}

func TestRunner_TimerSkipsPausedSession(t *testing.T) {
	r := NewRunner(newTestMachine(9))
	r.Apply(StartLevel(1))
	r.Apply(PauseGame())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := r.RunTimer(ctx, time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, r.Pending())
	assert.Equal(t, 60, r.Session().TimeRemainingSeconds)
}
