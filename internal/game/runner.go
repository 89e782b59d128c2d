package game

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Outcome reports how a session ended.
type Outcome struct {
	Level  int
	Status Status
	Moves  int
}

// Runner owns the live session and applies actions one at a time.
//
// Thread-safety model:
//   - Apply, Dispatch, Session: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - RunTimer: one per Runner; it only enqueues ticks
type Runner struct {
	machine *Machine
	queue   *actionQueue
	logger  *slog.Logger

	mu      sync.Mutex
	session Session

	subMu     sync.Mutex
	onChange  []func(Session)
	onOutcome []func(Outcome)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a Runner with no active session.
func NewRunner(m *Machine, opts ...RunnerOption) *Runner {
	r := &Runner{
		machine: m,
		queue:   newActionQueue(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnChange registers fn to receive every new session snapshot.
func (r *Runner) OnChange(fn func(Session)) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.onChange = append(r.onChange, fn)
}

// OnOutcome registers fn to be called when a session leaves playing.
func (r *Runner) OnOutcome(fn func(Outcome)) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.onOutcome = append(r.onOutcome, fn)
}

// Session returns the current session snapshot.
func (r *Runner) Session() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Clone()
}

// Apply runs a to completion and returns the new session.
// Subscribers are notified after the transition, outside the lock.
func (r *Runner) Apply(a Action) Session {
	r.mu.Lock()
	prev := r.session
	next := r.machine.Reduce(prev, a)
	r.session = next
	r.mu.Unlock()

	changed := !sameSession(prev, next)
	if changed {
		r.logger.Debug("session transition",
			"action", a.String(),
			"level", next.Level,
			"status", next.Status,
			"moves", next.Moves,
			"time_remaining", next.TimeRemainingSeconds,
		)
		r.notify(next, prev)
	}
	return next.Clone()
}

// Resolve judges the two face-up cards and applies the result.
// Returns false if fewer than two cards are face up.
func (r *Runner) Resolve() (Session, bool) {
	a, ok := Judge(r.Session())
	if !ok {
		return r.Session(), false
	}
	return r.Apply(a), true
}

// Dispatch enqueues a for the Run loop. Returns false after Stop.
func (r *Runner) Dispatch(a Action) bool {
	return r.queue.Enqueue(a)
}

// Pending returns the number of queued actions.
func (r *Runner) Pending() int {
	return r.queue.Len()
}

// Run applies queued actions until ctx is cancelled or Stop is called.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if a, ok := r.queue.TryDequeue(); ok {
			r.Apply(a)
			continue
		}

		select {
		case <-ctx.Done():
			r.queue.Close()
			return ctx.Err()
		case <-r.queue.Wait():
			// The signal channel closes on Stop; exit once drained.
			if r.queue.Len() == 0 && r.stopped() {
				return nil
			}
		}
	}
}

func (r *Runner) stopped() bool {
	r.queue.mu.Lock()
	defer r.queue.mu.Unlock()
	return r.queue.closed
}

// Stop closes the queue; Run returns once it is drained.
func (r *Runner) Stop() {
	r.queue.Close()
}

// RunTimer enqueues a TickTimer every interval while the session is
// playing and not paused. It returns when ctx is cancelled.
func (r *Runner) RunTimer(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s := r.Session()
			if !s.IsPlaying || s.IsPaused {
				continue
			}
			if !r.Dispatch(TickTimer()) {
				return nil
			}
		}
	}
}

func (r *Runner) notify(next, prev Session) {
	r.subMu.Lock()
	changeFns := append([]func(Session){}, r.onChange...)
	outcomeFns := append([]func(Outcome){}, r.onOutcome...)
	r.subMu.Unlock()

	for _, fn := range changeFns {
		fn(next.Clone())
	}

	if prev.Status != StatusPlaying || next.Status == StatusPlaying {
		return
	}
	out := Outcome{Level: next.Level, Status: next.Status, Moves: next.Moves}
	r.logger.Info("level finished", "level", out.Level, "status", out.Status, "moves", out.Moves)
	for _, fn := range outcomeFns {
		fn(out)
	}
}

// sameSession is a cheap identity check: reducers return their input
// unchanged for no-op actions, so comparing the backing arrays and scalar
// fields is enough to detect that nothing happened.
func sameSession(a, b Session) bool {
	if len(a.Cards) != len(b.Cards) || len(a.FlippedCardIDs) != len(b.FlippedCardIDs) {
		return false
	}
	if len(a.Cards) > 0 && &a.Cards[0] != &b.Cards[0] {
		return false
	}
	return a.Level == b.Level &&
		a.MatchedPairs == b.MatchedPairs &&
		a.Moves == b.Moves &&
		a.TimeRemainingSeconds == b.TimeRemainingSeconds &&
		a.IsPlaying == b.IsPlaying &&
		a.IsPaused == b.IsPaused &&
		a.Status == b.Status
}
