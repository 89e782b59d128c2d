package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/starmatch/internal/batcher"
	"github.com/roach88/starmatch/internal/canon"
	"github.com/roach88/starmatch/internal/game"
	"github.com/roach88/starmatch/internal/ledger"
	"github.com/roach88/starmatch/internal/levels"
	"github.com/roach88/starmatch/internal/progress"
	"github.com/roach88/starmatch/internal/reconcile"
)

// ErrInvalidMoves is returned by CompleteLevel for a negative move count.
var ErrInvalidMoves = errors.New("moves must not be negative")

// State is the sync indicator shown to the player.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateSynced  State = "synced"
	StateError   State = "error"
)

// Status is a snapshot of the sync indicator.
type Status struct {
	Player string
	State  State
	// Code and Reason describe the last failure while State is error.
	Code   SyncErrorCode
	Reason string
}

// Report describes one refresh pass.
type Report struct {
	Player     string
	Result     reconcile.Result
	Operations []batcher.Operation
}

// Written returns how many entries reached the ledger.
func (r Report) Written() int {
	n := 0
	for _, op := range r.Operations {
		if op.State == batcher.StateSuccess {
			n += len(op.Levels)
		}
	}
	return n
}

// Engine is the single-writer sync orchestrator for one player at a time.
//
// Thread-safety model:
//   - SetPlayer, RequestRefresh, CompleteLevel, Status: safe from any goroutine
//   - Refresh: safe from any goroutine; Run serializes queued requests
//   - Run: must be called from exactly one goroutine
type Engine struct {
	local   *progress.Store
	reader  *ledger.Reader
	batcher *batcher.Batcher
	catalog *levels.Catalog
	queue   *requestQueue
	logger  *slog.Logger

	mu      sync.Mutex
	player  string
	gen     uint64
	readID  int
	reads   map[int]context.CancelFunc
	status  Status
	subMu   sync.Mutex
	onState []func(Status)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithPlayer sets the initial identity without queueing a refresh.
func WithPlayer(id string) Option {
	return func(e *Engine) {
		id = canon.NormalizeID(id)
		e.player = id
		e.status.Player = id
	}
}

// New creates an Engine. The initial identity is the guest.
func New(local *progress.Store, reader *ledger.Reader, b *batcher.Batcher, catalog *levels.Catalog, opts ...Option) *Engine {
	e := &Engine{
		local:   local,
		reader:  reader,
		batcher: b,
		catalog: catalog,
		queue:   newRequestQueue(),
		logger:  slog.Default(),
		reads:   make(map[int]context.CancelFunc),
		status:  Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Player returns the current identity ("" is the guest).
func (e *Engine) Player() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.player
}

// Status returns the sync indicator.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// OnStatus registers fn to receive every sync indicator change.
func (e *Engine) OnStatus(fn func(Status)) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.onState = append(e.onState, fn)
}

// Progress returns the current player's local progress.
func (e *Engine) Progress(ctx context.Context) progress.Data {
	return e.local.Load(ctx, e.Player())
}

// SetPlayer switches identity. Reads in flight for the previous identity
// are cancelled and a refresh for the new one is queued. Setting the
// current identity again only queues a refresh. IDs are compared in NFC
// form.
func (e *Engine) SetPlayer(id string) bool {
	id = canon.NormalizeID(id)
	e.mu.Lock()
	changed := id != e.player
	if changed {
		e.player = id
		e.gen++
		for rid, cancel := range e.reads {
			cancel()
			delete(e.reads, rid)
		}
		e.status = Status{Player: id, State: StateIdle}
		e.logger.Info("player changed", "player", id, "generation", e.gen)
	}
	st := e.status
	e.mu.Unlock()

	if changed {
		e.publish(st)
	}
	return e.RequestRefresh()
}

// RequestRefresh queues a refresh for the current identity. Requests
// made while an identical one is waiting coalesce. Returns false after
// Stop or for the guest.
func (e *Engine) RequestRefresh() bool {
	e.mu.Lock()
	r := request{player: e.player, gen: e.gen}
	e.mu.Unlock()

	if r.player == "" {
		return false
	}
	return e.queue.Enqueue(r)
}

// Pending returns the number of queued refresh requests.
func (e *Engine) Pending() int {
	return e.queue.Len()
}

// Run drains refresh requests until ctx is cancelled or Stop is called.
//
// A failed refresh is logged and the loop continues; the indicator
// carries the failure until the next refresh.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("sync engine starting")

	for {
		if r, ok := e.queue.TryDequeue(); ok {
			e.serve(ctx, r)
			continue
		}

		select {
		case <-ctx.Done():
			e.queue.Close()
			e.logger.Info("sync engine stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-e.queue.Wait():
			if e.queue.Len() == 0 && e.stopped() {
				e.logger.Info("sync engine stopped")
				return nil
			}
		}
	}
}

func (e *Engine) serve(ctx context.Context, r request) {
	if !e.current(r.gen) {
		e.logger.Debug("dropping stale refresh", "player", r.player)
		return
	}
	report, err := e.Refresh(ctx)
	if err != nil {
		e.logger.Warn("refresh failed", "player", r.player, "error", err)
		return
	}
	e.logger.Info("refresh complete",
		"player", report.Player,
		"remote", report.Result.Remote.String(),
		"delta", len(report.Result.Delta),
		"written", report.Written(),
	)
}

func (e *Engine) stopped() bool {
	e.queue.mu.Lock()
	defer e.queue.mu.Unlock()
	return e.queue.closed
}

// Stop closes the request queue; Run returns once it is drained.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Refresh runs one pass for the current identity: read the ledger,
// merge into local progress, then submit what the ledger is missing.
//
// Merged progress is saved locally even when the write fails. With the
// ledger unavailable local progress is left as is.
func (e *Engine) Refresh(ctx context.Context) (Report, error) {
	player, gen, readCtx, done := e.beginRead(ctx)
	defer done()

	if player == "" {
		return Report{}, ErrNoPlayer
	}
	report := Report{Player: player}

	e.setStatus(gen, Status{Player: player, State: StateSyncing})

	p, err := e.reader.Fetch(readCtx, player)
	if !e.current(gen) {
		return report, &SyncError{Code: ErrCodeIdentityChanged, PlayerID: player, Err: err}
	}
	if err != nil && ctx.Err() != nil {
		e.setStatus(gen, Status{Player: player, State: StateIdle})
		return report, fmt.Errorf("refresh: %w", ctx.Err())
	}

	remote := reconcile.RemoteFrom(p, err)
	maxLevel := e.catalog.MaxLevel()
	var res reconcile.Result
	e.local.Update(ctx, player, func(local progress.Data) progress.Data {
		res = reconcile.Reconcile(local, remote, maxLevel)
		return res.Merged
	})
	report.Result = res

	if remote.State == reconcile.RemoteUnavailable {
		serr := &SyncError{Code: ErrCodeLedgerUnavailable, PlayerID: player, Err: err}
		e.fail(gen, serr)
		return report, serr
	}
	if len(res.Delta) == 0 {
		e.setStatus(gen, Status{Player: player, State: StateSynced})
		return report, nil
	}

	if !e.current(gen) {
		return report, &SyncError{Code: ErrCodeIdentityChanged, PlayerID: player}
	}
	ops, err := e.batcher.Submit(ctx, player, res.Delta)
	report.Operations = ops
	if len(ops) > 0 {
		e.reader.Invalidate(player)
	}
	if err != nil {
		serr := &SyncError{Code: ErrCodeWriteFailed, PlayerID: player, Err: err}
		e.fail(gen, serr)
		return report, serr
	}

	e.setStatus(gen, Status{Player: player, State: StateSynced})
	return report, nil
}

// CompleteLevel scores a won game and records it locally for the current
// player. It never touches the ledger.
func (e *Engine) CompleteLevel(ctx context.Context, level, moves int) (progress.Data, int, error) {
	if err := e.catalog.Check(level); err != nil {
		return progress.Data{}, 0, fmt.Errorf("complete level: %w", err)
	}
	if moves < 0 {
		return progress.Data{}, 0, fmt.Errorf("complete level %d: %w", level, ErrInvalidMoves)
	}

	stars := levels.StarsFor(moves, e.catalog.ConfigFor(level))
	d, err := e.local.CompleteLevel(ctx, e.Player(), level, stars)
	if err != nil {
		return progress.Data{}, 0, err
	}
	e.logger.Info("level completed", "player", e.Player(), "level", level, "moves", moves, "stars", stars)
	return d, stars, nil
}

// RecordOutcome is a game.Runner outcome hook: won sessions are recorded
// through CompleteLevel, anything else is ignored.
func (e *Engine) RecordOutcome(ctx context.Context, o game.Outcome) {
	if o.Status != game.StatusWon {
		return
	}
	if _, _, err := e.CompleteLevel(ctx, o.Level, o.Moves); err != nil {
		e.logger.Error("recording outcome failed", "level", o.Level, "error", err)
	}
}

// beginRead snapshots the identity and derives a read context that
// SetPlayer can cancel. done must be called when the refresh ends.
func (e *Engine) beginRead(ctx context.Context) (string, uint64, context.Context, func()) {
	readCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.readID++
	id := e.readID
	e.reads[id] = cancel

	return e.player, e.gen, readCtx, func() {
		e.mu.Lock()
		delete(e.reads, id)
		e.mu.Unlock()
		cancel()
	}
}

func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen == gen
}

func (e *Engine) fail(gen uint64, err *SyncError) {
	reason := err.Error()
	if ledger.IsRejected(err) {
		reason = ledger.RejectionReason(err)
	}
	e.setStatus(gen, Status{Player: err.PlayerID, State: StateError, Code: err.Code, Reason: reason})
}

// setStatus publishes st unless the identity moved on.
func (e *Engine) setStatus(gen uint64, st Status) {
	e.mu.Lock()
	if e.gen != gen || e.status == st {
		e.mu.Unlock()
		return
	}
	e.status = st
	e.mu.Unlock()

	e.publish(st)
}

func (e *Engine) publish(st Status) {
	e.subMu.Lock()
	fns := append([]func(Status){}, e.onState...)
	e.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
