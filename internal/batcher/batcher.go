package batcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/starmatch/internal/canon"
	"github.com/roach88/starmatch/internal/ledger"
	"github.com/roach88/starmatch/internal/levels"
	"github.com/roach88/starmatch/internal/reconcile"
)

// Batcher submits deltas to a Ledger.
//
// Thread-safety: Submit is safe for concurrent use; calls for the same
// player are serialized.
type Batcher struct {
	ledger   ledger.Ledger
	catalog  *levels.Catalog
	batchCap int
	caps     ledger.CapabilityLookup
	signer   ledger.Signer
	recorder Recorder
	ids      IDGenerator
	clock    *Clock
	logger   *slog.Logger

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

// Option configures a Batcher.
type Option func(*Batcher)

// WithBatchCap sets the maximum entries per operation.
func WithBatchCap(n int) Option {
	return func(b *Batcher) {
		if n > 0 {
			b.batchCap = n
		}
	}
}

// WithCapabilities sets the sponsorship probe. Default: always unsponsored.
func WithCapabilities(c ledger.CapabilityLookup) Option {
	return func(b *Batcher) {
		b.caps = c
	}
}

// WithSigner signs every operation before submission.
func WithSigner(s ledger.Signer) Option {
	return func(b *Batcher) {
		b.signer = s
	}
}

// WithRecorder logs lifecycle transitions.
func WithRecorder(r Recorder) Option {
	return func(b *Batcher) {
		b.recorder = r
	}
}

// WithIDGenerator overrides operation ID generation.
func WithIDGenerator(g IDGenerator) Option {
	return func(b *Batcher) {
		b.ids = g
	}
}

// WithClock sets the sequence clock, e.g. resumed from the operation log.
func WithClock(c *Clock) Option {
	return func(b *Batcher) {
		b.clock = c
	}
}

// WithLogger sets the batcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Batcher) {
		b.logger = l
	}
}

// New creates a Batcher writing to l.
func New(l ledger.Ledger, catalog *levels.Catalog, opts ...Option) *Batcher {
	b := &Batcher{
		ledger:   l,
		catalog:  catalog,
		batchCap: ledger.DefaultBatchCap,
		caps:     ledger.StaticCapability{},
		recorder: nopRecorder{},
		ids:      UUIDv7Generator{},
		clock:    NewClock(),
		logger:   slog.Default(),
		locks:    make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BatchCap returns the maximum entries per operation.
func (b *Batcher) BatchCap() int {
	return b.batchCap
}

// Plan validates delta and splits it into operations of at most BatchCap
// entries. The operations have not entered the log yet. Plan performs no
// I/O; any invalid entry fails the whole plan.
func (b *Batcher) Plan(playerID string, delta reconcile.Delta) ([]Operation, error) {
	if len(delta) == 0 {
		return nil, ledger.ErrEmptyBatch
	}
	playerID = canon.NormalizeID(playerID)

	chunks := delta.Chunks(b.batchCap)
	ops := make([]Operation, 0, len(chunks))
	for _, chunk := range chunks {
		lv, st := chunk.Levels(), chunk.Stars()
		if err := ledger.ValidateBatch(b.catalog, lv, st, b.batchCap); err != nil {
			return nil, err
		}
		contentID, err := canon.OperationID(playerID, lv, st)
		if err != nil {
			return nil, err
		}
		ops = append(ops, Operation{
			ID:        b.ids.Generate(),
			ContentID: contentID,
			PlayerID:  playerID,
			Levels:    lv,
			Stars:     st,
		})
	}
	return ops, nil
}

// Submit writes delta for playerID and returns every planned operation in
// its final state.
//
// Operations are submitted in order. After the first failure the rest stay
// idle and are discarded; the returned error wraps that failure. Validation
// errors are returned before any I/O with no operations.
func (b *Batcher) Submit(ctx context.Context, playerID string, delta reconcile.Delta) ([]Operation, error) {
	playerID = canon.NormalizeID(playerID)
	ops, err := b.Plan(playerID, delta)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}

	unlock, err := b.lock(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	defer unlock()

	for i := range ops {
		ops[i].Seq = b.clock.Next()
		b.transition(ctx, &ops[i], StateIdle, "")
	}

	capability := b.capability(ctx, playerID)
	for i := range ops {
		if err := ctx.Err(); err != nil {
			return ops, fmt.Errorf("submit: %w", err)
		}
		if err := b.submitOne(ctx, &ops[i], capability); err != nil {
			return ops, err
		}
	}
	return ops, nil
}

func (b *Batcher) submitOne(ctx context.Context, op *Operation, c ledger.Capability) error {
	opts := c.Options()
	op.Sponsored = c.Kind == ledger.CapabilitySponsored

	// Once pending, the write settles regardless of the caller.
	wctx := context.WithoutCancel(ctx)
	b.transition(wctx, op, StatePending, "")

	if b.signer != nil {
		sig, pub, err := b.sign(op)
		if err != nil {
			b.transition(wctx, op, StateError, err.Error())
			b.logger.Error("write not signed", "op", op.ID, "player", op.PlayerID, "error", err)
			return fmt.Errorf("operation %s: %w", op.ID, err)
		}
		opts.Signature, opts.PublicKey = sig, pub
	}

	var err error
	if len(op.Levels) == 1 {
		err = b.ledger.Write(wctx, op.PlayerID, op.Levels[0], op.Stars[0], opts)
	} else {
		err = b.ledger.WriteBatch(wctx, op.PlayerID, op.Levels, op.Stars, opts)
	}
	if err != nil {
		b.transition(wctx, op, StateError, ledger.RejectionReason(err))
		b.logger.Error("write failed",
			"op", op.ID,
			"player", op.PlayerID,
			"levels", len(op.Levels),
			"sponsored", op.Sponsored,
			"error", err,
		)
		return fmt.Errorf("operation %s: %w", op.ID, err)
	}

	b.transition(wctx, op, StateSuccess, "")
	b.logger.Info("write confirmed",
		"op", op.ID,
		"player", op.PlayerID,
		"levels", len(op.Levels),
		"sponsored", op.Sponsored,
	)
	return nil
}

func (b *Batcher) sign(op *Operation) ([]byte, []byte, error) {
	digest, err := ledger.WriteDigest(op.PlayerID, op.Levels, op.Stars)
	if err != nil {
		return nil, nil, err
	}
	sig, pub, err := b.signer.Sign(digest)
	if err != nil {
		return nil, nil, fmt.Errorf("signer: %w", err)
	}
	return sig, pub, nil
}

func (b *Batcher) capability(ctx context.Context, playerID string) ledger.Capability {
	c, err := b.caps.Capability(ctx, playerID)
	if err != nil {
		b.logger.Warn("sponsorship probe failed, submitting unsponsored", "player", playerID, "error", err)
		return ledger.Unsponsored()
	}
	return c
}

// transition moves op to state and records it. Illegal transitions are
// programming errors and panic.
func (b *Batcher) transition(ctx context.Context, op *Operation, to State, reason string) {
	from := op.State
	if !canTransition(from, to) {
		panic(fmt.Sprintf("batcher: illegal transition %q -> %q for %s", from, to, op.ID))
	}
	op.State = to
	op.ErrorReason = reason

	t := Transition{
		OperationID: op.ID,
		Seq:         b.clock.Next(),
		From:        from,
		To:          to,
		Reason:      reason,
	}
	if err := b.recorder.RecordTransition(ctx, op.Clone(), t); err != nil {
		b.logger.Warn("operation log write failed", "op", op.ID, "to", to, "error", err)
	}
}

// lock serializes submissions per player.
func (b *Batcher) lock(ctx context.Context, playerID string) (func(), error) {
	b.locksMu.Lock()
	ch, ok := b.locks[playerID]
	if !ok {
		ch = make(chan struct{}, 1)
		b.locks[playerID] = ch
	}
	b.locksMu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
