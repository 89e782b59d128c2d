package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/starmatch/internal/canon"
	"github.com/roach88/starmatch/internal/ledger"
	"github.com/roach88/starmatch/internal/levels"
)

// DevLedger implements ledger.Ledger on the local database.
//
// It enforces the same contract as the external ledger: range checks, the
// batch cap, optional signature verification and sponsorship support.
// Rejections are *ledger.RejectedError; database failures wrap
// ledger.ErrUnavailable.
type DevLedger struct {
	db                *sql.DB
	catalog           *levels.Catalog
	batchCap          int
	requireSignature  bool
	rejectSponsorship bool
	now               func() time.Time
}

// DevLedgerOption configures a DevLedger.
type DevLedgerOption func(*DevLedger)

// WithLedgerBatchCap overrides ledger.DefaultBatchCap.
func WithLedgerBatchCap(n int) DevLedgerOption {
	return func(l *DevLedger) {
		l.batchCap = n
	}
}

// WithSignatureRequired rejects writes without a valid signature.
func WithSignatureRequired() DevLedgerOption {
	return func(l *DevLedger) {
		l.requireSignature = true
	}
}

// WithSponsorshipRejected rejects sponsored writes.
func WithSponsorshipRejected() DevLedgerOption {
	return func(l *DevLedger) {
		l.rejectSponsorship = true
	}
}

// WithLedgerClock sets the wall clock for last-updated timestamps.
func WithLedgerClock(now func() time.Time) DevLedgerOption {
	return func(l *DevLedger) {
		l.now = now
	}
}

// Ledger returns a DevLedger backed by this store.
func (s *Store) Ledger(catalog *levels.Catalog, opts ...DevLedgerOption) *DevLedger {
	l := &DevLedger{
		db:       s.db,
		catalog:  catalog,
		batchCap: ledger.DefaultBatchCap,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ReadLevel implements ledger.Ledger.
func (l *DevLedger) ReadLevel(ctx context.Context, playerID string, level int) (int, error) {
	playerID = canon.NormalizeID(playerID)
	var stars int
	err := l.db.QueryRowContext(ctx, `
		SELECT stars FROM ledger_levels WHERE player_id = ? AND level = ?
	`, playerID, level).Scan(&stars)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read level %d: %w: %w", level, ledger.ErrUnavailable, err)
	}
	return stars, nil
}

// ReadAggregate implements ledger.Ledger.
func (l *DevLedger) ReadAggregate(ctx context.Context, playerID string) (ledger.Aggregate, error) {
	playerID = canon.NormalizeID(playerID)
	var agg ledger.Aggregate
	err := l.db.QueryRowContext(ctx, `
		SELECT
			COALESCE((SELECT SUM(stars) FROM ledger_levels WHERE player_id = ?), 0),
			COALESCE((SELECT last_updated_at FROM ledger_players WHERE player_id = ?), 0)
	`, playerID, playerID).Scan(&agg.TotalStars, &agg.LastUpdatedAt)
	if err != nil {
		return ledger.Aggregate{}, fmt.Errorf("read aggregate: %w: %w", ledger.ErrUnavailable, err)
	}
	return agg, nil
}

// Write implements ledger.Ledger.
func (l *DevLedger) Write(ctx context.Context, playerID string, level, stars int, opts ledger.WriteOptions) error {
	return l.write(ctx, playerID, []int{level}, []int{stars}, opts)
}

// WriteBatch implements ledger.Ledger.
func (l *DevLedger) WriteBatch(ctx context.Context, playerID string, levelList, stars []int, opts ledger.WriteOptions) error {
	return l.write(ctx, playerID, levelList, stars, opts)
}

func (l *DevLedger) write(ctx context.Context, playerID string, levelList, stars []int, opts ledger.WriteOptions) error {
	playerID = canon.NormalizeID(playerID)
	if err := l.check(playerID, levelList, stars, opts); err != nil {
		return err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write: %w: %w", ledger.ErrUnavailable, err)
	}
	defer tx.Rollback()

	for i, level := range levelList {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_levels (player_id, level, stars) VALUES (?, ?, ?)
			ON CONFLICT(player_id, level) DO UPDATE SET stars = excluded.stars
		`, playerID, level, stars[i])
		if err != nil {
			return fmt.Errorf("write level %d: %w: %w", level, ledger.ErrUnavailable, err)
		}
	}

	// last_updated_at strictly increases so readers can key caches on it.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_players (player_id, last_updated_at) VALUES (?, ?)
		ON CONFLICT(player_id) DO UPDATE SET
			last_updated_at = MAX(excluded.last_updated_at, ledger_players.last_updated_at + 1)
	`, playerID, l.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write player: %w: %w", ledger.ErrUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write: %w: %w", ledger.ErrUnavailable, err)
	}
	return nil
}

func (l *DevLedger) check(playerID string, levelList, stars []int, opts ledger.WriteOptions) error {
	if err := ledger.ValidateBatch(l.catalog, levelList, stars, l.batchCap); err != nil {
		return &ledger.RejectedError{Reason: err.Error()}
	}
	if opts.Sponsor != "" && l.rejectSponsorship {
		return &ledger.RejectedError{Reason: "sponsorship unsupported"}
	}
	if !l.requireSignature {
		return nil
	}
	digest, err := ledger.WriteDigest(playerID, levelList, stars)
	if err != nil {
		return &ledger.RejectedError{Reason: err.Error()}
	}
	if err := ledger.Verify(digest, opts.Signature, opts.PublicKey); err != nil {
		return &ledger.RejectedError{Reason: err.Error()}
	}
	return nil
}
