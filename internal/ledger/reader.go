package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/starmatch/internal/levels"
)

// DefaultReadConcurrency bounds parallel per-level reads.
const DefaultReadConcurrency = 8

// Progress is a player's ledger-side progress.
type Progress struct {
	TotalStars    int
	LastUpdatedAt time.Time

	// PerLevelStars holds only levels with at least one star. It is nil
	// until per-level reads have been made.
	PerLevelStars map[int]int
}

// IsEmpty reports whether p describes a player with no record.
func (p Progress) IsEmpty() bool {
	return p.TotalStars == 0 && p.LastUpdatedAt.IsZero()
}

// Stars returns the recorded stars for level, 0 if none.
func (p Progress) Stars(level int) int {
	return p.PerLevelStars[level]
}

type levelCache struct {
	updatedAt int64
	stars     map[int]int
}

// Reader is the read path over a Ledger.
//
// Per-level stars are cached per player and reused while the aggregate's
// LastUpdatedAt is unchanged.
//
// Thread-safety: all methods are safe for concurrent use.
type Reader struct {
	ledger      Ledger
	catalog     *levels.Catalog
	concurrency int
	logger      *slog.Logger

	mu    sync.Mutex
	cache map[string]levelCache
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithConcurrency bounds parallel per-level reads. Values below 1 are ignored.
func WithConcurrency(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithReaderLogger sets the reader's logger.
func WithReaderLogger(l *slog.Logger) ReaderOption {
	return func(r *Reader) {
		r.logger = l
	}
}

// NewReader creates a Reader over l.
func NewReader(l Ledger, catalog *levels.Catalog, opts ...ReaderOption) *Reader {
	r := &Reader{
		ledger:      l,
		catalog:     catalog,
		concurrency: DefaultReadConcurrency,
		logger:      slog.Default(),
		cache:       make(map[string]levelCache),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchAggregate reads the player's summary without per-level stars.
//
// Returns an error wrapping ErrUnavailable on read failure and ErrNoRecord
// when the ledger reports an empty aggregate.
func (r *Reader) FetchAggregate(ctx context.Context, playerID string) (Progress, error) {
	agg, err := r.readAggregate(ctx, playerID)
	if err != nil {
		return Progress{}, err
	}
	return Progress{
		TotalStars:    agg.TotalStars,
		LastUpdatedAt: time.UnixMilli(agg.LastUpdatedAt).UTC(),
	}, nil
}

// FetchLevelStars reads one level's stars.
func (r *Reader) FetchLevelStars(ctx context.Context, playerID string, level int) (int, error) {
	if err := r.catalog.Check(level); err != nil {
		return 0, fmt.Errorf("fetch level stars: %w", err)
	}
	return r.readLevel(ctx, playerID, level)
}

// Fetch reads the aggregate and every level's stars.
//
// Per-level reads run concurrently and any single failure fails the whole
// fetch with ErrUnavailable. Cancelling ctx abandons outstanding reads.
func (r *Reader) Fetch(ctx context.Context, playerID string) (Progress, error) {
	agg, err := r.readAggregate(ctx, playerID)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{
		TotalStars:    agg.TotalStars,
		LastUpdatedAt: time.UnixMilli(agg.LastUpdatedAt).UTC(),
	}

	r.mu.Lock()
	cached, ok := r.cache[playerID]
	r.mu.Unlock()
	if ok && cached.updatedAt == agg.LastUpdatedAt {
		p.PerLevelStars = maps.Clone(cached.stars)
		return p, nil
	}

	stars, err := r.readAllLevels(ctx, playerID)
	if err != nil {
		return Progress{}, err
	}

	r.mu.Lock()
	r.cache[playerID] = levelCache{updatedAt: agg.LastUpdatedAt, stars: stars}
	r.mu.Unlock()

	p.PerLevelStars = maps.Clone(stars)
	r.logger.Debug("ledger progress fetched",
		"player", playerID,
		"total_stars", p.TotalStars,
		"levels", len(stars),
	)
	return p, nil
}

// Invalidate drops cached per-level stars for playerID.
func (r *Reader) Invalidate(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, playerID)
}

func (r *Reader) readAggregate(ctx context.Context, playerID string) (Aggregate, error) {
	agg, err := r.ledger.ReadAggregate(ctx, playerID)
	if err != nil {
		r.logger.Warn("ledger aggregate read failed", "player", playerID, "error", err)
		return Aggregate{}, unavailable("read aggregate", err)
	}
	if agg.IsEmpty() {
		return Aggregate{}, ErrNoRecord
	}
	return agg, nil
}

func (r *Reader) readLevel(ctx context.Context, playerID string, level int) (int, error) {
	stars, err := r.ledger.ReadLevel(ctx, playerID, level)
	if err != nil {
		return 0, unavailable(fmt.Sprintf("read level %d", level), err)
	}
	if stars < 0 || stars > levels.MaxStars {
		return 0, fmt.Errorf("%w: level %d reported %d stars", ErrUnavailable, level, stars)
	}
	return stars, nil
}

func (r *Reader) readAllLevels(ctx context.Context, playerID string) (map[int]int, error) {
	maxLevel := r.catalog.MaxLevel()
	results := make([]int, maxLevel+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for level := 1; level <= maxLevel; level++ {
		g.Go(func() error {
			stars, err := r.readLevel(gctx, playerID, level)
			if err != nil {
				return err
			}
			results[level] = stars
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("ledger level read failed", "player", playerID, "error", err)
		return nil, err
	}

	stars := make(map[int]int)
	for level := 1; level <= maxLevel; level++ {
		if results[level] > 0 {
			stars[level] = results[level]
		}
	}
	return stars, nil
}

// unavailable wraps err so errors.Is(…, ErrUnavailable) holds while
// preserving context cancellation.
func unavailable(op string, err error) error {
	if errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
