package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/starmatch/internal/canon"
	"github.com/roach88/starmatch/internal/levels"
)

// WriteRecord is one call accepted or refused by Memory.
type WriteRecord struct {
	PlayerID string
	Levels   []int
	Stars    []int
	Batch    bool
	Options  WriteOptions
	Err      error
}

// Memory is an in-process Ledger with failure injection.
//
// LastUpdatedAt strictly increases with every accepted write so readers
// can key caches on it.
//
// Thread-safety: all methods are safe for concurrent use.
type Memory struct {
	catalog  *levels.Catalog
	batchCap int
	now      func() time.Time

	mu            sync.Mutex
	stars         map[string]map[int]int
	updatedAt     map[string]int64
	reads         int
	failReads     bool
	rejectReason  string
	noSponsorship bool
	requireSig    bool
	writes        []WriteRecord
	hook          func(ctx context.Context) error
}

// MemoryOption configures a Memory ledger.
type MemoryOption func(*Memory)

// WithBatchCap overrides DefaultBatchCap.
func WithBatchCap(n int) MemoryOption {
	return func(m *Memory) {
		m.batchCap = n
	}
}

// WithNow sets the wall clock used for LastUpdatedAt.
func WithNow(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// WithoutSponsorship makes sponsored writes fail with a rejection.
func WithoutSponsorship() MemoryOption {
	return func(m *Memory) {
		m.noSponsorship = true
	}
}

// WithRequiredSignature rejects writes without a valid signature.
func WithRequiredSignature() MemoryOption {
	return func(m *Memory) {
		m.requireSig = true
	}
}

// NewMemory creates an empty ledger.
func NewMemory(catalog *levels.Catalog, opts ...MemoryOption) *Memory {
	m := &Memory{
		catalog:   catalog,
		batchCap:  DefaultBatchCap,
		now:       time.Now,
		stars:     make(map[string]map[int]int),
		updatedAt: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Seed sets stars directly, as if written by another device.
func (m *Memory) Seed(playerID string, level, stars int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apply(playerID, []int{level}, []int{stars})
}

// FailReads makes subsequent reads fail with ErrUnavailable.
func (m *Memory) FailReads(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failReads = fail
}

// RejectWrites makes subsequent writes fail with a RejectedError carrying
// reason. An empty reason accepts writes again.
func (m *Memory) RejectWrites(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectReason = reason
}

// SetWriteHook installs fn to run before each write is applied. A non-nil
// return fails the write.
func (m *Memory) SetWriteHook(fn func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
}

// Writes returns every write call in order.
func (m *Memory) Writes() []WriteRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]WriteRecord(nil), m.writes...)
}

// Reads returns the number of read calls served.
func (m *Memory) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Stars returns the stored stars for a level without counting as a read.
func (m *Memory) Stars(playerID string, level int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stars[canon.NormalizeID(playerID)][level]
}

// ReadLevel implements Ledger.
func (m *Memory) ReadLevel(ctx context.Context, playerID string, level int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.failReads {
		return 0, fmt.Errorf("read level %d: %w", level, ErrUnavailable)
	}
	return m.stars[canon.NormalizeID(playerID)][level], nil
}

// ReadAggregate implements Ledger.
func (m *Memory) ReadAggregate(ctx context.Context, playerID string) (Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return Aggregate{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.failReads {
		return Aggregate{}, fmt.Errorf("read aggregate: %w", ErrUnavailable)
	}
	playerID = canon.NormalizeID(playerID)
	total := 0
	for _, s := range m.stars[playerID] {
		total += s
	}
	return Aggregate{TotalStars: total, LastUpdatedAt: m.updatedAt[playerID]}, nil
}

// Write implements Ledger.
func (m *Memory) Write(ctx context.Context, playerID string, level, stars int, opts WriteOptions) error {
	return m.write(ctx, WriteRecord{
		PlayerID: playerID,
		Levels:   []int{level},
		Stars:    []int{stars},
		Options:  opts,
	})
}

// WriteBatch implements Ledger.
func (m *Memory) WriteBatch(ctx context.Context, playerID string, levelList, stars []int, opts WriteOptions) error {
	return m.write(ctx, WriteRecord{
		PlayerID: playerID,
		Levels:   append([]int(nil), levelList...),
		Stars:    append([]int(nil), stars...),
		Batch:    true,
		Options:  opts,
	})
}

func (m *Memory) write(ctx context.Context, rec WriteRecord) error {
	m.mu.Lock()
	hook := m.hook
	m.mu.Unlock()

	var err error
	if hook != nil {
		err = hook(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		err = m.check(rec)
	}
	rec.Err = err
	m.writes = append(m.writes, rec)
	if err != nil {
		return err
	}
	m.apply(rec.PlayerID, rec.Levels, rec.Stars)
	return nil
}

// check must be called with m.mu held.
func (m *Memory) check(rec WriteRecord) error {
	if m.rejectReason != "" {
		return &RejectedError{Reason: m.rejectReason}
	}
	if err := ValidateBatch(m.catalog, rec.Levels, rec.Stars, m.batchCap); err != nil {
		return &RejectedError{Reason: err.Error()}
	}
	if rec.Options.Sponsor != "" && m.noSponsorship {
		return &RejectedError{Reason: "sponsorship unsupported"}
	}
	if m.requireSig {
		digest, err := WriteDigest(rec.PlayerID, rec.Levels, rec.Stars)
		if err != nil {
			return &RejectedError{Reason: err.Error()}
		}
		if err := Verify(digest, rec.Options.Signature, rec.Options.PublicKey); err != nil {
			return &RejectedError{Reason: err.Error()}
		}
	}
	return nil
}

// apply must be called with m.mu held.
func (m *Memory) apply(playerID string, levelList, stars []int) {
	playerID = canon.NormalizeID(playerID)
	rec, ok := m.stars[playerID]
	if !ok {
		rec = make(map[int]int)
		m.stars[playerID] = rec
	}
	for i, l := range levelList {
		rec[l] = stars[i]
	}
	m.updatedAt[playerID] = max(m.now().UnixMilli(), m.updatedAt[playerID]+1)
}
