package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/starmatch/internal/canon"
	"github.com/roach88/starmatch/internal/levels"
)

// GuestPlayer is the key used when no player is authenticated.
const GuestPlayer = "guest"

// KV is the local persistence collaborator.
type KV interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Key returns the storage key for playerID.
func Key(playerID string) string {
	id := canon.NormalizeID(playerID)
	if id == "" {
		id = GuestPlayer
	}
	return "progress/" + id
}

// CorruptKey returns where an undecodable record for key is preserved.
func CorruptKey(key string) string {
	return key + ".corrupt"
}

// Store is the local progress cache.
//
// A successful Save is visible to the next Load in this process even when
// the durable write failed; the in-process copy is authoritative until
// restart.
//
// A stored record that cannot be read is never written over. Changes made
// while it is unreadable stay in process and are folded onto the stored
// record once a later read succeeds. A record that reads but does not
// decode is copied aside under CorruptKey before it is replaced.
//
// Thread-safety: all methods are safe for concurrent use. CompleteLevel
// and SetSound are atomic read-modify-write operations per Store.
type Store struct {
	kv      KV
	catalog *levels.Catalog
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]Data
	// unread holds keys whose cached value has not been reconciled with
	// the stored record.
	unread map[string]bool
}

// NewStore creates a Store over kv. A nil logger uses slog.Default().
func NewStore(kv KV, catalog *levels.Catalog, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:      kv,
		catalog: catalog,
		logger:  logger,
		cache:   make(map[string]Data),
		unread:  make(map[string]bool),
	}
}

// Load returns playerID's progress, or Default() if none can be read.
func (s *Store) Load(ctx context.Context, playerID string) Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, _ := s.load(ctx, Key(playerID))
	return d.Clone()
}

// Save stores d for playerID. Failures are logged, never returned.
func (s *Store) Save(ctx context.Context, playerID string, d Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := Key(playerID)
	delete(s.unread, key)
	s.save(ctx, key, d.Clone())
}

// CompleteLevel records a cleared level and returns the new progress.
func (s *Store) CompleteLevel(ctx context.Context, playerID string, level, stars int) (Data, error) {
	if err := s.catalog.Check(level); err != nil {
		return Data{}, fmt.Errorf("complete level: %w", err)
	}
	if err := levels.CheckStars(stars); err != nil {
		return Data{}, fmt.Errorf("complete level %d: %w", level, err)
	}

	maxLevel := s.catalog.MaxLevel()
	return s.Update(ctx, playerID, func(d Data) Data {
		return d.WithCompletion(level, stars, maxLevel)
	}), nil
}

// SetSound updates the sound preference and returns the new progress.
func (s *Store) SetSound(ctx context.Context, playerID string, enabled bool) Data {
	return s.Update(ctx, playerID, func(d Data) Data {
		d.SoundEnabled = enabled
		return d
	})
}

// Update atomically replaces playerID's progress with fn(current) and
// returns the result. fn receives a private copy and must not block.
// Nothing is written when fn returns a value equal to the current one.
func (s *Store) Update(ctx context.Context, playerID string, fn func(Data) Data) Data {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(playerID)
	cur, stored := s.load(ctx, key)
	next := fn(cur.Clone()).Clone()
	switch {
	case next.Equal(cur):
	case !stored:
		s.cache[key] = next
		s.unread[key] = true
		s.logger.Warn("progress kept in memory until the stored record can be read", "key", key)
	default:
		s.save(ctx, key, next)
	}
	return next.Clone()
}

// Forget drops the cached copy for playerID so the next Load reads
// the backing store. Changes not yet written are kept.
func (s *Store) Forget(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := Key(playerID)
	if !s.unread[key] {
		delete(s.cache, key)
	}
}

// load must be called with s.mu held. It reports false when the value is
// a stand-in for a stored record that could not be read.
func (s *Store) load(ctx context.Context, key string) (Data, bool) {
	cached, hit := s.cache[key]
	if hit && !s.unread[key] {
		return cached, true
	}

	d, ok := s.read(ctx, key)
	switch {
	case !ok && hit:
		return cached, false
	case !ok:
		return Default(), false
	case hit:
		d = absorb(d, cached)
		delete(s.unread, key)
		s.logger.Info("progress record readable again, merging", "key", key)
		s.save(ctx, key, d)
		return d, true
	}
	s.cache[key] = d
	return d, true
}

func (s *Store) read(ctx context.Context, key string) (Data, bool) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Warn("progress load failed, using defaults", "key", key, "error", err)
		return Default(), false
	}
	if !ok {
		return Default(), true
	}

	d, err := Decode([]byte(raw))
	if err != nil {
		s.logger.Warn("progress record unreadable, using defaults", "key", key, "error", err)
		if err := s.kv.Set(ctx, CorruptKey(key), raw); err != nil {
			s.logger.Warn("preserving unreadable record failed", "key", key, "error", err)
			return Default(), false
		}
		return Default(), true
	}
	if d.HighestUnlockedLevel > s.catalog.MaxLevel() {
		d.HighestUnlockedLevel = s.catalog.MaxLevel()
	}
	return d, true
}

// absorb folds in-process changes onto the stored record: completions and
// stars only grow and the frontier takes the higher value. The sound
// preference is taken from mem only when it was changed from the default.
func absorb(stored, mem Data) Data {
	out := stored.Clone()
	for l := range mem.CompletedLevels {
		out.CompletedLevels[l] = true
	}
	for l, st := range mem.LevelStars {
		out.LevelStars[l] = max(out.LevelStars[l], st)
	}
	out.HighestUnlockedLevel = max(out.HighestUnlockedLevel, mem.HighestUnlockedLevel)
	if mem.SoundEnabled != Default().SoundEnabled {
		out.SoundEnabled = mem.SoundEnabled
	}
	return out
}

// save must be called with s.mu held. d must not be shared with callers.
func (s *Store) save(ctx context.Context, key string, d Data) {
	s.cache[key] = d

	data, err := Encode(d)
	if err != nil {
		s.logger.Warn("progress encode failed", "key", key, "error", err)
		return
	}
	if err := s.kv.Set(ctx, key, string(data)); err != nil {
		s.logger.Warn("progress save failed", "key", key, "error", err)
		return
	}
	s.logger.Debug("progress saved",
		"key", key,
		"completed", len(d.CompletedLevels),
		"frontier", d.HighestUnlockedLevel,
	)
}
