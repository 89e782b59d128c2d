package game

import (
	"fmt"
	"slices"

	"github.com/roach88/starmatch/internal/levels"
)

// Machine turns actions into the next session state.
//
// Reduce is pure with respect to its Session argument. A Machine holds a
// Shuffler that is not safe for concurrent use; share one Machine per
// Runner, not across goroutines.
type Machine struct {
	catalog *levels.Catalog
	shuffle Shuffler
	ids     IDGenerator
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithShuffler overrides the shuffle source (e.g. a seeded *rand.Rand).
func WithShuffler(s Shuffler) MachineOption {
	return func(m *Machine) {
		m.shuffle = s
	}
}

// WithIDGenerator overrides card ID generation.
func WithIDGenerator(g IDGenerator) MachineOption {
	return func(m *Machine) {
		m.ids = g
	}
}

// NewMachine creates a Machine backed by catalog.
func NewMachine(catalog *levels.Catalog, opts ...MachineOption) *Machine {
	m := &Machine{
		catalog: catalog,
		shuffle: globalShuffler{},
		ids:     UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Catalog returns the level catalog the machine deals from.
func (m *Machine) Catalog() *levels.Catalog {
	return m.catalog
}

// Start deals a fresh session for level.
// Unlike Reduce, it reports an out-of-range level as an error.
func (m *Machine) Start(level int) (Session, error) {
	if err := m.catalog.Check(level); err != nil {
		return Session{}, fmt.Errorf("start level: %w", err)
	}
	return m.deal(level), nil
}

// Reduce applies a to s and returns the resulting session.
// Actions that are not legal in the current state return s unchanged.
func (m *Machine) Reduce(s Session, a Action) Session {
	switch a.Kind {
	case ActionStartLevel:
		if m.catalog.Check(a.Level) != nil {
			return s
		}
		return m.deal(a.Level)
	case ActionRestartLevel:
		if s.Level == 0 {
			return s
		}
		return m.deal(s.Level)
	case ActionFlipCard:
		return flip(s, a.CardID)
	case ActionMatchFound:
		return matchFound(s, a.CardIDs)
	case ActionNoMatch:
		return noMatch(s, a.CardIDs)
	case ActionTickTimer:
		return tick(s)
	case ActionPauseGame:
		if !s.IsPlaying || s.Status != StatusPlaying || s.IsPaused {
			return s
		}
		s = s.Clone()
		s.IsPaused = true
		return s
	case ActionResumeGame:
		if !s.IsPaused {
			return s
		}
		s = s.Clone()
		s.IsPaused = false
		return s
	case ActionCompleteLevel:
		return forceWin(s)
	case ActionFailLevel:
		return finish(s, StatusLost)
	default:
		return s
	}
}

// deal builds a shuffled board with two cards per image.
func (m *Machine) deal(level int) Session {
	cfg := m.catalog.ConfigFor(level)

	cards := make([]Card, 0, cfg.Cells())
	for pair := 1; pair <= cfg.Pairs(); pair++ {
		image := fmt.Sprintf("img-%02d", pair)
		cards = append(cards,
			Card{ID: m.ids.Generate(), ImageID: image},
			Card{ID: m.ids.Generate(), ImageID: image},
		)
	}
	m.shuffle.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})

	return Session{
		Level:                level,
		Cards:                cards,
		FlippedCardIDs:       []string{},
		TimeRemainingSeconds: cfg.TimeLimitSeconds,
		IsPlaying:            true,
		Status:               StatusPlaying,
	}
}

func flip(s Session, id string) Session {
	if !s.IsPlaying || s.IsPaused || len(s.FlippedCardIDs) >= 2 {
		return s
	}
	i := s.cardIndex(id)
	if i < 0 || s.Cards[i].IsFlipped || s.Cards[i].IsMatched {
		return s
	}
	s = s.Clone()
	s.Cards[i].IsFlipped = true
	s.FlippedCardIDs = append(s.FlippedCardIDs, id)
	return s
}

// resolvable reports whether ids names exactly the two face-up cards.
func resolvable(s Session, ids []string) bool {
	if !s.IsPlaying || len(s.FlippedCardIDs) != 2 || len(ids) != 2 {
		return false
	}
	return slices.Contains(s.FlippedCardIDs, ids[0]) &&
		slices.Contains(s.FlippedCardIDs, ids[1]) &&
		ids[0] != ids[1]
}

func matchFound(s Session, ids []string) Session {
	if !resolvable(s, ids) {
		return s
	}
	a, b := s.cardIndex(ids[0]), s.cardIndex(ids[1])
	s = s.Clone()
	for _, i := range []int{a, b} {
		s.Cards[i].IsFlipped = true
		s.Cards[i].IsMatched = true
	}
	s.MatchedPairs++
	s.Moves++
	s.FlippedCardIDs = s.FlippedCardIDs[:0]
	if s.MatchedPairs == s.TotalPairs() {
		s.Status = StatusWon
		s.IsPlaying = false
		s.IsPaused = false
	}
	return s
}

func noMatch(s Session, ids []string) Session {
	if !resolvable(s, ids) {
		return s
	}
	s = s.Clone()
	for _, id := range ids {
		s.Cards[s.cardIndex(id)].IsFlipped = false
	}
	s.Moves++
	s.FlippedCardIDs = s.FlippedCardIDs[:0]
	return s
}

func tick(s Session) Session {
	if !s.IsPlaying || s.IsPaused {
		return s
	}
	s = s.Clone()
	if s.TimeRemainingSeconds > 0 {
		s.TimeRemainingSeconds--
	}
	if s.TimeRemainingSeconds == 0 && s.Status == StatusPlaying {
		s.Status = StatusLost
		s.IsPlaying = false
	}
	return s
}

// forceWin marks every card matched so the won-status invariant
// (MatchedPairs == TotalPairs) still holds after the override.
func forceWin(s Session) Session {
	if s.Level == 0 {
		return s
	}
	s = finish(s, StatusWon)
	for i := range s.Cards {
		s.Cards[i].IsFlipped = true
		s.Cards[i].IsMatched = true
	}
	s.MatchedPairs = s.TotalPairs()
	return s
}

func finish(s Session, status Status) Session {
	if s.Level == 0 {
		return s
	}
	s = s.Clone()
	s.Status = status
	s.IsPlaying = false
	s.IsPaused = false
	s.FlippedCardIDs = s.FlippedCardIDs[:0]
	return s
}

// Judge compares the two face-up cards and returns the resolving action.
// Returns false unless exactly two cards are flipped.
func Judge(s Session) (Action, bool) {
	if len(s.FlippedCardIDs) != 2 {
		return Action{}, false
	}
	a, okA := s.Card(s.FlippedCardIDs[0])
	b, okB := s.Card(s.FlippedCardIDs[1])
	if !okA || !okB {
		return Action{}, false
	}
	if a.ImageID == b.ImageID {
		return MatchFound(a.ID, b.ID), true
	}
	return NoMatch(a.ID, b.ID), true
}
