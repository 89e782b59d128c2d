package game

import "slices"

// Status is the lifecycle state of a session.
type Status string

const (
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
)

// Card is one face-down or face-up tile on the board.
// Invariant: IsMatched implies IsFlipped.
type Card struct {
	ID        string `json:"id"`
	ImageID   string `json:"image_id"`
	IsFlipped bool   `json:"is_flipped"`
	IsMatched bool   `json:"is_matched"`
}

// Session is the complete state of one play-through of a level.
//
// The zero Session means no level has been started; every action except
// StartLevel leaves it unchanged.
type Session struct {
	Level                int      `json:"level"`
	Cards                []Card   `json:"cards"`
	FlippedCardIDs       []string `json:"flipped_card_ids"`
	MatchedPairs         int      `json:"matched_pairs"`
	Moves                int      `json:"moves"`
	TimeRemainingSeconds int      `json:"time_remaining_seconds"`
	IsPlaying            bool     `json:"is_playing"`
	IsPaused             bool     `json:"is_paused"`
	Status               Status   `json:"status"`
}

// TotalPairs returns the number of pairs on the board.
func (s Session) TotalPairs() int {
	return len(s.Cards) / 2
}

// Clone returns a deep copy so reducers can mutate without aliasing.
func (s Session) Clone() Session {
	s.Cards = slices.Clone(s.Cards)
	s.FlippedCardIDs = slices.Clone(s.FlippedCardIDs)
	return s
}

// cardIndex returns the index of the card with id, or -1.
func (s Session) cardIndex(id string) int {
	for i, c := range s.Cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Card returns the card with id.
func (s Session) Card(id string) (Card, bool) {
	i := s.cardIndex(id)
	if i < 0 {
		return Card{}, false
	}
	return s.Cards[i], true
}
