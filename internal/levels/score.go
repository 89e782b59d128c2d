package levels

import (
	"errors"
	"fmt"
)

// Star bounds for a completed level.
const (
	MinStars = 1
	MaxStars = 3
)

// ErrStarsOutOfRange is returned when a rating is outside MinStars..MaxStars.
var ErrStarsOutOfRange = errors.New("stars out of range")

// StarsFor scores a completed level. Reaching this function implies the
// level was won, so the result is never below MinStars.
func StarsFor(moves int, cfg Config) int {
	switch {
	case moves <= cfg.OptimalMoves:
		return 3
	case moves <= cfg.AcceptableMoves:
		return 2
	default:
		return 1
	}
}

// CheckStars returns ErrStarsOutOfRange unless stars is a valid rating.
func CheckStars(stars int) error {
	if stars < MinStars || stars > MaxStars {
		return fmt.Errorf("%w: %d (want %d..%d)", ErrStarsOutOfRange, stars, MinStars, MaxStars)
	}
	return nil
}
