package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/starmatch/internal/levels"
)

var (
	// ErrNoRecord means the ledger holds no progress for the player.
	ErrNoRecord = errors.New("no ledger record")

	// ErrUnavailable means a ledger read or write could not complete.
	ErrUnavailable = errors.New("ledger unavailable")

	// ErrEmptyBatch is returned for a write with no entries.
	ErrEmptyBatch = errors.New("empty batch")

	// ErrBatchTooLarge is returned when a batch exceeds the cap.
	ErrBatchTooLarge = errors.New("batch too large")

	// ErrLengthMismatch is returned when levels and stars differ in length.
	ErrLengthMismatch = errors.New("levels and stars length mismatch")
)

// DefaultBatchCap bounds the entries of a single writeBatch call.
const DefaultBatchCap = 100

// RejectedError is a write the ledger refused. Reason is shown to the player.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "write rejected: " + e.Reason
}

// IsRejected reports whether err is a ledger rejection.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// RejectionReason extracts the rejection reason, or err's text for other
// failures.
func RejectionReason(err error) string {
	var re *RejectedError
	if errors.As(err, &re) {
		return re.Reason
	}
	return err.Error()
}

// Aggregate is the per-player summary record.
type Aggregate struct {
	TotalStars int

	// LastUpdatedAt is the time of the last accepted write in Unix
	// milliseconds. Zero means never written.
	LastUpdatedAt int64
}

// IsEmpty reports whether the aggregate describes a player with no record.
func (a Aggregate) IsEmpty() bool {
	return a.TotalStars == 0 && a.LastUpdatedAt == 0
}

// WriteOptions carries per-write capabilities.
type WriteOptions struct {
	// Sponsor is the paymaster URL when the write is gas-sponsored.
	Sponsor string

	// Signature is a DER-encoded secp256k1 signature over WriteDigest.
	Signature []byte

	// PublicKey is the compressed public key that produced Signature.
	PublicKey []byte
}

// Ledger is the external progress ledger.
//
// Implementations must reject out-of-range levels or stars and oversized
// batches with a *RejectedError, and report transport failures wrapping
// ErrUnavailable.
type Ledger interface {
	// ReadLevel returns the stars recorded for level, 0 if none.
	ReadLevel(ctx context.Context, playerID string, level int) (int, error)

	// ReadAggregate returns the player's summary record.
	ReadAggregate(ctx context.Context, playerID string) (Aggregate, error)

	// Write records one level.
	Write(ctx context.Context, playerID string, level, stars int, opts WriteOptions) error

	// WriteBatch records several levels in one call.
	WriteBatch(ctx context.Context, playerID string, levelList, stars []int, opts WriteOptions) error
}

// ValidateBatch checks a write against the catalog range, the star range
// and the batch cap.
func ValidateBatch(catalog *levels.Catalog, levelList, stars []int, batchCap int) error {
	if len(levelList) == 0 {
		return ErrEmptyBatch
	}
	if len(levelList) != len(stars) {
		return fmt.Errorf("%w: %d levels, %d stars", ErrLengthMismatch, len(levelList), len(stars))
	}
	if batchCap > 0 && len(levelList) > batchCap {
		return fmt.Errorf("%w: %d entries (cap %d)", ErrBatchTooLarge, len(levelList), batchCap)
	}
	for i, l := range levelList {
		if err := catalog.Check(l); err != nil {
			return err
		}
		if err := levels.CheckStars(stars[i]); err != nil {
			return fmt.Errorf("level %d: %w", l, err)
		}
	}
	return nil
}
