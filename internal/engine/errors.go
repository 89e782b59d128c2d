package engine

import (
	"errors"
	"fmt"
)

// ErrNoPlayer is returned by Refresh when no identity is set. Guest
// progress lives only in the local store.
var ErrNoPlayer = errors.New("no player identity")

// SyncErrorCode categorizes sync failures.
type SyncErrorCode string

const (
	// ErrCodeLedgerUnavailable indicates the ledger could not be read.
	// Local progress was left unchanged.
	ErrCodeLedgerUnavailable SyncErrorCode = "LEDGER_UNAVAILABLE"

	// ErrCodeIdentityChanged indicates the player changed while the
	// refresh was in flight. Its result was discarded.
	ErrCodeIdentityChanged SyncErrorCode = "IDENTITY_CHANGED"

	// ErrCodeWriteFailed indicates a chunk of the delta was not written.
	// The merged progress was still saved locally.
	ErrCodeWriteFailed SyncErrorCode = "WRITE_FAILED"
)

// SyncError reports why a refresh did not reach the synced state.
type SyncError struct {
	// Code identifies the error category.
	Code SyncErrorCode

	// PlayerID is the identity the refresh ran for.
	PlayerID string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (player=%s)", e.Code, e.PlayerID)
	}
	return fmt.Sprintf("%s: %v (player=%s)", e.Code, e.Err, e.PlayerID)
}

// Unwrap returns the underlying cause.
func (e *SyncError) Unwrap() error {
	return e.Err
}

func syncErrorCode(err error) (SyncErrorCode, bool) {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return "", false
}

// IsLedgerUnavailable returns true if err is a LEDGER_UNAVAILABLE sync error.
func IsLedgerUnavailable(err error) bool {
	code, ok := syncErrorCode(err)
	return ok && code == ErrCodeLedgerUnavailable
}

// IsIdentityChanged returns true if err is an IDENTITY_CHANGED sync error.
func IsIdentityChanged(err error) bool {
	code, ok := syncErrorCode(err)
	return ok && code == ErrCodeIdentityChanged
}

// IsWriteFailed returns true if err is a WRITE_FAILED sync error.
func IsWriteFailed(err error) bool {
	code, ok := syncErrorCode(err)
	return ok && code == ErrCodeWriteFailed
}
