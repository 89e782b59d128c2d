package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/starmatch/internal/levels"
)

func TestValidateBatch(t *testing.T) {
	cat := levels.Default()

	tests := []struct {
		name   string
		levels []int
		stars  []int
		cap    int
		want   error
	}{
		{"ok", []int{1, 2}, []int{3, 1}, 100, nil},
		{"empty", nil, nil, 100, ErrEmptyBatch},
		{"mismatch", []int{1, 2}, []int{3}, 100, ErrLengthMismatch},
		{"too large", []int{1, 2, 3}, []int{1, 1, 1}, 2, ErrBatchTooLarge},
		{"level zero", []int{0}, []int{1}, 100, levels.ErrLevelOutOfRange},
		{"level high", []int{101}, []int{1}, 100, levels.ErrLevelOutOfRange},
		{"stars zero", []int{1}, []int{0}, 100, levels.ErrStarsOutOfRange},
		{"stars four", []int{1}, []int{4}, 100, levels.ErrStarsOutOfRange},
		{"no cap", []int{1, 2, 3}, []int{1, 1, 1}, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatch(cat, tt.levels, tt.stars, tt.cap)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRejectedError(t *testing.T) {
	err := fmt.Errorf("submit: %w", &RejectedError{Reason: "signer declined"})
	assert.True(t, IsRejected(err))
	assert.Equal(t, "signer declined", RejectionReason(err))
	assert.Equal(t, "submit: write rejected: signer declined", err.Error())

	plain := errors.New("boom")
	assert.False(t, IsRejected(plain))
	assert.Equal(t, "boom", RejectionReason(plain))
}

func TestAggregateIsEmpty(t *testing.T) {
	assert.True(t, Aggregate{}.IsEmpty())
	assert.False(t, Aggregate{LastUpdatedAt: 1}.IsEmpty())
	assert.False(t, Aggregate{TotalStars: 3}.IsEmpty())
}
