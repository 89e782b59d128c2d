package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/starmatch/internal/ledger"
	"github.com/roach88/starmatch/internal/levels"
)

func frozen(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestDevLedger_EmptyAggregate(t *testing.T) {
	l := createTestStore(t).Ledger(levels.Default())

	agg, err := l.ReadAggregate(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, agg.IsEmpty())

	stars, err := l.ReadLevel(context.Background(), "p1", 1)
	require.NoError(t, err)
	assert.Zero(t, stars)
}

func TestDevLedger_WriteAndRead(t *testing.T) {
	ctx := context.Background()
	l := createTestStore(t).Ledger(levels.Default(), WithLedgerClock(frozen(5000)))

	require.NoError(t, l.Write(ctx, "p1", 1, 3, ledger.WriteOptions{}))
	require.NoError(t, l.WriteBatch(ctx, "p1", []int{2, 3}, []int{2, 1}, ledger.WriteOptions{}))
	require.NoError(t, l.Write(ctx, "p2", 1, 1, ledger.WriteOptions{}))

	agg, err := l.ReadAggregate(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 6, agg.TotalStars)
	assert.Equal(t, int64(5001), agg.LastUpdatedAt, "timestamps strictly increase under a frozen clock")

	stars, err := l.ReadLevel(ctx, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, stars)

	// Overwrite.
	require.NoError(t, l.Write(ctx, "p1", 2, 3, ledger.WriteOptions{}))
	stars, err = l.ReadLevel(ctx, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, stars)
}

func TestDevLedger_PlayerIDsAreNormalized(t *testing.T) {
	ctx := context.Background()
	l := createTestStore(t).Ledger(levels.Default(), WithLedgerClock(frozen(5000)))

	require.NoError(t, l.Write(ctx, "cafe\u0301", 1, 3, ledger.WriteOptions{}))
	require.NoError(t, l.WriteBatch(ctx, "caf\u00e9", []int{2, 3}, []int{1, 1}, ledger.WriteOptions{}))

	agg, err := l.ReadAggregate(ctx, "caf\u00e9")
	require.NoError(t, err)
	assert.Equal(t, 5, agg.TotalStars)
	assert.Equal(t, int64(5001), agg.LastUpdatedAt, "one player row")

	stars, err := l.ReadLevel(ctx, "cafe\u0301", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, stars)
}

func TestDevLedger_Rejections(t *testing.T) {
	ctx := context.Background()
	l := createTestStore(t).Ledger(levels.Default(), WithLedgerBatchCap(2), WithSponsorshipRejected())

	tests := []struct {
		name  string
		write func() error
	}{
		{"level range", func() error { return l.Write(ctx, "p1", 0, 1, ledger.WriteOptions{}) }},
		{"stars range", func() error { return l.Write(ctx, "p1", 1, 4, ledger.WriteOptions{}) }},
		{"batch cap", func() error {
			return l.WriteBatch(ctx, "p1", []int{1, 2, 3}, []int{1, 1, 1}, ledger.WriteOptions{})
		}},
		{"length mismatch", func() error {
			return l.WriteBatch(ctx, "p1", []int{1, 2}, []int{1}, ledger.WriteOptions{})
		}},
		{"sponsorship", func() error {
			return l.Write(ctx, "p1", 1, 1, ledger.WriteOptions{Sponsor: "https://pay"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, ledger.IsRejected(tt.write()))
		})
	}

	agg, err := l.ReadAggregate(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, agg.IsEmpty(), "rejected writes leave no trace")
}

func TestDevLedger_Signatures(t *testing.T) {
	ctx := context.Background()
	l := createTestStore(t).Ledger(levels.Default(), WithSignatureRequired())
	signer, err := ledger.GenerateKeySigner()
	require.NoError(t, err)

	assert.True(t, ledger.IsRejected(l.Write(ctx, "p1", 1, 3, ledger.WriteOptions{})))

	digest, err := ledger.WriteDigest("p1", []int{1, 2}, []int{3, 3})
	require.NoError(t, err)
	sig, pub, err := signer.Sign(digest)
	require.NoError(t, err)

	opts := ledger.WriteOptions{Signature: sig, PublicKey: pub}
	require.NoError(t, l.WriteBatch(ctx, "p1", []int{1, 2}, []int{3, 3}, opts))
	assert.True(t, ledger.IsRejected(l.WriteBatch(ctx, "p1", []int{1, 2}, []int{3, 2}, opts)))
}

func TestDevLedger_ReaderIntegration(t *testing.T) {
	ctx := context.Background()
	cat := levels.Default()
	l := createTestStore(t).Ledger(cat)

	r := ledger.NewReader(l, cat)
	_, err := r.Fetch(ctx, "p1")
	assert.ErrorIs(t, err, ledger.ErrNoRecord)

	require.NoError(t, l.WriteBatch(ctx, "p1", []int{5, 6}, []int{3, 1}, ledger.WriteOptions{}))
	p, err := r.Fetch(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{5: 3, 6: 1}, p.PerLevelStars)
	assert.Equal(t, 4, p.TotalStars)
}

func TestDevLedger_ClosedDatabaseIsUnavailable(t *testing.T) {
	s := createTestStore(t)
	l := s.Ledger(levels.Default())
	require.NoError(t, s.Close())

	_, err := l.ReadAggregate(context.Background(), "p1")
	assert.ErrorIs(t, err, ledger.ErrUnavailable)
	assert.ErrorIs(t, l.Write(context.Background(), "p1", 1, 1, ledger.WriteOptions{}), ledger.ErrUnavailable)
}
