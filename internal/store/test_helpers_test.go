package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/starmatch/internal/batcher"
)

// createTestStore opens a fresh database in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestOperation builds an operation with minimal required fields.
func createTestOperation(id, playerID string, seq int64, levels, stars []int) batcher.Operation {
	return batcher.Operation{
		ID:        id,
		ContentID: "content-" + id,
		Seq:       seq,
		PlayerID:  playerID,
		Levels:    levels,
		Stars:     stars,
	}
}
