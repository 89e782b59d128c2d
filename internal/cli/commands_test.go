package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/starmatch/internal/ledger"
	"github.com/roach88/starmatch/internal/levels"
	"github.com/roach88/starmatch/internal/store"
)

// decodeData unmarshals a JSON CLIResponse and its data payload into v.
func decodeData(t *testing.T, out string, v any) CLIResponse {
	t.Helper()

	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if v != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, v))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

func TestProgressCommand_NewPlayer(t *testing.T) {
	db := tempDB(t)

	out, err := executeRoot(t, "--db", db, "--format", "json", "--player", "alice", "progress")
	require.NoError(t, err)

	var v ProgressView
	resp := decodeData(t, out, &v)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "alice", v.Player)
	assert.Equal(t, 1, v.HighestUnlockedLevel)
	assert.Empty(t, v.CompletedLevels)
	assert.Zero(t, v.TotalStars)
	assert.True(t, v.SoundEnabled)
}

func TestProgressCommand_Text(t *testing.T) {
	db := tempDB(t)
	_, err := executeRoot(t, "--db", db, "complete", "1", "9")
	require.NoError(t, err)

	out, err := executeRoot(t, "--db", db, "progress")
	require.NoError(t, err)
	assert.Equal(t, "Player:   guest\nUnlocked: 2\nStars:    3\nSound:    on\n  level 1   ***\n", out)
}

func TestCompleteCommand(t *testing.T) {
	db := tempDB(t)

	out, err := executeRoot(t, "--db", db, "--format", "json", "--player", "alice", "complete", "1", "9")
	require.NoError(t, err)

	var res CompleteResult
	decodeData(t, out, &res)
	assert.Equal(t, 1, res.Level)
	assert.Equal(t, 9, res.Moves)
	assert.Equal(t, 3, res.Stars)
	assert.Equal(t, 2, res.Progress.HighestUnlockedLevel)
	assert.Equal(t, []int{1}, res.Progress.CompletedLevels)

	// A worse replay keeps the best rating.
	out, err = executeRoot(t, "--db", db, "--format", "json", "--player", "alice", "complete", "1", "30")
	require.NoError(t, err)
	decodeData(t, out, &res)
	assert.Equal(t, 1, res.Stars)
	assert.Equal(t, 3, res.Progress.LevelStars[1])
	assert.Equal(t, 3, res.Progress.TotalStars)
}

func TestCompleteCommand_PlayersAreSeparate(t *testing.T) {
	db := tempDB(t)

	_, err := executeRoot(t, "--db", db, "--player", "alice", "complete", "1", "9")
	require.NoError(t, err)

	out, err := executeRoot(t, "--db", db, "--format", "json", "--player", "bob", "progress")
	require.NoError(t, err)
	var v ProgressView
	decodeData(t, out, &v)
	assert.Zero(t, v.TotalStars)
}

func TestCompleteCommand_InvalidArgs(t *testing.T) {
	db := tempDB(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"level not a number", []string{"complete", "one", "9"}, "invalid level"},
		{"moves not a number", []string{"complete", "1", "x"}, "invalid moves"},
		{"level out of range", []string{"complete", "101", "9"}, "cannot record level"},
		{"negative moves", []string{"complete", "--", "1", "-1"}, "cannot record level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeRoot(t, append([]string{"--db", db}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestSoundCommand(t *testing.T) {
	db := tempDB(t)

	out, err := executeRoot(t, "--db", db, "--format", "json", "sound", "off")
	require.NoError(t, err)
	var v ProgressView
	decodeData(t, out, &v)
	assert.False(t, v.SoundEnabled)

	out, err = executeRoot(t, "--db", db, "--format", "json", "progress")
	require.NoError(t, err)
	decodeData(t, out, &v)
	assert.False(t, v.SoundEnabled)

	_, err = executeRoot(t, "--db", db, "sound", "loud")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSyncCommand_Guest(t *testing.T) {
	_, err := executeRoot(t, "--db", tempDB(t), "sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync needs a player")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSyncCommand_UploadsThenClean(t *testing.T) {
	db := tempDB(t)
	_, err := executeRoot(t, "--db", db, "--player", "alice", "complete", "1", "9")
	require.NoError(t, err)
	_, err = executeRoot(t, "--db", db, "--player", "alice", "complete", "2", "14")
	require.NoError(t, err)

	out, err := executeRoot(t, "--db", db, "--format", "json", "--player", "alice", "sync")
	require.NoError(t, err)

	var res SyncResult
	resp := decodeData(t, out, &res)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "no_record", res.Remote)
	assert.Equal(t, 2, res.Delta)
	assert.Equal(t, 2, res.Written)
	require.Len(t, res.Operations, 1)
	assert.Equal(t, []int{1, 2}, res.Operations[0].Levels)
	assert.Equal(t, []int{3, 2}, res.Operations[0].Stars)
	assert.Equal(t, "success", res.Operations[0].State)
	assert.Equal(t, 3, res.Progress.HighestUnlockedLevel)

	out, err = executeRoot(t, "--db", db, "--format", "json", "--player", "alice", "sync")
	require.NoError(t, err)
	decodeData(t, out, &res)
	assert.Equal(t, "known", res.Remote)
	assert.Zero(t, res.Delta)
	assert.Empty(t, res.Operations)
}

func TestSyncCommand_AdoptsLedgerProgress(t *testing.T) {
	db := tempDB(t)

	st, err := store.Open(db)
	require.NoError(t, err)
	err = st.Ledger(levels.Default()).WriteBatch(context.Background(), "alice", []int{1, 2}, []int{3, 2}, ledger.WriteOptions{})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := executeRoot(t, "--db", db, "--format", "json", "--player", "alice", "sync")
	require.NoError(t, err)

	var res SyncResult
	decodeData(t, out, &res)
	assert.Equal(t, "known", res.Remote)
	assert.Zero(t, res.Delta)
	assert.Equal(t, []int{1, 2}, res.Progress.CompletedLevels)
	assert.Equal(t, 5, res.Progress.TotalStars)
	assert.Equal(t, 3, res.Progress.HighestUnlockedLevel)
}

func TestSyncCommand_WriteRejected(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "starmatch.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("require_signature: true\n"), 0644))
	db := filepath.Join(dir, "starmatch.db")

	_, err := executeRoot(t, "--db", db, "--config", cfgPath, "--player", "alice", "complete", "1", "9")
	require.NoError(t, err)

	out, err := executeRoot(t, "--db", db, "--config", cfgPath, "--format", "json", "--player", "alice", "sync")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeData(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "WRITE_FAILED", resp.Error.Code)

	// Merged progress stays local.
	out, err = executeRoot(t, "--db", db, "--format", "json", "--player", "alice", "progress")
	require.NoError(t, err)
	var v ProgressView
	decodeData(t, out, &v)
	assert.Equal(t, 3, v.TotalStars)
}

func TestOpsCommand(t *testing.T) {
	db := tempDB(t)
	_, err := executeRoot(t, "--db", db, "--player", "alice", "complete", "1", "9")
	require.NoError(t, err)
	_, err = executeRoot(t, "--db", db, "--player", "alice", "sync")
	require.NoError(t, err)

	out, err := executeRoot(t, "--db", db, "--format", "json", "--player", "alice", "ops", "--transitions")
	require.NoError(t, err)

	var views []OpView
	decodeData(t, out, &views)
	require.Len(t, views, 1)
	assert.Equal(t, "success", views[0].State)
	assert.Equal(t, []int{1}, views[0].Levels)

	var steps []string
	for _, tr := range views[0].Transitions {
		steps = append(steps, tr.To)
	}
	assert.Equal(t, []string{"idle", "pending", "success"}, steps)

	out, err = executeRoot(t, "--db", db, "--format", "json", "--player", "bob", "ops")
	require.NoError(t, err)
	views = nil
	decodeData(t, out, &views)
	assert.Empty(t, views)

	out, err = executeRoot(t, "--db", db, "ops", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "success")
}

func TestOpsCommand_NeedsPlayer(t *testing.T) {
	_, err := executeRoot(t, "--db", tempDB(t), "ops")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
