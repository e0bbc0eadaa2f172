package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/husk/internal/model"
	"github.com/roach88/husk/internal/store"
)

func seedStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "husk.db")
	s, err := store.OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Checkpoints("board").Upsert(ctx, model.Checkpoint{
		Key:              model.Key{ScopeID: "board", SourceID: "s1"},
		OwnerScopeID:     "general",
		Mode:             model.ModeUpdateInPlace,
		RepresentationID: "m1",
	}))
	require.NoError(t, s.Checkpoints("sticky").Upsert(ctx, model.Checkpoint{
		Key:              model.Key{ScopeID: "c1", SourceID: "c1"},
		Mode:             model.ModeRepost,
		PinnedText:       "read the rules",
		RepresentationID: "m7",
	}))
	return path
}

func TestCheckpointsList_Text(t *testing.T) {
	path := seedStore(t)

	out, _, err := execute(t, "checkpoints", "list", "--dsn", path)
	require.NoError(t, err)

	assert.Contains(t, out, "DOMAIN")
	assert.Contains(t, out, "board/s1")
	assert.Contains(t, out, "update_in_place")
	assert.Contains(t, out, "c1/c1")
	assert.Contains(t, out, `"read the rules"`)
}

func TestCheckpointsList_JSONFilteredByDomain(t *testing.T) {
	path := seedStore(t)

	out, _, err := execute(t, "--format", "json", "checkpoints", "list",
		"--dsn", "sqlite://"+path, "--domain", "sticky")
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   []CheckpointRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, CheckpointRow{
		Domain:           "sticky",
		Key:              "c1/c1",
		Mode:             "repost",
		RepresentationID: "m7",
		PinnedText:       "read the rules",
	}, resp.Data[0])
}

func TestCheckpointsList_MemoryIsEmpty(t *testing.T) {
	out, _, err := execute(t, "checkpoints", "list", "--dsn", "memory://")
	require.NoError(t, err)
	assert.Contains(t, out, "No checkpoints")
}

func TestCheckpointsList_DSNFromConfig(t *testing.T) {
	path := seedStore(t)
	cfgPath := writeConfig(t, "husk.yaml", "dsn: "+path+"\n")

	out, _, err := execute(t, "-c", cfgPath, "checkpoints", "list", "--domain", "board")
	require.NoError(t, err)
	assert.Contains(t, out, "board/s1")
	assert.NotContains(t, out, "c1/c1")
}

func TestCheckpointsList_BadDSN(t *testing.T) {
	out, _, err := execute(t, "checkpoints", "list", "--dsn", "redis://localhost")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
}
