package runs

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/datastore"
)

func seedStore(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Tracking.Datastore.Type = conf.DatastoreSQLite
	settings.Tracking.Datastore.SQLite.Path = filepath.Join(t.TempDir(), "runs.db")

	store, err := datastore.New(settings, nil)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.CreateRun(ctx, &datastore.Run{RunID: "run-1", Name: "MEL-10-128-128-32000-512-5-224-1024-0", Node: "lab"}))
	require.NoError(t, store.SaveMetrics(ctx, "run-1", 0, map[string]float64{"valid/cmap": 0.25}))
	require.NoError(t, store.SaveMetrics(ctx, "run-1", 30, map[string]float64{"valid/cmap": 0.5}))
	require.NoError(t, store.SaveCheckpoint(ctx, &datastore.CheckpointRecord{RunID: "run-1", Epoch: 1, Step: 30, Score: 0.5, Path: "ckpt/model_1.ckpt"}))
	require.NoError(t, store.FinishRun(ctx, "run-1", datastore.RunStatusFinished))
	return settings
}

func execute(t *testing.T, settings *conf.Settings, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	// flag defaults come from viper, point the command at the seeded store
	db := settings.Tracking.Datastore.SQLite.Path
	cmd := Command(settings)
	cmd.SetArgs(append([]string{"--db", conf.DatastoreSQLite, "--sqlite", db}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func TestListRuns(t *testing.T) {
	settings := seedStore(t)

	out, err := execute(t, settings)
	require.NoError(t, err)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "finished")
	assert.Contains(t, out, "0.5000")
}

func TestShowRun(t *testing.T) {
	settings := seedStore(t)

	out, err := execute(t, settings, "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "ckpt/model_1.ckpt")
	assert.Contains(t, out, "0.2500")
	assert.Contains(t, out, "lab")

	_, err = execute(t, settings, "run-404")
	require.Error(t, err)
}
