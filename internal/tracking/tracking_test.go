package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/datastore"
	"github.com/tphakala/birdclef-go/internal/logger"
	"github.com/tphakala/birdclef-go/internal/observability/metrics"
)

type published struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	publishErr error
	messages   []published
}

func (c *fakeClient) Connect(context.Context) error {
	if c.connectErr != nil {
		return c.connectErr
	}
	c.connected = true
	return nil
}

func (c *fakeClient) Publish(_ context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.messages = append(c.messages, published{topic, payload})
	return nil
}

func (c *fakeClient) IsConnected() bool { return c.connected }
func (c *fakeClient) Disconnect()       { c.connected = false }

func testRun() *Run {
	return &Run{ID: "0b7e", Name: "mel-1-8-8-32000-512-5-224-1024-0", Node: "test", StartedAt: time.Now()}
}

func TestNewRunSnapshotRedactsSecrets(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Main.Name = "node-a"
	settings.Train.Epochs = 7
	settings.Tracking.MQTT.Password = "hunter2"
	settings.Tracking.Datastore.MySQL.Password = "s3cret"

	run, err := NewRun("mel-7", settings)
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, "node-a", run.Node)
	assert.NotContains(t, run.Config, "hunter2")
	assert.NotContains(t, run.Config, "s3cret")
	assert.Equal(t, "hunter2", settings.Tracking.MQTT.Password, "settings must not be modified")

	var decoded conf.Settings
	require.NoError(t, yaml.Unmarshal([]byte(run.Config), &decoded))
	assert.Equal(t, 7, decoded.Train.Epochs)

	other, err := NewRun("mel-7", settings)
	require.NoError(t, err)
	assert.NotEqual(t, run.ID, other.ID)
}

func TestMQTTSinkPublishesMetrics(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	sink := NewMQTTSink(client, "birdclef/", nil)
	run := testRun()
	ctx := context.Background()

	require.NoError(t, sink.Start(ctx, run))
	assert.True(t, client.IsConnected())
	require.NoError(t, sink.Log(ctx, run, 40, map[string]float64{"train/loss": 0.5, "custom_step": 40}))
	require.NoError(t, sink.Finish(ctx, run, "finished"))
	require.NoError(t, sink.Close())
	assert.False(t, client.IsConnected())

	require.Len(t, client.messages, 3)
	assert.Equal(t, "birdclef/"+run.Name+"/status", client.messages[0].topic)
	assert.Equal(t, "birdclef/"+run.Name+"/metrics", client.messages[1].topic)

	var msg MetricsMessage
	require.NoError(t, json.Unmarshal(client.messages[1].payload, &msg))
	assert.Equal(t, run.Name, msg.Run)
	assert.Equal(t, 40, msg.Step)
	assert.InDelta(t, 0.5, msg.Metrics["train/loss"], 0)

	var status StatusMessage
	require.NoError(t, json.Unmarshal(client.messages[2].payload, &status))
	assert.Equal(t, "finished", status.Status)
}

func TestTrackerDropsSinksThatFailToStart(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelInfo, time.UTC)

	broken := NewMQTTSink(&fakeClient{connectErr: fmt.Errorf("broker down")}, "birdclef", nil)
	tracker := NewTracker(context.Background(), testRun(), NewLogSink(log), broken)

	assert.Equal(t, []string{"log"}, tracker.Sinks())

	tracker.Log(context.Background(), 1, map[string]float64{"valid/cmap": 0.25})
	assert.Contains(t, buf.String(), "valid/cmap=0.25")
	assert.Contains(t, buf.String(), "step=1")
}

func TestTrackerContinuesAfterSinkErrors(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	sink := NewMQTTSink(client, "birdclef", nil)
	tracker := NewTracker(context.Background(), testRun(), sink)
	require.Equal(t, []string{"mqtt"}, tracker.Sinks())

	client.publishErr = fmt.Errorf("publish failed")
	tracker.Log(context.Background(), 2, map[string]float64{"train/loss": 1})
	tracker.Checkpoint(context.Background(), Checkpoint{Epoch: 1, Score: 0.3})
	tracker.Finish(context.Background(), "finished")

	assert.Empty(t, tracker.Sinks())
	assert.False(t, client.IsConnected())
}

func TestPrometheusSink(t *testing.T) {
	t.Parallel()

	training, err := metrics.NewTrainingMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	run := testRun()
	sink := NewPrometheusSink(training)
	require.NoError(t, sink.Log(context.Background(), run, 60, map[string]float64{"valid/cmap": 0.42, "custom_step": 60}))
	require.NoError(t, sink.Checkpoint(context.Background(), run, Checkpoint{Score: 0.42}))

	assert.InDelta(t, 0.42, testutil.ToFloat64(training.Values.WithLabelValues(run.Name, "valid_cmap")), 1e-12)
	assert.InDelta(t, 60, testutil.ToFloat64(training.Step), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(training.Checkpoints), 0)
}

func TestDatastoreSinkRecordsRun(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "runs.db")
	run := testRun()

	tracker := NewTracker(context.Background(), run, NewDatastoreSink(&datastore.SQLiteStore{Path: path}))
	require.Equal(t, []string{"datastore"}, tracker.Sinks())

	tracker.Log(context.Background(), 20, map[string]float64{"train/loss": 2})
	tracker.Log(context.Background(), 40, map[string]float64{"train/loss": 1})
	tracker.Checkpoint(context.Background(), Checkpoint{Epoch: 1, Step: 40, Score: 0.5, Path: "model_1.ckpt"})
	tracker.Finish(context.Background(), datastore.RunStatusFinished)

	store := &datastore.SQLiteStore{Path: path}
	require.NoError(t, store.Open())
	defer store.Close()

	got, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, datastore.RunStatusFinished, got.Status)
	assert.Equal(t, "model_1.ckpt", got.BestCheckpoint)

	history, err := store.GetMetricHistory(context.Background(), run.ID, "train/loss")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestNewWithoutExternalLogging(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Train.Logging = false
	settings.Tracking.MQTT.Enabled = true
	settings.Tracking.Datastore.Enabled = true

	tracker := New(context.Background(), settings, testRun(), nil)
	assert.Equal(t, []string{"log"}, tracker.Sinks())
}
