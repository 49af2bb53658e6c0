package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationMetricsRecord(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewOperationMetrics(registry, "dataprep")
	require.NoError(t, err)

	var r Recorder = m
	r.RecordOperation(OpChunkExport, StatusSuccess)
	r.RecordOperation(OpChunkExport, StatusSuccess)
	r.RecordOperation(OpChunkReject, StatusSkipped)
	r.RecordError(OpAudioDecode, "audio-processing")
	r.RecordDuration(OpFeatureExtract, 0.02)

	assert.InDelta(t, 2, testutil.ToFloat64(m.operations.WithLabelValues(OpChunkExport, StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.operations.WithLabelValues(OpChunkReject, StatusSkipped)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.errors.WithLabelValues(OpAudioDecode, "audio-processing")), 0)

	expected := `
# HELP birdclef_dataprep_errors_total Total number of errors by type
# TYPE birdclef_dataprep_errors_total counter
birdclef_dataprep_errors_total{error_type="audio-processing",operation="audio_decode"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "birdclef_dataprep_errors_total"))
}

func TestOperationMetricsDuplicateSubsystem(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewOperationMetrics(registry, "datastore")
	require.NoError(t, err)
	_, err = NewOperationMetrics(registry, "datastore")
	require.Error(t, err)
}

func TestTrainingMetricsSetValues(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewTrainingMetrics(registry)
	require.NoError(t, err)

	m.SetValues("mel-10", map[string]float64{"valid/cmap": 0.42, "custom_step": 2000})
	m.ObserveCheckpoint(0.42)

	assert.InDelta(t, 0.42, testutil.ToFloat64(m.Values.WithLabelValues("mel-10", "valid_cmap")), 1e-12)
	assert.InDelta(t, 2000, testutil.ToFloat64(m.Step), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Checkpoints), 0)
	assert.InDelta(t, 0.42, testutil.ToFloat64(m.BestScore), 1e-12)
}

func TestMQTTMetricsConnectionStatus(t *testing.T) {
	t.Parallel()

	m, err := NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.UpdateConnectionStatus(true)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ConnectionStatus), 0)
	assert.Positive(t, testutil.ToFloat64(m.LastConnectTime))

	m.UpdateConnectionStatus(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ConnectionStatus), 0)
}

func TestOrNoop(t *testing.T) {
	t.Parallel()

	assert.Equal(t, NoopRecorder{}, OrNoop(nil))
	m, err := NewOperationMetrics(prometheus.NewRegistry(), "x")
	require.NoError(t, err)
	assert.Same(t, m, OrNoop(m))
}
