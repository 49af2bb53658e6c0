package observability

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/observability/metrics"
)

// TestNewMetricsConcurrency verifies that NewMetrics can be called concurrently
// since every call owns its registry.
func TestNewMetricsConcurrency(t *testing.T) {
	t.Parallel()

	const numGoroutines = 20
	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := NewMetrics()
			if !assert.NoError(t, err) {
				return
			}
			assert.NotNil(t, m.Registry())
			assert.NotNil(t, m.DataPrep)
			assert.NotNil(t, m.Datastore)
			assert.NotNil(t, m.Training)
			assert.NotNil(t, m.MQTT)
		}()
	}
	wg.Wait()
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.DataPrep.RecordOperation(metrics.OpChunkExport, metrics.StatusSuccess)

	mux := http.NewServeMux()
	m.RegisterHandlers(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `birdclef_dataprep_operations_total{operation="chunk_export",status="success"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNewEndpointRequiresSettings(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	_, err = NewEndpoint(&conf.Settings{}, m)
	require.Error(t, err)

	settings := &conf.Settings{}
	settings.Observability.Enabled = true
	_, err = NewEndpoint(settings, m)
	require.Error(t, err)
}

func TestEndpointServesUntilCancelled(t *testing.T) {
	t.Parallel()

	// reserve a free port
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	m, err := NewMetrics()
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Observability.Enabled = true
	settings.Observability.Listen = addr

	e, err := NewEndpoint(settings, m)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Start(ctx))

	resp, err := http.Get("http://" + addr + "/metrics") //nolint:noctx // test
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Contains(t, string(body), "birdclef_training_step")

	cancel()
	e.Shutdown()
}

func TestSetup(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	m, e, err := Setup(t.Context(), settings)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Nil(t, e)
	assert.Nil(t, m.GetDataPrep(), "disabled metrics hand out nil recorders")

	settings.Observability.Enabled = true
	m, e, err = Setup(t.Context(), settings)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Nil(t, e, "no listen address means no endpoint")
	assert.NotNil(t, m.GetTraining())
}
