package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/birdclef-go/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	DataPrep  *metrics.OperationMetrics
	Datastore *metrics.OperationMetrics
	Training  *metrics.TrainingMetrics
	MQTT      *metrics.MQTTMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors
// on a private registry together with the Go runtime and process collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	dataPrep, err := metrics.NewOperationMetrics(registry, "dataprep")
	if err != nil {
		return nil, fmt.Errorf("failed to create data preparation metrics: %w", err)
	}

	datastore, err := metrics.NewOperationMetrics(registry, "datastore")
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}

	training, err := metrics.NewTrainingMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create training metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		DataPrep:  dataPrep,
		Datastore: datastore,
		Training:  training,
		MQTT:      mqttMetrics,
	}, nil
}

// Registry returns the registry all collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
}

// GetMQTT returns the MQTT metrics, nil when m is nil
func (m *Metrics) GetMQTT() *metrics.MQTTMetrics {
	if m == nil {
		return nil
	}
	return m.MQTT
}

// GetDataPrep returns the data preparation recorder, nil when m is nil
func (m *Metrics) GetDataPrep() metrics.Recorder {
	if m == nil {
		return nil
	}
	return m.DataPrep
}

// GetDatastore returns the datastore recorder, nil when m is nil
func (m *Metrics) GetDatastore() metrics.Recorder {
	if m == nil {
		return nil
	}
	return m.Datastore
}

// GetTraining returns the training metrics, nil when m is nil
func (m *Metrics) GetTraining() *metrics.TrainingMetrics {
	if m == nil {
		return nil
	}
	return m.Training
}
