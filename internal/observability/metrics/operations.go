package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics is a Recorder backed by Prometheus vectors. One instance
// exists per subsystem ("dataprep", "datastore").
type OperationMetrics struct {
	subsystem  string
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	errors     *prometheus.CounterVec
}

// NewOperationMetrics creates and registers operation metrics for subsystem.
func NewOperationMetrics(registry *prometheus.Registry, subsystem string) (*OperationMetrics, error) {
	m := &OperationMetrics{subsystem: subsystem}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register %s metrics: %w", subsystem, err)
	}
	return m, nil
}

func (m *OperationMetrics) initMetrics() {
	m.operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: m.subsystem,
		Name:      "operations_total",
		Help:      "Total number of operations by outcome",
	}, []string{"operation", "status"})

	m.durations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: m.subsystem,
		Name:      "operation_duration_seconds",
		Help:      "Duration of operations in seconds",
		Buckets:   prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
	}, []string{"operation"})

	m.errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: m.subsystem,
		Name:      "errors_total",
		Help:      "Total number of errors by type",
	}, []string{"operation", "error_type"})
}

// RecordOperation implements Recorder
func (m *OperationMetrics) RecordOperation(operation, status string) {
	m.operations.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder
func (m *OperationMetrics) RecordDuration(operation string, seconds float64) {
	m.durations.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder
func (m *OperationMetrics) RecordError(operation, errorType string) {
	m.errors.WithLabelValues(operation, errorType).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *OperationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operations.Describe(ch)
	m.durations.Describe(ch)
	m.errors.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *OperationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operations.Collect(ch)
	m.durations.Collect(ch)
	m.errors.Collect(ch)
}
