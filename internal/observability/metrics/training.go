package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// TrainingMetrics exposes the latest training and validation values as gauges.
type TrainingMetrics struct {
	Values       *prometheus.GaugeVec // latest value per tracked key, e.g. train/loss
	Step         prometheus.Gauge
	Epoch        prometheus.Gauge
	LearningRate prometheus.Gauge
	BestScore    prometheus.Gauge
	Checkpoints  prometheus.Counter
	BatchLatency prometheus.Histogram
}

// NewTrainingMetrics creates and registers training metrics.
func NewTrainingMetrics(registry *prometheus.Registry) (*TrainingMetrics, error) {
	m := &TrainingMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register training metrics: %w", err)
	}
	return m, nil
}

func (m *TrainingMetrics) initMetrics() {
	m.Values = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "training",
		Name:      "metric_value",
		Help:      "Latest logged value of a training metric",
	}, []string{"run", "key"})

	m.Step = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "training",
		Name:      "step",
		Help:      "Current global training step",
	})

	m.Epoch = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "training",
		Name:      "epoch",
		Help:      "Current training epoch",
	})

	m.LearningRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "training",
		Name:      "learning_rate",
		Help:      "Current optimizer learning rate",
	})

	m.BestScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "training",
		Name:      "best_score",
		Help:      "Best padded cmAP reached so far",
	})

	m.Checkpoints = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "training",
		Name:      "checkpoints_saved_total",
		Help:      "Total number of checkpoints written",
	})

	m.BatchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "training",
		Name:      "batch_duration_seconds",
		Help:      "Duration of one optimizer step in seconds",
		Buckets:   prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
	})
}

// SetValues stores every value in values under its key. custom_step also
// updates the step gauge.
func (m *TrainingMetrics) SetValues(run string, values map[string]float64) {
	for key, v := range values {
		if key == "custom_step" {
			m.Step.Set(v)
			continue
		}
		m.Values.WithLabelValues(run, strings.ReplaceAll(key, "/", "_")).Set(v)
	}
}

// ObserveCheckpoint records a saved checkpoint and its score
func (m *TrainingMetrics) ObserveCheckpoint(score float64) {
	m.Checkpoints.Inc()
	m.BestScore.Set(score)
}

// Describe implements the prometheus.Collector interface.
func (m *TrainingMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Values.Describe(ch)
	ch <- m.Step.Desc()
	ch <- m.Epoch.Desc()
	ch <- m.LearningRate.Desc()
	ch <- m.BestScore.Desc()
	ch <- m.Checkpoints.Desc()
	ch <- m.BatchLatency.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *TrainingMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Values.Collect(ch)
	ch <- m.Step
	ch <- m.Epoch
	ch <- m.LearningRate
	ch <- m.BestScore
	ch <- m.Checkpoints
	ch <- m.BatchLatency
}
