package tracking

import (
	"context"
	"sort"

	"github.com/tphakala/birdclef-go/internal/logger"
	"github.com/tphakala/birdclef-go/internal/observability/metrics"
)

// LogSink writes metrics to a logger
type LogSink struct {
	log logger.Logger
}

// NewLogSink returns a sink logging through log, nil uses the package logger
func NewLogSink(log logger.Logger) *LogSink {
	if log == nil {
		log = GetLogger()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Start(_ context.Context, run *Run) error {
	s.log.Info("training run started",
		logger.String("run", run.Name),
		logger.String("run_id", run.ID),
		logger.String("node", run.Node))
	return nil
}

func (s *LogSink) Log(_ context.Context, run *Run, step int, values map[string]float64) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]logger.Field, 0, len(keys)+2)
	fields = append(fields, logger.String("run", run.Name), logger.Int("step", step))
	for _, k := range keys {
		fields = append(fields, logger.Float64(k, values[k]))
	}
	s.log.Info("metrics", fields...)
	return nil
}

func (s *LogSink) Checkpoint(_ context.Context, run *Run, ckpt Checkpoint) error {
	s.log.Info("checkpoint saved",
		logger.String("run", run.Name),
		logger.Int("epoch", ckpt.Epoch),
		logger.Int("step", ckpt.Step),
		logger.Float64("score", ckpt.Score),
		logger.String("path", ckpt.Path))
	return nil
}

func (s *LogSink) Finish(_ context.Context, run *Run, status string) error {
	s.log.Info("training run finished",
		logger.String("run", run.Name),
		logger.String("status", status))
	return nil
}

func (s *LogSink) Close() error { return nil }

// PrometheusSink mirrors metrics into the training gauges
type PrometheusSink struct {
	metrics *metrics.TrainingMetrics
}

// NewPrometheusSink returns a sink updating m
func NewPrometheusSink(m *metrics.TrainingMetrics) *PrometheusSink {
	return &PrometheusSink{metrics: m}
}

func (s *PrometheusSink) Name() string                               { return "prometheus" }
func (s *PrometheusSink) Start(context.Context, *Run) error          { return nil }
func (s *PrometheusSink) Finish(context.Context, *Run, string) error { return nil }
func (s *PrometheusSink) Close() error                               { return nil }

func (s *PrometheusSink) Log(_ context.Context, run *Run, _ int, values map[string]float64) error {
	s.metrics.SetValues(run.Name, values)
	return nil
}

func (s *PrometheusSink) Checkpoint(_ context.Context, _ *Run, ckpt Checkpoint) error {
	s.metrics.ObserveCheckpoint(ckpt.Score)
	return nil
}
