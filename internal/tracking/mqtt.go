package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/mqtt"
	"github.com/tphakala/birdclef-go/internal/observability/metrics"
)

// MetricsMessage is the JSON payload published for every log call
type MetricsMessage struct {
	Run       string             `json:"run"`
	RunID     string             `json:"run_id"`
	Step      int                `json:"step"`
	Metrics   map[string]float64 `json:"metrics"`
	Timestamp time.Time          `json:"timestamp"`
}

// StatusMessage is published when a run starts, checkpoints and finishes
type StatusMessage struct {
	Run        string      `json:"run"`
	RunID      string      `json:"run_id"`
	Status     string      `json:"status"`
	Node       string      `json:"node,omitempty"`
	Checkpoint *Checkpoint `json:"checkpoint,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// MQTTSink publishes metrics to <topic>/<run>/metrics and run status to
// <topic>/<run>/status
type MQTTSink struct {
	client   mqtt.Client
	topic    string
	recorder metrics.Recorder
}

// NewMQTTSink returns a sink publishing through client under topic
func NewMQTTSink(client mqtt.Client, topic string, recorder metrics.Recorder) *MQTTSink {
	return &MQTTSink{
		client:   client,
		topic:    strings.TrimSuffix(topic, "/"),
		recorder: metrics.OrNoop(recorder),
	}
}

func (s *MQTTSink) Name() string { return "mqtt" }

// MetricsTopic returns the metrics topic of run
func (s *MQTTSink) MetricsTopic(run *Run) string {
	return fmt.Sprintf("%s/%s/metrics", s.topic, run.Name)
}

// StatusTopic returns the status topic of run
func (s *MQTTSink) StatusTopic(run *Run) string {
	return fmt.Sprintf("%s/%s/status", s.topic, run.Name)
}

func (s *MQTTSink) Start(ctx context.Context, run *Run) error {
	if !s.client.IsConnected() {
		if err := s.client.Connect(ctx); err != nil {
			return err
		}
	}
	return s.publish(ctx, s.StatusTopic(run), StatusMessage{
		Run: run.Name, RunID: run.ID, Status: "running", Node: run.Node, Timestamp: time.Now(),
	})
}

func (s *MQTTSink) Log(ctx context.Context, run *Run, step int, values map[string]float64) error {
	return s.publish(ctx, s.MetricsTopic(run), MetricsMessage{
		Run: run.Name, RunID: run.ID, Step: step, Metrics: values, Timestamp: time.Now(),
	})
}

func (s *MQTTSink) Checkpoint(ctx context.Context, run *Run, ckpt Checkpoint) error {
	return s.publish(ctx, s.StatusTopic(run), StatusMessage{
		Run: run.Name, RunID: run.ID, Status: "checkpoint", Checkpoint: &ckpt, Timestamp: time.Now(),
	})
}

func (s *MQTTSink) Finish(ctx context.Context, run *Run, status string) error {
	return s.publish(ctx, s.StatusTopic(run), StatusMessage{
		Run: run.Name, RunID: run.ID, Status: status, Node: run.Node, Timestamp: time.Now(),
	})
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect()
	return nil
}

func (s *MQTTSink) publish(ctx context.Context, topic string, msg any) error {
	start := time.Now()
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.New(err).
			Component("tracking").
			Category(errors.CategoryTracking).
			Context("topic", topic).
			Build()
	}

	err = s.client.Publish(ctx, topic, payload)
	s.recorder.RecordDuration(metrics.OpTrackingPublish, time.Since(start).Seconds())
	if err != nil {
		s.recorder.RecordOperation(metrics.OpTrackingPublish, metrics.StatusError)
		s.recorder.RecordError(metrics.OpTrackingPublish, "mqtt")
		return err
	}
	s.recorder.RecordOperation(metrics.OpTrackingPublish, metrics.StatusSuccess)
	return nil
}
