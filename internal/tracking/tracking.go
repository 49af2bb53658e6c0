// Package tracking delivers per-step training metrics to the console logger
// and to the optional MQTT, datastore and Prometheus sinks.
package tracking

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/logger"
)

// GetLogger returns the tracking package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("tracking")
}

// Run identifies a training run across sinks
type Run struct {
	ID        string
	Name      string
	Node      string
	Config    string // YAML snapshot of the settings
	StartedAt time.Time
}

// NewRun returns a run with a fresh id and a snapshot of settings
func NewRun(name string, settings *conf.Settings) (*Run, error) {
	snapshot, err := yaml.Marshal(redacted(settings))
	if err != nil {
		return nil, fmt.Errorf("snapshot settings: %w", err)
	}
	node := settings.Main.Name
	if node == "" {
		node, _ = os.Hostname()
	}
	return &Run{
		ID:        uuid.NewString(),
		Name:      name,
		Node:      node,
		Config:    string(snapshot),
		StartedAt: time.Now(),
	}, nil
}

// redacted copies settings without credentials
func redacted(settings *conf.Settings) conf.Settings {
	s := *settings
	s.Tracking.MQTT.Password = ""
	s.Tracking.Datastore.MySQL.Password = ""
	s.Sentry.DSN = ""
	return s
}

// Checkpoint describes a saved checkpoint
type Checkpoint struct {
	Epoch int
	Step  int
	Score float64
	Path  string
}

// Sink receives tracking events for one run
type Sink interface {
	Name() string
	Start(ctx context.Context, run *Run) error
	Log(ctx context.Context, run *Run, step int, values map[string]float64) error
	Checkpoint(ctx context.Context, run *Run, ckpt Checkpoint) error
	Finish(ctx context.Context, run *Run, status string) error
	Close() error
}

// Tracker fans events out to its sinks. Sink failures are logged, never returned.
type Tracker struct {
	run   *Run
	sinks []Sink
	log   logger.Logger
}

// NewTracker starts run on every sink, sinks that fail to start are dropped
func NewTracker(ctx context.Context, run *Run, sinks ...Sink) *Tracker {
	t := &Tracker{run: run, log: GetLogger().With(logger.String("run", run.Name))}
	for _, s := range sinks {
		if err := s.Start(ctx, run); err != nil {
			t.log.Warn("tracking sink disabled",
				logger.String("sink", s.Name()),
				logger.Error(err))
			if cerr := s.Close(); cerr != nil {
				t.log.Debug("closing tracking sink failed", logger.String("sink", s.Name()), logger.Error(cerr))
			}
			continue
		}
		t.sinks = append(t.sinks, s)
	}
	return t
}

// Run returns the tracked run
func (t *Tracker) Run() *Run { return t.run }

// Sinks returns the names of the active sinks
func (t *Tracker) Sinks() []string {
	names := make([]string, len(t.sinks))
	for i, s := range t.sinks {
		names[i] = s.Name()
	}
	return names
}

// Log delivers values logged at step
func (t *Tracker) Log(ctx context.Context, step int, values map[string]float64) {
	for _, s := range t.sinks {
		if err := s.Log(ctx, t.run, step, values); err != nil {
			t.warn(s, "log", err)
		}
	}
}

// Checkpoint reports a saved checkpoint
func (t *Tracker) Checkpoint(ctx context.Context, ckpt Checkpoint) {
	for _, s := range t.sinks {
		if err := s.Checkpoint(ctx, t.run, ckpt); err != nil {
			t.warn(s, "checkpoint", err)
		}
	}
}

// Finish reports the final run status and closes every sink
func (t *Tracker) Finish(ctx context.Context, status string) {
	for _, s := range t.sinks {
		if err := s.Finish(ctx, t.run, status); err != nil {
			t.warn(s, "finish", err)
		}
		if err := s.Close(); err != nil {
			t.warn(s, "close", err)
		}
	}
	t.sinks = nil
}

func (t *Tracker) warn(s Sink, op string, err error) {
	t.log.Warn("tracking sink failed",
		logger.String("sink", s.Name()),
		logger.String("operation", op),
		logger.Error(err))
}
