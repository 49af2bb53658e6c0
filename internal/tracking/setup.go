package tracking

import (
	"context"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/datastore"
	"github.com/tphakala/birdclef-go/internal/logger"
	"github.com/tphakala/birdclef-go/internal/mqtt"
	"github.com/tphakala/birdclef-go/internal/observability"
)

// New builds the tracker for settings. The log sink is always present.
// External sinks need train.logging and their own enabled flag, and the
// Prometheus sink needs m. m may be nil.
func New(ctx context.Context, settings *conf.Settings, run *Run, m *observability.Metrics) *Tracker {
	sinks := []Sink{NewLogSink(nil)}

	if !settings.Train.Logging {
		return NewTracker(ctx, run, sinks...)
	}

	if m != nil {
		sinks = append(sinks, NewPrometheusSink(m.Training))
	}

	if settings.Tracking.MQTT.Enabled {
		client, err := mqtt.NewClient(mqtt.ConfigFromSettings(settings), m.GetMQTT())
		if err != nil {
			GetLogger().Warn("MQTT tracking disabled", logger.Error(err))
		} else {
			sinks = append(sinks, NewMQTTSink(client, settings.Tracking.MQTT.Topic, m.GetDataPrep()))
		}
	}

	if settings.Tracking.Datastore.Enabled {
		store, err := datastore.New(settings, m.GetDatastore())
		if err != nil {
			GetLogger().Warn("datastore tracking disabled", logger.Error(err))
		} else {
			sinks = append(sinks, NewDatastoreSink(store))
		}
	}

	return NewTracker(ctx, run, sinks...)
}
