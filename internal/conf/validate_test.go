package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"defaults are valid", func(s *Settings) {}, ""},
		{"zero epochs", func(s *Settings) { s.Train.Epochs = 0 }, "train.epochs must be > 0"},
		{"nfft not power of two", func(s *Settings) { s.Train.NFFT = 1000 }, "power of two"},
		{"fold out of range", func(s *Settings) { s.Train.Fold = 5 }, "train.fold"},
		{"fold ignored with valid dir", func(s *Settings) { s.Train.Fold = 9; s.Train.ValidDir = "valid" }, ""},
		{"tflite needs model", func(s *Settings) { s.Train.Backbone = BackboneTFLite }, "train.modelpath"},
		{"unknown backbone", func(s *Settings) { s.Train.Backbone = "resnet" }, "train.backbone"},
		{"dropout of one", func(s *Settings) { s.Train.Dropout = 1 }, "train.dropout"},
		{"min lr above lr", func(s *Settings) { s.Train.MinLR = 1 }, "train.minlr"},
		{"negative chunk duration", func(s *Settings) { s.Chunk.Duration = -1 }, "chunk.duration"},
		{"zero chunk count", func(s *Settings) { s.Chunk.Count = 0 }, "chunk.count"},
		{"bad species mode", func(s *Settings) { s.Species.Mode = "guess" }, "species.mode"},
		{"split fraction of one", func(s *Settings) { s.Split.Fraction = 1 }, "split.fraction"},
		{"mqtt without scheme", func(s *Settings) {
			s.Tracking.MQTT.Enabled = true
			s.Tracking.MQTT.Broker = "localhost"
		}, "tracking.mqtt.broker"},
		{"unknown datastore", func(s *Settings) { s.Tracking.Datastore.Type = "postgres" }, "tracking.datastore.type"},
		{"mysql bad port", func(s *Settings) {
			s.Tracking.Datastore.Type = DatastoreMySQL
			s.Tracking.Datastore.MySQL.Port = 0
		}, "mysql.port"},
		{"sentry without dsn", func(s *Settings) { s.Sentry.Enabled = true }, "sentry.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := defaultSettings(t)
			tt.mutate(s)

			err := ValidateSettings(s)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)

			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateEnvHelpers(t *testing.T) {
	t.Parallel()

	require.NoError(t, validateEnvBool("true"))
	require.Error(t, validateEnvBool("yes please"))
	require.NoError(t, validateEnvNonNegativeInt("0"))
	require.Error(t, validateEnvNonNegativeInt("-1"))
	require.NoError(t, validateEnvBackbone(BackboneTFLite))
	require.Error(t, validateEnvBackbone("vit"))
	require.Error(t, validateEnvPath("/definitely/not/here.tflite"))
}
