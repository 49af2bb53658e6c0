// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func() []string{
		func() []string { return validateMainSettings(&settings.Main) },
		func() []string { return validateTrainSettings(&settings.Train) },
		func() []string { return validateChunkSettings(&settings.Chunk) },
		func() []string { return validateSpeciesSettings(&settings.Species) },
		func() []string { return validateSplitSettings(&settings.Split) },
		func() []string { return validateTrackingSettings(&settings.Tracking) },
	}
	for _, validate := range validators {
		ve.Errors = append(ve.Errors, validate()...)
	}

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn is required when sentry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMainSettings(s *MainSettings) []string {
	if s.Jobs < 0 {
		return []string{"main.jobs must be >= 0"}
	}
	return nil
}

// validateTrainSettings checks hyperparameters and feature extraction settings
func validateTrainSettings(s *TrainSettings) []string {
	var errs []string

	positive := []struct {
		key   string
		value int
	}{
		{"train.epochs", s.Epochs},
		{"train.trainbatchsize", s.TrainBatchSize},
		{"train.validbatchsize", s.ValidBatchSize},
		{"train.samplerate", s.SampleRate},
		{"train.hoplength", s.HopLength},
		{"train.nmels", s.NMels},
		{"train.nfft", s.NFFT},
		{"train.loggingfreq", s.LoggingFreq},
		{"train.validfreq", s.ValidFreq},
		{"train.tmax", s.TMax},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be > 0, got %d", p.key, p.value))
		}
	}

	if s.NFFT > 0 && s.NFFT&(s.NFFT-1) != 0 {
		errs = append(errs, fmt.Sprintf("train.nfft must be a power of two, got %d", s.NFFT))
	}
	if s.MaxTime <= 0 {
		errs = append(errs, fmt.Sprintf("train.maxtime must be > 0, got %g", s.MaxTime))
	}
	if s.NumClasses < 0 {
		errs = append(errs, "train.numclasses must be >= 0")
	}
	if s.ValidDir == "" {
		if s.NumFold < 2 {
			errs = append(errs, fmt.Sprintf("train.numfold must be >= 2 when train.validdir is empty, got %d", s.NumFold))
		} else if s.Fold < 0 || s.Fold >= s.NumFold {
			errs = append(errs, fmt.Sprintf("train.fold must be in [0, %d), got %d", s.NumFold, s.Fold))
		}
	}
	if s.LearningRate <= 0 {
		errs = append(errs, "train.learningrate must be > 0")
	}
	if s.MinLR < 0 || s.MinLR > s.LearningRate {
		errs = append(errs, "train.minlr must be in [0, train.learningrate]")
	}
	if s.Dropout < 0 || s.Dropout >= 1 {
		errs = append(errs, fmt.Sprintf("train.dropout must be in [0, 1), got %g", s.Dropout))
	}
	if s.PadN < 0 {
		errs = append(errs, "train.padn must be >= 0")
	}
	if s.Hidden < 0 {
		errs = append(errs, "train.hidden must be >= 0")
	}
	if s.CacheSize < 0 {
		errs = append(errs, "train.cachesize must be >= 0")
	}

	switch s.Backbone {
	case BackboneMel:
	case BackboneTFLite:
		if s.ModelPath == "" {
			errs = append(errs, "train.modelpath is required for the tflite backbone")
		}
	default:
		errs = append(errs, fmt.Sprintf("train.backbone must be %q or %q, got %q", BackboneMel, BackboneTFLite, s.Backbone))
	}

	return errs
}

func validateChunkSettings(s *ChunkSettings) []string {
	var errs []string
	if s.Duration <= 0 {
		errs = append(errs, fmt.Sprintf("chunk.duration must be > 0, got %g", s.Duration))
	}
	if s.Count < 1 {
		errs = append(errs, fmt.Sprintf("chunk.count must be >= 1, got %d", s.Count))
	}
	if s.SlideStep < 0 {
		errs = append(errs, "chunk.slidestep must be >= 0")
	}
	if s.DeleteLength < 0 {
		errs = append(errs, "chunk.deletelength must be >= 0")
	}
	if strings.TrimSpace(s.OutputDir) == "" {
		errs = append(errs, "chunk.outputdir must not be empty")
	}
	return errs
}

func validateSpeciesSettings(s *SpeciesSettings) []string {
	switch s.Mode {
	case SpeciesModeMetadata, SpeciesModeFilename:
		return nil
	}
	return []string{fmt.Sprintf("species.mode must be %q or %q, got %q", SpeciesModeMetadata, SpeciesModeFilename, s.Mode)}
}

func validateSplitSettings(s *SplitSettings) []string {
	if s.Fraction <= 0 || s.Fraction >= 1 {
		return []string{fmt.Sprintf("split.fraction must be in (0, 1), got %g", s.Fraction)}
	}
	return nil
}

func validateTrackingSettings(s *TrackingSettings) []string {
	var errs []string

	if s.MQTT.Enabled {
		u, err := url.Parse(s.MQTT.Broker)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("tracking.mqtt.broker must be a URL like tcp://host:1883, got %q", s.MQTT.Broker))
		}
		if s.MQTT.Topic == "" {
			errs = append(errs, "tracking.mqtt.topic must not be empty")
		}
	}

	if s.Datastore.Enabled {
		switch s.Datastore.Type {
		case DatastoreSQLite:
			if s.Datastore.SQLite.Path == "" {
				errs = append(errs, "tracking.datastore.sqlite.path must not be empty")
			}
		case DatastoreMySQL:
			if s.Datastore.MySQL.Host == "" || s.Datastore.MySQL.Database == "" {
				errs = append(errs, "tracking.datastore.mysql host and database are required")
			}
			if s.Datastore.MySQL.Port <= 0 || s.Datastore.MySQL.Port > 65535 {
				errs = append(errs, "tracking.datastore.mysql.port must be a valid port")
			}
		default:
			errs = append(errs, fmt.Sprintf("tracking.datastore.type must be %q or %q, got %q", DatastoreSQLite, DatastoreMySQL, s.Datastore.Type))
		}
	}

	return errs
}
