// Package model holds the classifier: frozen feature backbones, the MLP
// head, its loss and optimizer, the learning rate schedule and checkpoints.
package model

import (
	"fmt"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/logger"
)

// GetLogger returns the model package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("model")
}

// Backbone turns a fixed-length waveform into a feature vector. It is frozen,
// only the head is trained.
type Backbone interface {
	Name() string
	// Key identifies the backbone configuration, it is part of feature cache keys
	Key() string
	SampleRate() int
	NumSamples() int
	Dim() int
	Embed(samples []float32) ([]float32, error)
	Close() error
}

// FeatureConfig describes a backbone. It is stored in checkpoints so the
// same features can be rebuilt for evaluation.
type FeatureConfig struct {
	Backbone   string
	SampleRate int
	MaxTime    float64 // seconds of audio fed to the mel backbone
	NFFT       int
	HopLength  int
	NMels      int
	ModelPath  string
}

// RuntimeOptions are backbone settings that do not change its features
type RuntimeOptions struct {
	Threads    int
	UseXNNPACK bool
}

// FeatureConfigFromSettings builds the feature configuration of the train settings
func FeatureConfigFromSettings(s *conf.TrainSettings) FeatureConfig {
	return FeatureConfig{
		Backbone:   s.Backbone,
		SampleRate: s.SampleRate,
		MaxTime:    s.MaxTime,
		NFFT:       s.NFFT,
		HopLength:  s.HopLength,
		NMels:      s.NMels,
		ModelPath:  s.ModelPath,
	}
}

// NewBackbone constructs the backbone cfg names
func NewBackbone(cfg FeatureConfig, opts RuntimeOptions) (Backbone, error) {
	switch cfg.Backbone {
	case conf.BackboneMel, "":
		return NewMelBackbone(cfg)
	case conf.BackboneTFLite:
		return NewTFLiteBackbone(cfg.ModelPath, opts)
	default:
		return nil, errors.New(fmt.Errorf("unknown backbone %q", cfg.Backbone)).
			Component("model").
			Category(errors.CategoryConfiguration).
			Build()
	}
}
