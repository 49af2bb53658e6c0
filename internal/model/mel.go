package model

import (
	"fmt"
	"math"

	"github.com/dgryski/go-onlinestats"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/spectrogram"
)

const (
	// gemP is the generalized mean exponent
	gemP = 3.0
	// dbFloor is the level GeM pooling measures from, it matches the
	// -100 dB floor of the spectrogram
	dbFloor = -100.0
	gemEps  = 1e-6
)

// MelBackbone pools a log-mel spectrogram per band into GeM, mean and
// standard deviation, giving 3·NMels features.
type MelBackbone struct {
	cfg  FeatureConfig
	spec *spectrogram.MelSpectrogram
}

// NewMelBackbone returns a mel backbone for cfg
func NewMelBackbone(cfg FeatureConfig) (*MelBackbone, error) {
	if cfg.MaxTime <= 0 {
		return nil, errors.New(fmt.Errorf("max time must be positive, got %.2f", cfg.MaxTime)).
			Component("model").
			Category(errors.CategoryConfiguration).
			Build()
	}
	spec, err := spectrogram.New(spectrogram.Config{
		SampleRate: cfg.SampleRate,
		NFFT:       cfg.NFFT,
		HopLength:  cfg.HopLength,
		NMels:      cfg.NMels,
	})
	if err != nil {
		return nil, errors.New(err).
			Component("model").
			Category(errors.CategoryModelInit).
			Context("backbone", conf.BackboneMel).
			Build()
	}
	cfg.Backbone = conf.BackboneMel
	return &MelBackbone{cfg: cfg, spec: spec}, nil
}

func (b *MelBackbone) Name() string { return conf.BackboneMel }

func (b *MelBackbone) Key() string {
	return fmt.Sprintf("mel:%d:%d:%d:%d:%g", b.cfg.SampleRate, b.cfg.NFFT, b.cfg.HopLength, b.cfg.NMels, b.cfg.MaxTime)
}

func (b *MelBackbone) SampleRate() int { return b.cfg.SampleRate }

func (b *MelBackbone) NumSamples() int {
	return int(math.Round(b.cfg.MaxTime * float64(b.cfg.SampleRate)))
}

func (b *MelBackbone) Dim() int { return 3 * b.cfg.NMels }

// Embed returns [GeM per band, mean per band, std per band]
func (b *MelBackbone) Embed(samples []float32) ([]float32, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty waveform")
	}

	bands := b.spec.Compute(samples)
	n := len(bands)
	out := make([]float32, 3*n)
	for i, band := range bands {
		out[i] = float32(gem(band))
		out[n+i] = float32(onlinestats.Mean(band))
		if len(band) > 1 {
			out[2*n+i] = float32(onlinestats.SampleStddev(band))
		}
	}
	return out, nil
}

// gem is the generalized mean (mean(v^p))^(1/p) of the band level above dbFloor
func gem(band []float64) float64 {
	var sum float64
	for _, v := range band {
		sum += math.Pow(max(v-dbFloor, gemEps), gemP)
	}
	return math.Pow(sum/float64(len(band)), 1/gemP)
}

func (b *MelBackbone) Close() error { return nil }
