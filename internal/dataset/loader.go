package dataset

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/logger"
	"github.com/tphakala/birdclef-go/internal/myaudio"
	"github.com/tphakala/birdclef-go/internal/observability/metrics"
)

// Embedder turns a fixed-length waveform into a feature vector
type Embedder interface {
	// Key identifies the feature configuration, it is part of cache keys
	Key() string
	SampleRate() int
	NumSamples() int
	Embed(samples []float32) ([]float32, error)
}

// Sample is a feature vector with its class label
type Sample struct {
	Features []float32
	Label    int
	Path     string
}

// LoaderOptions configures a Loader
type LoaderOptions struct {
	Jobs      int // concurrent extractions, 0 = DefaultJobs()
	CacheSize int // cached vectors, 0 = unlimited, negative disables the cache
	Recorder  metrics.Recorder
}

// Loader extracts features for clips in parallel and caches them per path.
type Loader struct {
	embedder  Embedder
	cache     *cache.Cache
	cacheSize int
	jobs      int
	recorder  metrics.Recorder
}

// DefaultJobs returns the number of physical cores, falling back to logical CPUs.
func DefaultJobs() int {
	if n, err := cpu.Counts(false); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// NewLoader returns a Loader for embedder
func NewLoader(embedder Embedder, opts LoaderOptions) *Loader {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = DefaultJobs()
	}
	l := &Loader{
		embedder:  embedder,
		cacheSize: opts.CacheSize,
		jobs:      jobs,
		recorder:  metrics.OrNoop(opts.Recorder),
	}
	if opts.CacheSize >= 0 {
		l.cache = cache.New(cache.NoExpiration, 0)
	}
	return l
}

// Features returns the feature vector of the audio file at path
func (l *Loader) Features(path string) ([]float32, error) {
	key := l.embedder.Key() + "|" + path
	if l.cache != nil {
		if v, ok := l.cache.Get(key); ok {
			l.recorder.RecordOperation(metrics.OpFeatureCache, metrics.StatusHit)
			return v.([]float32), nil
		}
		l.recorder.RecordOperation(metrics.OpFeatureCache, metrics.StatusMiss)
	}

	start := time.Now()
	clip, err := myaudio.DecodeAt(path, l.embedder.SampleRate())
	if err != nil {
		l.recorder.RecordError(metrics.OpAudioDecode, string(errors.CategoryAudio))
		return nil, err
	}
	l.recorder.RecordDuration(metrics.OpAudioDecode, time.Since(start).Seconds())

	start = time.Now()
	features, err := l.embedder.Embed(myaudio.FitLength(clip.Samples, l.embedder.NumSamples()))
	if err != nil {
		l.recorder.RecordError(metrics.OpFeatureExtract, string(errors.CategoryProcessing))
		return nil, errors.New(err).
			Component("dataset").
			Category(errors.CategoryProcessing).
			Context("operation", "feature_extract").
			FileContext(path, 0).
			Build()
	}
	l.recorder.RecordOperation(metrics.OpFeatureExtract, metrics.StatusSuccess)
	l.recorder.RecordDuration(metrics.OpFeatureExtract, time.Since(start).Seconds())

	if l.cache != nil && (l.cacheSize == 0 || l.cache.ItemCount() < l.cacheSize) {
		l.cache.Set(key, features, cache.NoExpiration)
	}
	return features, nil
}

// Load extracts features for every clip with up to Jobs workers. Clips that
// fail to decode or embed are logged and left out. Only cancellation, or a
// set where every clip failed, is returned as an error.
func (l *Loader) Load(ctx context.Context, clips []Clip) ([]Sample, error) {
	results := make([]*Sample, len(clips))
	log := GetLogger()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.jobs)

	start := time.Now()
	for i, c := range clips {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			features, err := l.Features(c.Path)
			if err != nil {
				log.Warn("skipping clip", logger.String("path", c.Path), logger.Error(err))
				return nil
			}
			results[i] = &Sample{Features: features, Label: c.Label, Path: c.Path}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	samples := make([]Sample, 0, len(clips))
	for _, s := range results {
		if s != nil {
			samples = append(samples, *s)
		}
	}

	log.Info("features loaded",
		logger.Int("clips", len(clips)),
		logger.Int("loaded", len(samples)),
		logger.Int("jobs", l.jobs),
		logger.Duration("elapsed", time.Since(start)))

	if len(samples) == 0 && len(clips) > 0 {
		return nil, errors.New(fmt.Errorf("no features could be extracted from %d clips", len(clips))).
			Component("dataset").
			Category(errors.CategoryDataset).
			Build()
	}
	return samples, nil
}

// CachedCount returns the number of cached feature vectors
func (l *Loader) CachedCount() int {
	if l.cache == nil {
		return 0
	}
	return l.cache.ItemCount()
}
