package trainer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/dataset"
	"github.com/tphakala/birdclef-go/internal/datastore"
	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/logger"
	"github.com/tphakala/birdclef-go/internal/model"
	"github.com/tphakala/birdclef-go/internal/observability"
	"github.com/tphakala/birdclef-go/internal/tracking"
)

// lockName is held in the checkpoint directory while a run writes to it
const lockName = ".train.lock"

// Data is the clip split of a run
type Data struct {
	Classes    []string
	NumClasses int
	Train      []dataset.Clip
	Valid      []dataset.Clip
}

// PrepareData discovers the training species folders and selects validation
// clips, either from ValidDir or from a stratified fold of the training clips.
func PrepareData(s *conf.TrainSettings) (*Data, error) {
	ds, err := dataset.Discover(s.TrainDir)
	if err != nil {
		return nil, err
	}

	numClasses := s.NumClasses
	if numClasses == 0 {
		numClasses = len(ds.Classes)
	}
	if numClasses < len(ds.Classes) {
		return nil, errors.New(fmt.Errorf("train.numclasses is %d but %d species folders were found", numClasses, len(ds.Classes))).
			Component("trainer").
			Category(errors.CategoryConfiguration).
			Context("train_dir", s.TrainDir).
			Build()
	}

	data := &Data{Classes: ds.Classes, NumClasses: numClasses}
	if s.ValidDir != "" {
		valid, err := dataset.DiscoverWithClasses(s.ValidDir, ds.Classes)
		if err != nil {
			return nil, err
		}
		data.Train, data.Valid = ds.Clips, valid.Clips
	} else {
		data.Train, data.Valid, err = dataset.FoldSplit(ds.Clips, s.Fold, s.NumFold, s.Seed)
		if err != nil {
			return nil, err
		}
	}

	GetLogger().Info("dataset prepared",
		logger.Int("classes", len(data.Classes)),
		logger.Int("num_classes", data.NumClasses),
		logger.Int("train_clips", len(data.Train)),
		logger.Int("valid_clips", len(data.Valid)))
	return data, nil
}

// lockCheckpointDir creates dir and takes an exclusive lock on it
func lockCheckpointDir(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("trainer").
			Category(errors.CategoryFileIO).
			Context("checkpoint_dir", dir).
			Build()
	}
	lock := flock.New(filepath.Join(dir, lockName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire checkpoint lock: %w", err)
	}
	if !ok {
		return nil, errors.New(fmt.Errorf("checkpoint directory %s is used by another training run", dir)).
			Component("trainer").
			Category(errors.CategoryState).
			Build()
	}
	return lock, nil
}

// Run trains a head end to end: data discovery, feature extraction, the
// training loop and tracking. m may be nil.
func Run(ctx context.Context, settings *conf.Settings, m *observability.Metrics) (*Summary, error) {
	s := &settings.Train
	start := time.Now()

	lock, err := lockCheckpointDir(s.CheckpointDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			GetLogger().Warn("failed to release checkpoint lock", logger.Error(err))
		}
	}()

	data, err := PrepareData(s)
	if err != nil {
		return nil, err
	}

	feature := model.FeatureConfigFromSettings(s)
	backbone, err := model.NewBackbone(feature, model.RuntimeOptions{Threads: s.Threads, UseXNNPACK: s.UseXNNPACK})
	if err != nil {
		return nil, err
	}
	defer backbone.Close()

	loader := dataset.NewLoader(backbone, dataset.LoaderOptions{
		Jobs:      settings.Main.Jobs,
		CacheSize: s.CacheSize,
		Recorder:  m.GetDataPrep(),
	})

	train, err := loader.Load(ctx, data.Train)
	if err != nil {
		return nil, err
	}
	valid, err := loader.Load(ctx, data.Valid)
	if err != nil {
		return nil, err
	}

	run, err := tracking.NewRun(RunName(s), settings)
	if err != nil {
		return nil, err
	}
	tracker := tracking.New(ctx, settings, run, m)

	t, err := New(s, feature, data.Classes, data.NumClasses, backbone.Dim(), tracker, m.GetTraining())
	if err != nil {
		tracker.Finish(ctx, datastore.RunStatusFailed)
		return nil, err
	}

	summary, err := t.Fit(ctx, train, valid)
	if err != nil {
		// report the failure even when ctx is already cancelled
		tracker.Finish(context.WithoutCancel(ctx), datastore.RunStatusFailed)
		return nil, err
	}
	tracker.Finish(ctx, datastore.RunStatusFinished)

	GetLogger().Info("training finished",
		logger.String("run", summary.RunName),
		logger.Int("steps", summary.Steps),
		logger.Float64("best_cmap", summary.BestScore),
		logger.String("best_checkpoint", summary.BestCheckpoint),
		logger.Duration("elapsed", time.Since(start)))
	return summary, nil
}
