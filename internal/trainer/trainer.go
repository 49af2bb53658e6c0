// Package trainer fits the classifier head on cached backbone features,
// validating with padded cmAP and checkpointing on improvement.
package trainer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/dataset"
	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/logger"
	"github.com/tphakala/birdclef-go/internal/model"
	"github.com/tphakala/birdclef-go/internal/observability/metrics"
	"github.com/tphakala/birdclef-go/internal/tracking"
)

// Tracked metric keys
const (
	KeyTrainLoss     = "train/loss"
	KeyTrainAccuracy = "train/accuracy"
	KeyValidLoss     = "valid/loss"
	KeyValidCMAP     = "valid/cmap"
	KeyStep          = "custom_step"
)

// GetLogger returns the trainer package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("trainer")
}

// Summary describes a finished training run
type Summary struct {
	RunName        string
	Epochs         int
	Steps          int
	BestScore      float64
	BestCheckpoint string
}

// RunName returns <BACKBONE>-<epochs>-<tbs>-<vbs>-<sr>-<hop>-<max_time>-<n_mels>-<n_fft>-<seed>
func RunName(s *conf.TrainSettings) string {
	backbone := s.Backbone
	if backbone == "" {
		backbone = conf.BackboneMel
	}
	return fmt.Sprintf("%s-%d-%d-%d-%d-%d-%g-%d-%d-%d",
		strings.ToUpper(backbone), s.Epochs, s.TrainBatchSize, s.ValidBatchSize,
		s.SampleRate, s.HopLength, s.MaxTime, s.NMels, s.NFFT, s.Seed)
}

// Trainer owns the head, optimizer and schedule of one run
type Trainer struct {
	settings   *conf.TrainSettings
	feature    model.FeatureConfig
	classes    []string
	numClasses int

	head  *model.MLP
	opt   *model.Adam
	sched *model.CosineAnnealing
	rng   *rand.Rand

	tracker *tracking.Tracker
	metrics *metrics.TrainingMetrics
	log     logger.Logger

	step           int
	bestScore      float64
	bestCheckpoint string
}

// New returns a trainer for features of width dim. m may be nil.
func New(settings *conf.TrainSettings, feature model.FeatureConfig, classes []string, numClasses, dim int,
	tracker *tracking.Tracker, m *metrics.TrainingMetrics) (*Trainer, error) {
	if numClasses < len(classes) {
		return nil, errors.New(fmt.Errorf("num classes %d is smaller than the %d discovered species", numClasses, len(classes))).
			Component("trainer").
			Category(errors.CategoryConfiguration).
			Build()
	}

	rng := rand.New(rand.NewPCG(uint64(settings.Seed), 0x9e3779b97f4a7c15)) //nolint:gosec // reproducible training
	head, err := model.NewMLP(dim, settings.Hidden, numClasses, rng)
	if err != nil {
		return nil, errors.New(err).
			Component("trainer").
			Category(errors.CategoryModelInit).
			Build()
	}

	opt := model.NewAdam(settings.LearningRate)
	return &Trainer{
		settings:   settings,
		feature:    feature,
		classes:    classes,
		numClasses: numClasses,
		head:       head,
		opt:        opt,
		sched:      model.NewCosineAnnealing(opt, settings.TMax, settings.MinLR),
		rng:        rng,
		tracker:    tracker,
		metrics:    m,
		log:        GetLogger().With(logger.String("run", tracker.Run().Name)),
	}, nil
}

// Head returns the classifier head
func (t *Trainer) Head() *model.MLP { return t.head }

// Fit trains for the configured epochs. Validation runs every ValidFreq
// steps and after every epoch, a checkpoint is written whenever the padded
// cmAP strictly improves on the best so far.
func (t *Trainer) Fit(ctx context.Context, train, valid []dataset.Sample) (*Summary, error) {
	if len(train) == 0 || len(valid) == 0 {
		return nil, errors.New(fmt.Errorf("need training and validation samples, got %d and %d", len(train), len(valid))).
			Component("trainer").
			Category(errors.CategoryDataset).
			Build()
	}

	features := make([][]float32, len(train))
	for i, s := range train {
		features[i] = s.Features
	}
	t.head.FitStandardizer(features)

	t.log.Info("training started",
		logger.Int("train_samples", len(train)),
		logger.Int("valid_samples", len(valid)),
		logger.Int("classes", len(t.classes)),
		logger.Int("features", t.head.In),
		logger.Int("epochs", t.settings.Epochs))

	for epoch := range t.settings.Epochs {
		if t.metrics != nil {
			t.metrics.Epoch.Set(float64(epoch))
		}
		trainLoss, err := t.trainEpoch(ctx, train, valid, epoch)
		if err != nil {
			return nil, err
		}

		validLoss, cmap, err := t.validate(ctx, valid)
		if err != nil {
			return nil, err
		}
		t.log.Info("epoch finished",
			logger.Int("epoch", epoch),
			logger.Float64("train_loss", trainLoss),
			logger.Float64("valid_loss", validLoss),
			logger.Float64("valid_cmap", cmap))
		if err := t.maybeCheckpoint(ctx, epoch, cmap); err != nil {
			return nil, err
		}
	}

	return &Summary{
		RunName:        t.tracker.Run().Name,
		Epochs:         t.settings.Epochs,
		Steps:          t.step,
		BestScore:      t.bestScore,
		BestCheckpoint: t.bestCheckpoint,
	}, nil
}

// trainEpoch runs one pass over train and returns its mean batch loss
func (t *Trainer) trainEpoch(ctx context.Context, train, valid []dataset.Sample, epoch int) (float64, error) {
	order := t.rng.Perm(len(train))
	batchSize := t.settings.TrainBatchSize
	numBatches := (len(order) + batchSize - 1) / batchSize

	var runningLoss, logLoss float64
	var logN, correct, total int

	for i := range numBatches {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		start := time.Now()

		idx := order[i*batchSize : min((i+1)*batchSize, len(order))]
		x := make([][]float32, len(idx))
		y := make([]int, len(idx))
		for j, k := range idx {
			x[j] = train[k].Features
			y[j] = train[k].Label
		}

		loss, logits, grads, err := t.head.TrainStep(x, y, t.settings.Dropout, t.rng)
		if err != nil {
			return 0, t.trainingError(err, epoch)
		}
		if err := t.opt.Step(t.head.Params(), grads); err != nil {
			return 0, t.trainingError(err, epoch)
		}
		t.sched.Step()

		runningLoss += loss
		logLoss += loss
		logN++
		total += len(y)
		for j, row := range logits {
			if floats.MaxIdx(row) == y[j] {
				correct++
			}
		}

		if t.metrics != nil {
			t.metrics.BatchLatency.Observe(time.Since(start).Seconds())
			t.metrics.LearningRate.Set(t.sched.LR())
		}

		if i%t.settings.LoggingFreq == 0 || i == numBatches-1 {
			t.tracker.Log(ctx, t.step, map[string]float64{
				KeyTrainLoss:     logLoss / float64(logN),
				KeyTrainAccuracy: float64(correct) / float64(total) * 100,
				KeyStep:          float64(t.step),
			})
			logLoss, logN, correct, total = 0, 0, 0, 0
		}

		if t.step%t.settings.ValidFreq == 0 {
			_, cmap, err := t.validate(ctx, valid)
			if err != nil {
				return 0, err
			}
			if err := t.maybeCheckpoint(ctx, epoch, cmap); err != nil {
				return 0, err
			}
		}

		t.step++
	}

	return runningLoss / float64(numBatches), nil
}

// validate returns the mean batch loss and the padded cmAP over valid
func (t *Trainer) validate(ctx context.Context, valid []dataset.Sample) (float64, float64, error) {
	ev, err := Evaluate(ctx, t.head, valid, t.numClasses, t.settings.ValidBatchSize, t.settings.PadN)
	if err != nil {
		if ctx.Err() != nil {
			return 0, 0, err
		}
		return 0, 0, t.trainingError(err, -1)
	}

	t.tracker.Log(ctx, t.step, map[string]float64{
		KeyValidLoss: ev.Loss,
		KeyValidCMAP: ev.CMAP,
		KeyStep:      float64(t.step),
	})
	return ev.Loss, ev.CMAP, nil
}

// maybeCheckpoint saves model_<epoch>.ckpt when score beats the best so far
func (t *Trainer) maybeCheckpoint(ctx context.Context, epoch int, score float64) error {
	if score <= t.bestScore {
		return nil
	}

	path := filepath.Join(t.settings.CheckpointDir, model.CheckpointName(epoch))
	ckpt := &model.Checkpoint{
		Epoch:     epoch,
		Step:      t.step,
		Score:     score,
		Classes:   t.classes,
		Feature:   t.feature,
		Head:      t.head.State(),
		CreatedAt: time.Now(),
	}
	if err := model.SaveCheckpoint(path, ckpt); err != nil {
		return err
	}

	t.log.Info("validation cmAP improved",
		logger.Float64("previous", t.bestScore),
		logger.Float64("current", score),
		logger.String("checkpoint", path))

	t.bestScore = score
	t.bestCheckpoint = path
	if t.metrics != nil {
		t.metrics.ObserveCheckpoint(score)
	}
	t.tracker.Checkpoint(ctx, tracking.Checkpoint{Epoch: epoch, Step: t.step, Score: score, Path: path})
	return nil
}

func (t *Trainer) trainingError(err error, epoch int) error {
	return errors.New(err).
		Component("trainer").
		Category(errors.CategoryTraining).
		Priority(errors.PriorityHigh).
		Context("epoch", epoch).
		Context("step", t.step).
		Build()
}
