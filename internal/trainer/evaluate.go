package trainer

import (
	"context"
	"time"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/dataset"
	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/logger"
	"github.com/tphakala/birdclef-go/internal/model"
	"github.com/tphakala/birdclef-go/internal/observability"
	"github.com/tphakala/birdclef-go/internal/scoring"
)

// Evaluation is the score of a head on labeled samples
type Evaluation struct {
	Samples  int
	Loss     float64 // mean batch cross-entropy
	Accuracy float64 // percent of argmax hits
	CMAP     float64 // padded cmAP
}

// Evaluate runs head over samples in batches of batchSize and scores the logits.
func Evaluate(ctx context.Context, head *model.MLP, samples []dataset.Sample, numClasses, batchSize, padN int) (*Evaluation, error) {
	if len(samples) == 0 || batchSize <= 0 {
		return nil, errors.Newf("cannot evaluate %d samples in batches of %d", len(samples), batchSize).
			Component("trainer").
			Category(errors.CategoryValidation).
			Build()
	}

	logits := make([][]float64, 0, len(samples))
	labels := make([]int, 0, len(samples))
	var runningLoss float64
	var batches int

	for start := 0; start < len(samples); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch := samples[start:min(start+batchSize, len(samples))]
		x := make([][]float32, len(batch))
		y := make([]int, len(batch))
		for i, s := range batch {
			x[i] = s.Features
			y[i] = s.Label
		}

		out, err := head.Logits(x)
		if err != nil {
			return nil, err
		}
		loss, _, err := model.CrossEntropy(out, y)
		if err != nil {
			return nil, err
		}
		runningLoss += loss
		batches++
		logits = append(logits, out...)
		labels = append(labels, y...)
	}

	cmap, err := scoring.PaddedCMAP(logits, labels, numClasses, padN)
	if err != nil {
		return nil, err
	}
	return &Evaluation{
		Samples:  len(samples),
		Loss:     runningLoss / float64(batches),
		Accuracy: scoring.Accuracy(logits, labels),
		CMAP:     cmap,
	}, nil
}

// CheckpointEvaluation is an Evaluation of a saved checkpoint
type CheckpointEvaluation struct {
	Evaluation
	Checkpoint *model.Checkpoint
	Skipped    int // clips in species folders the checkpoint does not know
}

// EvaluateCheckpoint scores the checkpoint at path on the species folders
// under dir. Features are rebuilt with the checkpoint's backbone settings and
// only folders named after the checkpoint's classes are used. m may be nil.
func EvaluateCheckpoint(ctx context.Context, settings *conf.Settings, path, dir string, m *observability.Metrics) (*CheckpointEvaluation, error) {
	start := time.Now()
	s := &settings.Train

	ckpt, err := model.LoadCheckpoint(path)
	if err != nil {
		return nil, err
	}
	head, err := model.MLPFromState(ckpt.Head)
	if err != nil {
		return nil, err
	}

	all, err := dataset.Discover(dir)
	if err != nil {
		return nil, err
	}
	data, err := dataset.DiscoverWithClasses(dir, ckpt.Classes)
	if err != nil {
		return nil, err
	}

	backbone, err := model.NewBackbone(ckpt.Feature, model.RuntimeOptions{Threads: s.Threads, UseXNNPACK: s.UseXNNPACK})
	if err != nil {
		return nil, err
	}
	defer backbone.Close()

	loader := dataset.NewLoader(backbone, dataset.LoaderOptions{
		Jobs:      settings.Main.Jobs,
		CacheSize: s.CacheSize,
		Recorder:  m.GetDataPrep(),
	})
	samples, err := loader.Load(ctx, data.Clips)
	if err != nil {
		return nil, err
	}

	ev, err := Evaluate(ctx, head, samples, head.Out, s.ValidBatchSize, s.PadN)
	if err != nil {
		return nil, err
	}

	GetLogger().Info("checkpoint evaluated",
		logger.String("checkpoint", path),
		logger.Int("epoch", ckpt.Epoch),
		logger.Int("samples", ev.Samples),
		logger.Float64("loss", ev.Loss),
		logger.Float64("accuracy", ev.Accuracy),
		logger.Float64("cmap", ev.CMAP),
		logger.Duration("elapsed", time.Since(start)))

	return &CheckpointEvaluation{
		Evaluation: *ev,
		Checkpoint: ckpt,
		Skipped:    len(all.Clips) - len(data.Clips),
	}, nil
}
