package dataset

import (
	"context"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/logger"
	"github.com/tphakala/birdclef-go/internal/observability/metrics"
)

// newRand returns a deterministic generator for seed
func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15)) //nolint:gosec // reproducible shuffles
}

// FoldSplit assigns clips to numFold stratified folds and returns the clips
// outside fold as training data and the clips of fold as validation data.
// Every class is shuffled with seed and dealt round robin over the folds.
func FoldSplit(clips []Clip, fold, numFold int, seed int64) (train, valid []Clip, err error) {
	if numFold < 2 || fold < 0 || fold >= numFold {
		return nil, nil, errors.Newf("fold %d out of range for %d folds", fold, numFold).
			Component("dataset").
			Category(errors.CategoryValidation).
			Build()
	}

	byLabel := make(map[int][]Clip)
	var labels []int
	for _, c := range clips {
		if _, ok := byLabel[c.Label]; !ok {
			labels = append(labels, c.Label)
		}
		byLabel[c.Label] = append(byLabel[c.Label], c)
	}
	slices.Sort(labels)

	rng := newRand(seed)
	for _, label := range labels {
		group := byLabel[label]
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		for i, c := range group {
			if i%numFold == fold {
				valid = append(valid, c)
			} else {
				train = append(train, c)
			}
		}
	}
	return train, valid, nil
}

// SplitOptions configures MoveValidationSplit
type SplitOptions struct {
	Extension string  // only files ending in this extension are considered
	Fraction  float64 // share of files to move
	Seed      int64
	Recorder  metrics.Recorder
}

// SplitResult counts the outcome of a validation move
type SplitResult struct {
	Total  int
	Moved  int
	Failed int
}

// MoveValidationSplit shuffles the matching top-level files of src and moves
// floor(Fraction·n) of them into dst. Failed moves are logged and counted.
func MoveValidationSplit(ctx context.Context, src, dst string, opts SplitOptions) (SplitResult, error) {
	var result SplitResult
	if opts.Fraction < 0 || opts.Fraction > 1 {
		return result, errors.Newf("split fraction %.3f outside [0, 1]", opts.Fraction).
			Component("dataset").
			Category(errors.CategoryValidation).
			Build()
	}
	recorder := metrics.OrNoop(opts.Recorder)

	entries, err := os.ReadDir(src)
	if err != nil {
		return result, errors.New(err).
			Component("dataset").
			Category(errors.CategoryFileIO).
			FileContext(src, 0).
			Build()
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), opts.Extension) {
			files = append(files, e.Name())
		}
	}
	result.Total = len(files)

	rng := newRand(opts.Seed)
	rng.Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })
	files = files[:int(math.Floor(opts.Fraction*float64(len(files))))]

	if len(files) > 0 {
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return result, errors.New(err).
				Component("dataset").
				Category(errors.CategoryFileIO).
				FileContext(dst, 0).
				Build()
		}
	}

	log := GetLogger()
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		start := time.Now()
		if err := conf.MoveFile(filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
			log.Warn("failed to move file", logger.String("file", name), logger.Error(err))
			recorder.RecordError(metrics.OpFileMove, string(errors.CategoryFileIO))
			result.Failed++
			continue
		}
		recorder.RecordOperation(metrics.OpFileMove, metrics.StatusSuccess)
		recorder.RecordDuration(metrics.OpFileMove, time.Since(start).Seconds())
		result.Moved++
	}

	log.Info("validation split complete",
		logger.String("source", src),
		logger.String("destination", dst),
		logger.Int("total", result.Total),
		logger.Int("moved", result.Moved),
		logger.Int("failed", result.Failed))

	return result, nil
}
