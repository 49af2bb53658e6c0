package chunker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/birdclef-go/internal/dataset"
	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/logger"
	"github.com/tphakala/birdclef-go/internal/myaudio"
	"github.com/tphakala/birdclef-go/internal/observability/metrics"
)

// ExportOptions controls chunk export
type ExportOptions struct {
	OutputDir     string  // relative to the dataset root
	ChunkDuration float64 // seconds, every written chunk has exactly this length
	Jobs          int     // source files processed concurrently, 0 = 1
	Recorder      metrics.Recorder
}

// ExportStats counts the outcome of an export
type ExportStats struct {
	Written  int
	Rejected int // slices shorter than the chunk duration
	Failed   int // rows whose source could not be decoded or chunk could not be written
}

// ChunkPath returns <root>/<output>/<label>/<stem>_<index>.wav for row
func ChunkPath(root, output string, row dataset.ChunkRow) string {
	stem := strings.TrimSuffix(row.File, filepath.Ext(row.File))
	return filepath.Join(root, output, row.Label, fmt.Sprintf("%s_%d.wav", stem, row.Index))
}

// fileGroup is a run of consecutive rows cut from the same source file
type fileGroup struct {
	source string
	rows   []dataset.ChunkRow
}

func groupRows(root string, rows []dataset.ChunkRow) []fileGroup {
	var groups []fileGroup
	for _, r := range rows {
		source := filepath.Join(root, r.Label, r.File)
		if n := len(groups); n > 0 && groups[n-1].source == source {
			groups[n-1].rows = append(groups[n-1].rows, r)
			continue
		}
		groups = append(groups, fileGroup{source: source, rows: []dataset.ChunkRow{r}})
	}
	return groups
}

// Export cuts every row out of <root>/<label>/<file> and writes it as a WAV
// chunk. Each source is decoded once per run of consecutive rows. Partial
// chunks, unreadable sources and write failures are logged, counted and
// skipped. Only cancellation returns an error.
func Export(ctx context.Context, root string, rows []dataset.ChunkRow, opts ExportOptions) (ExportStats, error) {
	durationMs := int(toMs(opts.ChunkDuration))
	if durationMs <= 0 {
		return ExportStats{}, errors.Newf("chunk duration must be positive, got %.3f", opts.ChunkDuration).
			Component("chunker").
			Category(errors.CategoryValidation).
			Build()
	}
	recorder := metrics.OrNoop(opts.Recorder)

	if err := os.MkdirAll(filepath.Join(root, opts.OutputDir), 0o755); err != nil {
		return ExportStats{}, errors.New(err).
			Component("chunker").
			Category(errors.CategoryFileIO).
			Context("operation", "create_output_dir").
			Build()
	}

	var written, rejected, failed atomic.Int64
	log := GetLogger()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Jobs, 1))

	for _, group := range groupRows(root, rows) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			start := time.Now()
			clip, err := myaudio.Decode(group.source)
			if err != nil {
				log.Error("failed to read source recording",
					logger.String("path", group.source),
					logger.Error(err))
				recorder.RecordError(metrics.OpAudioDecode, string(errors.CategoryAudio))
				failed.Add(int64(len(group.rows)))
				return nil
			}
			recorder.RecordDuration(metrics.OpAudioDecode, time.Since(start).Seconds())

			for _, row := range group.rows {
				if err := gctx.Err(); err != nil {
					return err
				}

				offsetMs := int(toMs(row.Offset))
				chunk := clip.SliceMs(offsetMs, offsetMs+durationMs)
				if got := chunk.DurationMs(); got != durationMs {
					log.Warn("chunk could not be generated at full length",
						logger.String("file", row.File),
						logger.Int("chunk_index", row.Index),
						logger.Float64("expected_seconds", opts.ChunkDuration),
						logger.Float64("actual_seconds", float64(got)/1000))
					recorder.RecordOperation(metrics.OpChunkReject, metrics.StatusSkipped)
					rejected.Add(1)
					continue
				}

				path := ChunkPath(root, opts.OutputDir, row)
				if err := myaudio.WriteWAV(path, chunk); err != nil {
					log.Error("failed to write chunk", logger.String("path", path), logger.Error(err))
					recorder.RecordOperation(metrics.OpChunkExport, metrics.StatusError)
					failed.Add(1)
					continue
				}
				recorder.RecordOperation(metrics.OpChunkExport, metrics.StatusSuccess)
				written.Add(1)
			}
			return nil
		})
	}

	err := g.Wait()
	stats := ExportStats{
		Written:  int(written.Load()),
		Rejected: int(rejected.Load()),
		Failed:   int(failed.Load()),
	}

	log.Info("chunk export finished",
		logger.Int("rows", len(rows)),
		logger.Int("written", stats.Written),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed))

	return stats, err
}

// DeleteChunksWithLength removes every chunk in the species folders of
// chunkDir whose duration in milliseconds equals length. It returns the
// number of deleted files.
func DeleteChunksWithLength(chunkDir string, length time.Duration, recorder metrics.Recorder) (int, error) {
	recorder = metrics.OrNoop(recorder)
	target := int(length.Milliseconds())

	subfolders, err := os.ReadDir(chunkDir)
	if err != nil {
		return 0, errors.New(err).
			Component("chunker").
			Category(errors.CategoryFileIO).
			FileContext(chunkDir, 0).
			Build()
	}

	log := GetLogger()
	var deleted int
	for _, sub := range subfolders {
		if !sub.IsDir() {
			continue
		}
		dir := filepath.Join(chunkDir, sub.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Warn("cannot list species folder", logger.String("path", dir), logger.Error(err))
			continue
		}

		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			path := filepath.Join(dir, e.Name())
			ms, err := myaudio.DurationMs(path)
			if err != nil {
				log.Warn("cannot read chunk duration", logger.String("path", path), logger.Error(err))
				continue
			}
			if ms != target {
				continue
			}
			if err := os.Remove(path); err != nil {
				log.Warn("failed to delete chunk", logger.String("path", path), logger.Error(err))
				recorder.RecordOperation(metrics.OpChunkDelete, metrics.StatusError)
				continue
			}
			recorder.RecordOperation(metrics.OpChunkDelete, metrics.StatusSuccess)
			deleted++
		}
	}

	log.Info("deleted chunks with length",
		logger.Duration("length", length),
		logger.Int("deleted", deleted))
	return deleted, nil
}
