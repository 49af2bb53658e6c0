// Package chunker cuts long labeled field recordings into fixed-duration
// training chunks.
package chunker

import (
	"math"

	"github.com/tphakala/birdclef-go/internal/dataset"
	"github.com/tphakala/birdclef-go/internal/logger"
)

// GetLogger returns the chunker package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("chunker")
}

// Options controls window generation. Durations are in seconds.
type Options struct {
	ChunkDuration float64
	ChunkCount    int     // windows per event shorter than ChunkDuration
	OnlySlide     bool    // slide over every event regardless of length
	SlideStep     float64 // 0 = ChunkDuration
}

// DefaultOptions matches the settings used to build the 132 Peru XC chunk set.
func DefaultOptions() Options {
	return Options{ChunkDuration: 5, ChunkCount: 5}
}

func toMs(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}

// Generate turns strong labels into chunk rows.
//
// Events at least ChunkDuration long, or every event when OnlySlide is set,
// are covered by sliding windows. Shorter events get up to ChunkCount windows
// that each contain the whole event, spread evenly over the feasible starts.
// Windows never start before 0 or run past a known clip length, and a file
// never gets two windows with the same start.
func Generate(labels []dataset.StrongLabel, opts Options) []dataset.ChunkRow {
	duration := toMs(opts.ChunkDuration)
	if duration <= 0 {
		return nil
	}
	step := toMs(opts.SlideStep)
	if step <= 0 {
		step = duration
	}
	count := max(opts.ChunkCount, 1)

	log := GetLogger()
	seen := make(map[string]map[int64]bool)
	index := make(map[string]int)
	var rows []dataset.ChunkRow

	for _, l := range labels {
		clipLen := toMs(l.ClipLength)
		if clipLen > 0 && clipLen < duration {
			log.Debug("recording shorter than chunk duration",
				logger.String("file", l.File),
				logger.Float64("clip_length", l.ClipLength))
			continue
		}

		start, end := toMs(l.Offset), toMs(l.End())
		var starts []int64
		if opts.OnlySlide || end-start >= duration {
			starts = slidingStarts(start, end, duration, step)
		} else {
			starts = containedStarts(start, end, duration, clipLen, count)
		}

		if seen[l.File] == nil {
			seen[l.File] = make(map[int64]bool)
		}
		for _, w := range starts {
			w = clampStart(w, duration, clipLen)
			if seen[l.File][w] {
				continue
			}
			seen[l.File][w] = true
			index[l.File]++

			rows = append(rows, dataset.ChunkRow{
				File:     l.File,
				Label:    l.Label,
				Offset:   float64(w) / 1000,
				Duration: float64(duration) / 1000,
				Index:    index[l.File],
			})
		}
	}
	return rows
}

// slidingStarts steps from start while the window stays inside the event,
// always yielding at least the window at start.
func slidingStarts(start, end, duration, step int64) []int64 {
	starts := []int64{start}
	for w := start + step; w+duration <= end; w += step {
		starts = append(starts, w)
	}
	return starts
}

// containedStarts spreads count windows over [end-duration, start], the
// starts for which the window covers the whole event.
func containedStarts(start, end, duration, clipLen int64, count int) []int64 {
	lo := max(end-duration, 0)
	hi := start
	if clipLen > 0 {
		hi = min(hi, clipLen-duration)
	}
	if lo >= hi {
		return []int64{min(lo, hi)}
	}
	if count == 1 {
		return []int64{lo + (hi-lo)/2}
	}

	starts := make([]int64, count)
	span := float64(hi - lo)
	for k := range count {
		starts[k] = lo + int64(math.Round(span*float64(k)/float64(count-1)))
	}
	return starts
}

func clampStart(w, duration, clipLen int64) int64 {
	if clipLen > 0 && w+duration > clipLen {
		w = clipLen - duration
	}
	return max(w, 0)
}
