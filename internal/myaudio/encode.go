package myaudio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/errors"
)

// WriteWAV saves clip as 16-bit mono PCM WAV, creating parent directories.
// The file is removed again if encoding fails.
func WriteWAV(filePath string, clip *Clip) (err error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return errors.New(fmt.Errorf("failed to create directories: %w", err)).
			Category(errors.CategoryFileIO).
			Context("operation", "create_chunk_dir").
			Build()
	}

	outFile, err := os.Create(filePath) //nolint:gosec // output path built from dataset layout
	if err != nil {
		return errors.FileError(fmt.Errorf("failed to create file: %w", err), filePath, 0)
	}
	defer func() {
		if cerr := outFile.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(filePath)
		}
	}()

	enc := wav.NewEncoder(outFile, clip.SampleRate, conf.BitDepth, conf.NumChannels, 1)

	buf := &audio.IntBuffer{
		Data:           floatToPCM16(clip.Samples),
		Format:         &audio.Format{SampleRate: clip.SampleRate, NumChannels: conf.NumChannels},
		SourceBitDepth: conf.BitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return errors.New(fmt.Errorf("failed to write to encoder: %w", err)).
			Category(errors.CategoryAudio).
			Context("operation", "encode_wav").
			Build()
	}

	if err := enc.Close(); err != nil {
		return errors.New(fmt.Errorf("failed to close encoder: %w", err)).
			Category(errors.CategoryAudio).
			Context("operation", "encode_wav").
			Build()
	}

	return nil
}

func floatToPCM16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32767)
		out[i] = int(max(-32768, min(32767, v)))
	}
	return out
}

// DurationMs returns the length of an audio file in milliseconds without decoding it.
func DurationMs(path string) (int, error) {
	info, err := ReadInfo(path)
	if err != nil {
		return 0, err
	}
	return samplesToMs(info.TotalSamples, info.SampleRate), nil
}
