// Package myaudio decodes field recordings into mono float32 clips,
// resamples and slices them, and writes PCM WAV chunks.
package myaudio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/logger"
)

// GetLogger returns the audio package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("audio")
}

// AudioInfo describes an audio file without decoding its samples
type AudioInfo struct {
	SampleRate   int
	TotalSamples int // samples per channel
	NumChannels  int
	BitDepth     int
}

// Duration returns the playing time described by info
func (i AudioInfo) Duration() time.Duration {
	if i.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(i.TotalSamples) / float64(i.SampleRate) * float64(time.Second))
}

// Clip is mono audio with samples in [-1, 1]
type Clip struct {
	Samples    []float32
	SampleRate int
}

// DurationMs returns the clip length in whole milliseconds, rounded to nearest.
func (c *Clip) DurationMs() int {
	return samplesToMs(len(c.Samples), c.SampleRate)
}

// Duration returns the clip length
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

func samplesToMs(n, sampleRate int) int {
	if sampleRate <= 0 {
		return 0
	}
	return int(math.Round(float64(n) * 1000 / float64(sampleRate)))
}

// IsSupported reports whether path has an extension Decode understands
func IsSupported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".flac":
		return true
	}
	return false
}

// ReadInfo returns format information for a WAV or FLAC file
func ReadInfo(path string) (AudioInfo, error) {
	file, err := os.Open(path) //nolint:gosec // dataset path
	if err != nil {
		return AudioInfo{}, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "open_audio").
			FileContext(path, 0).
			Build()
	}
	defer file.Close()

	var info AudioInfo
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		info, err = readWAVInfo(file)
	case ".flac":
		info, err = readFLACInfo(file)
	default:
		err = fmt.Errorf("unsupported audio format: %s", filepath.Ext(path))
	}
	if err != nil {
		return AudioInfo{}, errors.New(err).
			Category(errors.CategoryAudio).
			Context("operation", "read_audio_info").
			FileContext(path, 0).
			Build()
	}
	return info, nil
}

// Decode reads a WAV or FLAC file and downmixes it to a mono clip at its native rate
func Decode(path string) (*Clip, error) {
	file, err := os.Open(path) //nolint:gosec // dataset path
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "open_audio").
			FileContext(path, 0).
			Build()
	}
	defer file.Close()

	start := time.Now()
	var clip *Clip
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		clip, err = decodeWAV(file)
	case ".flac":
		clip, err = decodeFLAC(file)
	default:
		err = fmt.Errorf("unsupported audio format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryAudio).
			Timing("decode_audio", time.Since(start)).
			FileContext(path, 0).
			Build()
	}

	GetLogger().Trace("decoded audio",
		logger.String("path", path),
		logger.Int("sample_rate", clip.SampleRate),
		logger.Int("duration_ms", clip.DurationMs()))

	return clip, nil
}

// DecodeAt decodes path and resamples it to sampleRate
func DecodeAt(path string, sampleRate int) (*Clip, error) {
	clip, err := Decode(path)
	if err != nil {
		return nil, err
	}
	if clip.SampleRate == sampleRate {
		return clip, nil
	}
	samples, err := ResampleAudio(clip.Samples, clip.SampleRate, sampleRate)
	if err != nil {
		return nil, err
	}
	return &Clip{Samples: samples, SampleRate: sampleRate}, nil
}

// getAudioDivisor returns the scale that maps integer PCM of bitDepth onto [-1, 1]
func getAudioDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 8:
		return 128.0, nil
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported audio bit depth: %d", bitDepth)
	}
}

// downmix averages interleaved integer frames into mono float samples
func downmix(data []int, channels int, divisor float32) []float32 {
	if channels <= 1 {
		out := make([]float32, len(data))
		for i, s := range data {
			out[i] = float32(s) / divisor
		}
		return out
	}

	frames := len(data) / channels
	out := make([]float32, frames)
	scale := divisor * float32(channels)
	for f := range frames {
		var sum int
		for c := range channels {
			sum += data[f*channels+c]
		}
		out[f] = float32(sum) / scale
	}
	return out
}
