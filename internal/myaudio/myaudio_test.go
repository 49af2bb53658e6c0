package myaudio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n, sampleRate int, freq float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestWriteWAVRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "XC1_1.wav")
	in := &Clip{Samples: sine(16000, 16000, 440), SampleRate: 16000}
	require.NoError(t, WriteWAV(path, in))

	info, err := ReadInfo(path)
	require.NoError(t, err)
	assert.Equal(t, 16000, info.SampleRate)
	assert.Equal(t, 16000, info.TotalSamples)
	assert.Equal(t, 1, info.NumChannels)
	assert.Equal(t, 16, info.BitDepth)

	ms, err := DurationMs(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, ms)

	out, err := Decode(path)
	require.NoError(t, err)
	require.Len(t, out.Samples, len(in.Samples))
	for i := range in.Samples {
		assert.InDelta(t, in.Samples[i], out.Samples[i], 1e-3)
	}
}

func TestDecodeUnsupportedExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "clip.ogg")
	require.NoError(t, os.WriteFile(path, []byte("OggS"), 0o644))

	_, err := Decode(path)
	require.Error(t, err)
	assert.False(t, IsSupported(path))
	assert.True(t, IsSupported("a.WAV"))
	assert.True(t, IsSupported("a.flac"))
}

func TestDecodeMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Decode(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
}

func TestDownmixAveragesChannels(t *testing.T) {
	t.Parallel()

	out := downmix([]int{16384, -16384, 32767, 32767}, 2, 32768)
	require.Len(t, out, 2)
	assert.InDelta(t, 0.0, out[0], 1e-6)
	assert.InDelta(t, 1.0, out[1], 1e-4)
}

func TestGetAudioDivisor(t *testing.T) {
	t.Parallel()

	d, err := getAudioDivisor(24)
	require.NoError(t, err)
	assert.InDelta(t, 8388608.0, d, 0)

	_, err = getAudioDivisor(12)
	require.Error(t, err)
}

func TestResampleAudio(t *testing.T) {
	t.Parallel()

	in := sine(32000, 32000, 100)
	out, err := ResampleAudio(in, 32000, 16000)
	require.NoError(t, err)
	assert.Len(t, out, 16000)

	// a low tone survives decimation sample for sample
	for i := 10; i < len(out)-10; i += 97 {
		assert.InDelta(t, in[2*i], out[i], 1e-3)
	}

	same, err := ResampleAudio(in, 32000, 32000)
	require.NoError(t, err)
	assert.Len(t, same, len(in))

	short, err := ResampleAudio([]float32{0, 1}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5, 1, 1}, short)

	_, err = ResampleAudio(in, 0, 16000)
	require.Error(t, err)
}

func TestSliceMs(t *testing.T) {
	t.Parallel()

	clip := &Clip{Samples: make([]float32, 32000*7), SampleRate: 32000}
	assert.Equal(t, 7000, clip.DurationMs())

	c := clip.SliceMs(1000, 6000)
	assert.Equal(t, 5000, c.DurationMs())

	tail := clip.SliceMs(3000, 8000)
	assert.Equal(t, 4000, tail.DurationMs())

	empty := clip.SliceMs(9000, 10000)
	assert.Empty(t, empty.Samples)

	neg := clip.SliceMs(-500, 500)
	assert.Equal(t, 500, neg.DurationMs())
}

func TestFitLength(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []float32{1, 2}, FitLength([]float32{1, 2, 3}, 2))
	assert.Equal(t, []float32{1, 0, 0}, FitLength([]float32{1}, 3))
}
