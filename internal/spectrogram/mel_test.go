package spectrogram

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{SampleRate: 16000, NFFT: 512, HopLength: 256, NMels: 40}
}

func tone(n, sampleRate int, freq float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate)))
	}
	return out
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"nfft not power of two", func(c *Config) { c.NFFT = 500 }},
		{"zero hop", func(c *Config) { c.HopLength = 0 }},
		{"zero mels", func(c *Config) { c.NMels = 0 }},
		{"inverted range", func(c *Config) { c.FMin = 4000; c.FMax = 2000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
		})
	}
}

func TestComputeShape(t *testing.T) {
	t.Parallel()

	m, err := New(testConfig())
	require.NoError(t, err)

	spec := m.Compute(tone(16000, 16000, 1000))
	require.Len(t, spec, 40)
	assert.Len(t, spec[0], 16000/256+1)
	assert.Equal(t, 16000/256+1, m.NumFrames(16000))
}

func TestComputeLocalizesTone(t *testing.T) {
	t.Parallel()

	m, err := New(testConfig())
	require.NoError(t, err)

	spec := m.Compute(tone(8000, 16000, 3000))
	mid := len(spec[0]) / 2

	peak := 0
	for b := range spec {
		if spec[b][mid] > spec[peak][mid] {
			peak = b
		}
	}

	target := hzToMel(3000)
	step := hzToMel(8000) / 41
	assert.InDelta(t, target/step-1, float64(peak), 1.5)
}

func TestComputeSilenceIsFloor(t *testing.T) {
	t.Parallel()

	m, err := New(testConfig())
	require.NoError(t, err)

	spec := m.Compute(make([]float32, 4000))
	for _, band := range spec {
		for _, v := range band {
			assert.InDelta(t, -100.0, v, 1e-9)
		}
	}
}

func TestComputeConcurrent(t *testing.T) {
	t.Parallel()

	m, err := New(testConfig())
	require.NoError(t, err)

	in := tone(4000, 16000, 500)
	want := m.Compute(in)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, m.Compute(in))
		}()
	}
	wg.Wait()
}

func TestReflectPad(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []float64{2, 1, 0, 1, 2, 3, 2, 1}, reflectPad([]float32{0, 1, 2, 3}, 2))
	assert.Equal(t, []float64{0, 0, 5, 0, 0}, reflectPad([]float32{5}, 2))
}

func TestMelRoundTrip(t *testing.T) {
	t.Parallel()
	for _, hz := range []float64{0, 440, 8000, 16000} {
		assert.InDelta(t, hz, melToHz(hzToMel(hz)), 1e-6)
	}
}
