// Package spectrogram computes log-mel spectrograms from mono audio.
package spectrogram

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Config describes an STFT plus mel projection
type Config struct {
	SampleRate int
	NFFT       int
	HopLength  int
	NMels      int
	FMin       float64 // lowest filter edge in Hz
	FMax       float64 // highest filter edge in Hz, 0 = Nyquist
}

func (c Config) validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	case c.NFFT <= 0 || c.NFFT&(c.NFFT-1) != 0:
		return fmt.Errorf("n_fft must be a positive power of two, got %d", c.NFFT)
	case c.HopLength <= 0:
		return fmt.Errorf("hop length must be positive, got %d", c.HopLength)
	case c.NMels <= 0:
		return fmt.Errorf("mel band count must be positive, got %d", c.NMels)
	case c.FMax < 0 || c.FMin < 0 || (c.FMax > 0 && c.FMax <= c.FMin):
		return fmt.Errorf("invalid frequency range %.1f-%.1f Hz", c.FMin, c.FMax)
	}
	return nil
}

// sparseFilter stores only the non-zero range of a triangular filter.
type sparseFilter struct {
	start  int
	coeffs []float64
}

// MelSpectrogram turns audio into [NMels][frames] log power. It is safe for
// concurrent use, FFT plans are pooled.
type MelSpectrogram struct {
	cfg     Config
	window  []float64
	filters []sparseFilter
	plans   sync.Pool
}

// New builds a MelSpectrogram for cfg
func New(cfg Config) (*MelSpectrogram, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.FMax == 0 {
		cfg.FMax = float64(cfg.SampleRate) / 2
	}

	m := &MelSpectrogram{
		cfg:     cfg,
		window:  hannWindow(cfg.NFFT),
		filters: melFilterbank(cfg.NMels, cfg.NFFT, cfg.SampleRate, cfg.FMin, cfg.FMax),
	}
	m.plans.New = func() any { return fourier.NewFFT(cfg.NFFT) }
	return m, nil
}

// Config returns the configuration m was built with
func (m *MelSpectrogram) Config() Config { return m.cfg }

// NumFrames returns the frame count produced for n input samples
func (m *MelSpectrogram) NumFrames(n int) int {
	return n/m.cfg.HopLength + 1
}

// Compute returns the log-mel spectrogram of samples in decibels. Frames are
// centered, the signal is reflect padded by NFFT/2 on both sides.
func (m *MelSpectrogram) Compute(samples []float32) [][]float64 {
	nfft := m.cfg.NFFT
	padded := reflectPad(samples, nfft/2)
	frames := m.NumFrames(len(samples))

	fft := m.plans.Get().(*fourier.FFT)
	defer m.plans.Put(fft)

	out := make([][]float64, m.cfg.NMels)
	for i := range out {
		out[i] = make([]float64, frames)
	}

	frame := make([]float64, nfft)
	power := make([]float64, nfft/2+1)
	var coeffs []complex128

	for f := range frames {
		offset := f * m.cfg.HopLength
		for i := range frame {
			if offset+i < len(padded) {
				frame[i] = padded[offset+i] * m.window[i]
			} else {
				frame[i] = 0
			}
		}

		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			power[k] = re*re + im*im
		}

		for b, sf := range m.filters {
			sum := 0.0
			for j, w := range sf.coeffs {
				sum += power[sf.start+j] * w
			}
			out[b][f] = powerToDB(sum)
		}
	}

	return out
}

func powerToDB(p float64) float64 {
	return 10 * math.Log10(max(p, 1e-10))
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// reflectPad mirrors pad samples at both ends without repeating the edge.
// Signals too short to mirror are zero padded instead.
func reflectPad(samples []float32, pad int) []float64 {
	n := len(samples)
	out := make([]float64, n+2*pad)
	for i, s := range samples {
		out[pad+i] = float64(s)
	}
	if n <= pad {
		return out
	}
	for i := range pad {
		out[pad-1-i] = float64(samples[i+1])
		out[pad+n+i] = float64(samples[n-2-i])
	}
	return out
}

// melFilterbank builds triangular filters with edges equally spaced on the
// HTK mel scale, interpolated on continuous bin frequencies.
func melFilterbank(numFilters, nfft, sampleRate int, lowFreq, highFreq float64) []sparseFilter {
	nBins := nfft/2 + 1
	lowMel, highMel := hzToMel(lowFreq), hzToMel(highFreq)

	edges := make([]float64, numFilters+2)
	step := (highMel - lowMel) / float64(numFilters+1)
	for i := range edges {
		edges[i] = melToHz(lowMel + float64(i)*step)
	}

	binHz := float64(sampleRate) / float64(nfft)
	filters := make([]sparseFilter, numFilters)
	for i := range numFilters {
		left, center, right := edges[i], edges[i+1], edges[i+2]

		start, end := -1, 0
		weights := make([]float64, nBins)
		for k := range nBins {
			hz := float64(k) * binHz
			var w float64
			switch {
			case hz > left && hz <= center:
				w = (hz - left) / (center - left)
			case hz > center && hz < right:
				w = (right - hz) / (right - center)
			}
			if w > 0 {
				if start < 0 {
					start = k
				}
				end = k + 1
				weights[k] = w
			}
		}

		if start < 0 {
			// band narrower than one bin, take the nearest bin
			k := min(int(math.Round(center/binHz)), nBins-1)
			filters[i] = sparseFilter{start: k, coeffs: []float64{1}}
			continue
		}
		filters[i] = sparseFilter{start: start, coeffs: weights[start:end]}
	}
	return filters
}

func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10, mel/2595.0) - 1.0)
}
