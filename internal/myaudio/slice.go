package myaudio

// SliceMs returns the part of c between startMs and endMs. The slice is
// clamped to the clip, so a window running past the end comes back shorter
// than requested and callers must check DurationMs.
func (c *Clip) SliceMs(startMs, endMs int) *Clip {
	startMs = max(startMs, 0)
	if endMs < startMs {
		endMs = startMs
	}

	from := min(msToSamples(startMs, c.SampleRate), len(c.Samples))
	to := min(msToSamples(endMs, c.SampleRate), len(c.Samples))

	return &Clip{Samples: c.Samples[from:to], SampleRate: c.SampleRate}
}

// FitLength returns samples truncated or zero padded to exactly n samples.
func FitLength(samples []float32, n int) []float32 {
	if len(samples) >= n {
		return samples[:n]
	}
	out := make([]float32, n)
	copy(out, samples)
	return out
}

func msToSamples(ms, sampleRate int) int {
	return int(int64(ms) * int64(sampleRate) / 1000)
}
