package myaudio

import "fmt"

// ResampleAudio converts audio from originalRate to targetRate using cubic
// interpolation. Inputs shorter than four samples fall back to linear.
func ResampleAudio(audio []float32, originalRate, targetRate int) ([]float32, error) {
	if originalRate <= 0 || targetRate <= 0 {
		return nil, fmt.Errorf("invalid resample rates %d -> %d", originalRate, targetRate)
	}
	if originalRate == targetRate || len(audio) == 0 {
		return audio, nil
	}

	ratio := float64(targetRate) / float64(originalRate)
	newLength := int(float64(len(audio)) * ratio)
	resampled := make([]float32, newLength)

	if len(audio) < 4 {
		for i := range newLength {
			pos := float64(i) / ratio
			idx := int(pos)
			if idx+1 >= len(audio) {
				resampled[i] = audio[len(audio)-1]
				continue
			}
			frac := float32(pos - float64(idx))
			resampled[i] = audio[idx]*(1-frac) + audio[idx+1]*frac
		}
		return resampled, nil
	}

	lastIndex := len(audio) - 3
	for i := range newLength {
		origPos := float64(i) / ratio
		index := int(origPos)

		if index < 1 {
			index = 1
		} else if index > lastIndex {
			index = lastIndex
		}

		frac := float32(origPos) - float32(index)

		y0, y1, y2, y3 := audio[index-1], audio[index], audio[index+1], audio[index+2]
		mu2 := frac * frac
		a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
		a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
		a2 := -0.5*y0 + 0.5*y2
		a3 := y1

		resampled[i] = a0*frac*mu2 + a1*mu2 + a2*frac + a3
	}

	return resampled, nil
}
