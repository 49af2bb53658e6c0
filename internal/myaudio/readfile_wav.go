package myaudio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

func readWAVInfo(file *os.File) (AudioInfo, error) {
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		return AudioInfo{}, errors.New("invalid WAV file format")
	}
	if _, err := getAudioDivisor(int(decoder.BitDepth)); err != nil {
		return AudioInfo{}, err
	}
	if decoder.NumChans == 0 {
		return AudioInfo{}, fmt.Errorf("unsupported number of channels: %d", decoder.NumChans)
	}

	if err := decoder.FwdToPCM(); err != nil {
		return AudioInfo{}, fmt.Errorf("error locating PCM data: %w", err)
	}

	bytesPerFrame := int(decoder.BitDepth/8) * int(decoder.NumChans)
	totalSamples := int(decoder.PCMLen()) / bytesPerFrame

	return AudioInfo{
		SampleRate:   int(decoder.SampleRate),
		TotalSamples: totalSamples,
		NumChannels:  int(decoder.NumChans),
		BitDepth:     int(decoder.BitDepth),
	}, nil
}

func decodeWAV(file *os.File) (*Clip, error) {
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.New("input is not a valid WAV audio file")
	}

	divisor, err := getAudioDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, err
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("error reading PCM data: %w", err)
	}

	return &Clip{
		Samples:    downmix(buf.Data, int(decoder.NumChans), divisor),
		SampleRate: int(decoder.SampleRate),
	}, nil
}
