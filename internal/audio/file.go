package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
)

// LoadFile reads an audio file and returns mono float32 samples at
// TargetSampleRate, windowed to [offsetSec, offsetSec+durationSec) seconds.
// WAV files are decoded in-process; anything else goes through sox.
// A window past the end of the audio returns an empty slice.
func LoadFile(path string, offsetSec, durationSec int) ([]float32, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		samples, err := loadWAV(path)
		if err != nil {
			return nil, err
		}
		return Window(samples, TargetSampleRate, offsetSec, durationSec), nil
	}

	// Non-WAV input: let sox resample and convert, then decode the result.
	converted, cleanup, err := Preprocess(context.Background(), path)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", filepath.Base(path), err)
	}
	defer cleanup()

	samples, err := loadWAV(converted)
	if err != nil {
		return nil, err
	}
	return Window(samples, TargetSampleRate, offsetSec, durationSec), nil
}

// loadWAV decodes a WAV file into mono float32 samples at TargetSampleRate.
func loadWAV(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate == 0 {
		return nil, fmt.Errorf("wav %s: missing format header", filepath.Base(path))
	}

	// Normalize int PCM to [-1, 1] float32.
	scale := float32(int(1) << (dec.BitDepth - 1))
	samples := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = float32(s) / scale
	}

	mono := Mixdown(samples, buf.Format.NumChannels)
	return Resample(mono, buf.Format.SampleRate, TargetSampleRate), nil
}
