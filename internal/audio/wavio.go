package audio

import (
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteTempWAV writes mono float32 samples at TargetSampleRate to a temporary
// 16-bit PCM WAV file and returns its path plus a cleanup function. Used to
// hand in-memory chunks to HTTP transcription backends that expect a file.
func WriteTempWAV(samples []float32) (string, func(), error) {
	noop := func() {}

	f, err := os.CreateTemp("", "transcribe-chunk-*.wav")
	if err != nil {
		return "", noop, fmt.Errorf("create temp: %w", err)
	}
	path := f.Name()

	enc := wav.NewEncoder(f, TargetSampleRate, 16, 1, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: TargetSampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, s := range samples {
		// Clamp before scaling so clipped capture doesn't wrap around.
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf.Data[i] = int(s * 32767)
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		os.Remove(path)
		return "", noop, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return "", noop, fmt.Errorf("finalize wav: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", noop, fmt.Errorf("close wav: %w", err)
	}

	cleanup := func() { os.Remove(path) }
	return path, cleanup, nil
}
