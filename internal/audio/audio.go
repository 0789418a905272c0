// Package audio handles capture, loading, and conversion of audio for
// transcription. All functions produce mono float32 samples at the target
// rate expected by Whisper-style models.
package audio

// TargetSampleRate is the sample rate every audio path is normalized to
// before transcription.
const TargetSampleRate = 16000

// Mixdown averages interleaved multi-channel samples into mono.
// A single-channel input is returned unchanged.
func Mixdown(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// Resample converts mono samples from srcRate to dstRate using linear
// interpolation. Sufficient for speech headed into Whisper; callers that
// need better filtering should preprocess with sox instead.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen == 0 {
		return nil
	}
	out := make([]float32, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

// Window slices [offset, offset+duration) seconds out of mono samples at the
// given rate. A zero duration means everything from offset to the end.
// An offset at or past the end returns nil.
func Window(samples []float32, rate, offsetSec, durationSec int) []float32 {
	start := offsetSec * rate
	if start >= len(samples) {
		return nil
	}
	if durationSec <= 0 {
		return samples[start:]
	}
	end := start + durationSec*rate
	if end > len(samples) {
		end = len(samples)
	}
	return samples[start:end]
}
