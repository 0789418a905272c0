package audio

import (
	"math"
	"testing"
)

func TestMixdown(t *testing.T) {
	t.Run("stereo_average", func(t *testing.T) {
		in := []float32{1, 0, 0.5, 0.5, -1, 1}
		out := Mixdown(in, 2)
		want := []float32{0.5, 0.5, 0}
		if len(out) != len(want) {
			t.Fatalf("len = %d, want %d", len(out), len(want))
		}
		for i := range want {
			if math.Abs(float64(out[i]-want[i])) > 1e-6 {
				t.Errorf("out[%d] = %f, want %f", i, out[i], want[i])
			}
		}
	})

	t.Run("mono_passthrough", func(t *testing.T) {
		in := []float32{0.1, 0.2, 0.3}
		out := Mixdown(in, 1)
		if len(out) != 3 || out[0] != 0.1 {
			t.Errorf("mono input should pass through unchanged, got %v", out)
		}
	})
}

func TestResample(t *testing.T) {
	t.Run("same_rate_passthrough", func(t *testing.T) {
		in := []float32{1, 2, 3}
		out := Resample(in, 16000, 16000)
		if len(out) != 3 {
			t.Errorf("len = %d, want 3", len(out))
		}
	})

	t.Run("downsample_halves_length", func(t *testing.T) {
		in := make([]float32, 32000)
		out := Resample(in, 32000, 16000)
		if len(out) != 16000 {
			t.Errorf("len = %d, want 16000", len(out))
		}
	})

	t.Run("upsample_doubles_length", func(t *testing.T) {
		in := make([]float32, 8000)
		out := Resample(in, 8000, 16000)
		if len(out) != 16000 {
			t.Errorf("len = %d, want 16000", len(out))
		}
	})

	t.Run("interpolates_between_samples", func(t *testing.T) {
		// Upsampling a ramp by 2x: odd samples land between the originals.
		in := []float32{0, 1, 2, 3}
		out := Resample(in, 8000, 16000)
		if out[1] != 0.5 {
			t.Errorf("out[1] = %f, want 0.5", out[1])
		}
	})

	t.Run("empty_input", func(t *testing.T) {
		if out := Resample(nil, 44100, 16000); len(out) != 0 {
			t.Errorf("expected empty output, got %d samples", len(out))
		}
	})
}

func TestWindow(t *testing.T) {
	samples := make([]float32, 10*TargetSampleRate) // 10s of audio

	t.Run("offset_and_duration", func(t *testing.T) {
		out := Window(samples, TargetSampleRate, 2, 3)
		if len(out) != 3*TargetSampleRate {
			t.Errorf("len = %d, want %d", len(out), 3*TargetSampleRate)
		}
	})

	t.Run("duration_clamped_to_end", func(t *testing.T) {
		out := Window(samples, TargetSampleRate, 8, 5)
		if len(out) != 2*TargetSampleRate {
			t.Errorf("len = %d, want %d", len(out), 2*TargetSampleRate)
		}
	})

	t.Run("offset_past_end_returns_nil", func(t *testing.T) {
		if out := Window(samples, TargetSampleRate, 10, 1); out != nil {
			t.Errorf("expected nil, got %d samples", len(out))
		}
	})

	t.Run("zero_duration_means_rest", func(t *testing.T) {
		out := Window(samples, TargetSampleRate, 4, 0)
		if len(out) != 6*TargetSampleRate {
			t.Errorf("len = %d, want %d", len(out), 6*TargetSampleRate)
		}
	})
}

func TestWriteTempWAVAndLoadFile(t *testing.T) {
	// 2s of a quiet ramp, loaded back with a 1s offset window.
	samples := make([]float32, 2*TargetSampleRate)
	for i := range samples {
		samples[i] = 0.25
	}

	path, cleanup, err := WriteTempWAV(samples)
	if err != nil {
		t.Fatalf("WriteTempWAV: %v", err)
	}
	defer cleanup()

	loaded, err := LoadFile(path, 1, 1)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(loaded) != TargetSampleRate {
		t.Fatalf("len = %d, want %d", len(loaded), TargetSampleRate)
	}
	// 16-bit quantization allows a small error.
	if math.Abs(float64(loaded[100]-0.25)) > 0.001 {
		t.Errorf("sample = %f, want ~0.25", loaded[100])
	}
}

func TestWriteTempWAVClampsOutOfRange(t *testing.T) {
	path, cleanup, err := WriteTempWAV([]float32{2.0, -2.0})
	if err != nil {
		t.Fatalf("WriteTempWAV: %v", err)
	}
	defer cleanup()

	loaded, err := LoadFile(path, 0, 0)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded[0] < 0.99 || loaded[1] > -0.99 {
		t.Errorf("expected clamped full-scale samples, got %v", loaded)
	}
}
