package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// soxAvailable caches whether sox is in PATH (checked once at startup).
var soxAvailable *bool

// CheckSox checks if sox is available in PATH. Call once at startup.
func CheckSox() bool {
	if soxAvailable != nil {
		return *soxAvailable
	}
	_, err := exec.LookPath("sox")
	avail := err == nil
	soxAvailable = &avail
	return avail
}

// Preprocess converts an audio file to 16kHz mono WAV with normalized volume
// using sox. Returns the path to a temporary WAV file and a cleanup function.
// Fails if sox is not installed.
func Preprocess(ctx context.Context, inputPath string) (string, func(), error) {
	noop := func() {}

	if !CheckSox() {
		return "", noop, fmt.Errorf("sox not found in PATH (required for %s input)", filepath.Ext(inputPath))
	}

	tmp, err := os.CreateTemp("", "transcribe-*.wav")
	if err != nil {
		return "", noop, fmt.Errorf("create temp: %w", err)
	}
	outPath := tmp.Name()
	tmp.Close()

	cmd := exec.CommandContext(ctx, "sox",
		inputPath, outPath,
		"rate", fmt.Sprintf("%d", TargetSampleRate),
		"channels", "1",
		"norm",
	)
	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		return "", noop, fmt.Errorf("sox convert: %w", err)
	}

	cleanup := func() {
		os.Remove(outPath)
	}
	return outPath, cleanup, nil
}
