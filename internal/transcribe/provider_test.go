package transcribe

import (
	"testing"
	"time"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/config"
)

func TestNewProvider(t *testing.T) {
	t.Run("whisper_default", func(t *testing.T) {
		p, err := New(&config.Config{
			Provider:       "whisper",
			WhisperURL:     "http://localhost:9000/v1/audio/transcriptions",
			WhisperModel:   "whispy/whisper_italian",
			WhisperTimeout: time.Minute,
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if p.Name() != "whisper" {
			t.Errorf("Name = %q, want whisper", p.Name())
		}
		if p.Model() != "whispy/whisper_italian" {
			t.Errorf("Model = %q", p.Model())
		}
	})

	t.Run("empty_means_whisper", func(t *testing.T) {
		p, err := New(&config.Config{WhisperTimeout: time.Minute})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if p.Name() != "whisper" {
			t.Errorf("Name = %q, want whisper", p.Name())
		}
	})

	t.Run("openai_requires_key", func(t *testing.T) {
		_, err := New(&config.Config{Provider: "openai"})
		if err == nil {
			t.Fatal("expected error without OPENAI_API_KEY")
		}
	})

	t.Run("openai_remaps_local_model_name", func(t *testing.T) {
		p, err := New(&config.Config{
			Provider:     "openai",
			OpenAIAPIKey: "sk-test",
			WhisperModel: "whispy/whisper_italian",
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if p.Model() != "whisper-1" {
			t.Errorf("Model = %q, want whisper-1", p.Model())
		}
	})

	t.Run("unknown_provider", func(t *testing.T) {
		_, err := New(&config.Config{Provider: "deepgram"})
		if err == nil {
			t.Fatal("expected error for unknown provider")
		}
	})
}
