package transcribe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/config"
)

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) (*Result, error)
	Name() string  // "whisper", "openai"
	Model() string // model identifier for logs and stored transcripts
}

// Options are per-request transcription parameters. Zero-value fields are
// omitted from the request so server defaults apply.
type Options struct {
	Temperature float64
	Language    string
	Prompt      string // initial prompt / domain vocabulary
	BeamSize    int    // 0 = server default
	VadFilter   bool
}

// Result is the common transcription result from any provider.
type Result struct {
	Text     string
	Language string
	Duration float64 // audio duration in seconds
	Words    []Word  // nil if the provider doesn't return word timestamps
}

// Word is a timestamped word from an STT provider.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
}

// Transcript is a finished transcription with its source metadata, as
// delivered to outputs and the transcript store.
type Transcript struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	Language     string    `json:"language,omitempty"`
	Source       string    `json:"source"` // "stream", "file", "upload", "watch"
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	AudioKey     string    `json:"audio_key,omitempty"`
	AudioSeconds float64   `json:"audio_seconds,omitempty"`
	WordCount    int       `json:"word_count"`
	ElapsedMs    int       `json:"elapsed_ms"`
	Words        []Word    `json:"words,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// New creates a Provider from config.
func New(cfg *config.Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "whisper", "":
		return NewWhisperClient(cfg.WhisperURL, cfg.WhisperModel, cfg.WhisperTimeout), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY")
		}
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.WhisperModel, cfg.WhisperTimeout), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (supported: whisper, openai)", cfg.Provider)
	}
}
