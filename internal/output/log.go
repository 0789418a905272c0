package output

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/transcribe"
)

// LogPublisher writes transcripts to the log. It is the default output when
// no OSC address is configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Name() string { return "log" }

func (p *LogPublisher) Publish(_ context.Context, t transcribe.Transcript) error {
	p.log.Info().
		Str("source", t.Source).
		Str("language", t.Language).
		Int("words", t.WordCount).
		Msg(t.Text)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
