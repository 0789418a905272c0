// Package output delivers finished transcripts to their destinations:
// an OSC endpoint, an MQTT topic, the log, or SSE subscribers.
package output

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/transcribe"
)

// Publisher delivers a transcript to one destination.
type Publisher interface {
	Publish(ctx context.Context, t transcribe.Transcript) error
	Name() string
	Close() error
}

// Multi fans a transcript out to several publishers. A failing destination
// is logged and does not block the others.
type Multi struct {
	publishers []Publisher
	log        zerolog.Logger
}

// NewMulti creates a fan-out over the given publishers.
func NewMulti(log zerolog.Logger, publishers ...Publisher) *Multi {
	return &Multi{publishers: publishers, log: log}
}

// Publish delivers the transcript to every destination.
func (m *Multi) Publish(ctx context.Context, t transcribe.Transcript) {
	for _, p := range m.publishers {
		if err := p.Publish(ctx, t); err != nil {
			m.log.Warn().Err(err).Str("output", p.Name()).Str("transcript_id", t.ID).Msg("publish failed")
		}
	}
}

// Close closes all publishers.
func (m *Multi) Close() {
	for _, p := range m.publishers {
		if err := p.Close(); err != nil {
			m.log.Warn().Err(err).Str("output", p.Name()).Msg("close failed")
		}
	}
}

// Names lists the configured destination names.
func (m *Multi) Names() []string {
	names := make([]string, len(m.publishers))
	for i, p := range m.publishers {
		names[i] = p.Name()
	}
	return names
}
