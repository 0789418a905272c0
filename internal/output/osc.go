package output

import (
	"context"
	"fmt"

	"github.com/hypebeast/go-osc/osc"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/transcribe"
)

// OSCPublisher sends transcript text as an OSC message over UDP, the
// original delivery path for downstream audio/visual patches.
type OSCPublisher struct {
	client *osc.Client
	route  string
}

// NewOSCPublisher creates a publisher sending to addr:port at the given OSC
// route (e.g. "/speech").
func NewOSCPublisher(addr string, port int, route string) *OSCPublisher {
	if route == "" {
		route = "/speech"
	}
	return &OSCPublisher{
		client: osc.NewClient(addr, port),
		route:  route,
	}
}

func (p *OSCPublisher) Name() string { return "osc" }

func (p *OSCPublisher) Publish(_ context.Context, t transcribe.Transcript) error {
	msg := osc.NewMessage(p.route)
	msg.Append(t.Text)
	if err := p.client.Send(msg); err != nil {
		return fmt.Errorf("osc send: %w", err)
	}
	return nil
}

func (p *OSCPublisher) Close() error { return nil }
