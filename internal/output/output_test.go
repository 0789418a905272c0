package output

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/transcribe"
)

// fakePublisher records publishes and optionally fails.
type fakePublisher struct {
	name   string
	err    error
	count  int
	closed bool
}

func (f *fakePublisher) Name() string { return f.name }
func (f *fakePublisher) Close() error { f.closed = true; return nil }
func (f *fakePublisher) Publish(_ context.Context, _ transcribe.Transcript) error {
	f.count++
	return f.err
}

func TestMultiFansOut(t *testing.T) {
	a := &fakePublisher{name: "a"}
	b := &fakePublisher{name: "b"}
	m := NewMulti(zerolog.Nop(), a, b)

	m.Publish(context.Background(), transcribe.Transcript{ID: "1", Text: "ciao"})

	if a.count != 1 || b.count != 1 {
		t.Errorf("publish counts = %d, %d; want 1, 1", a.count, b.count)
	}
}

func TestMultiFailingDestinationDoesNotBlockOthers(t *testing.T) {
	bad := &fakePublisher{name: "bad", err: errors.New("down")}
	good := &fakePublisher{name: "good"}
	m := NewMulti(zerolog.Nop(), bad, good)

	m.Publish(context.Background(), transcribe.Transcript{ID: "1", Text: "ciao"})

	if good.count != 1 {
		t.Errorf("good publisher count = %d, want 1", good.count)
	}
}

func TestMultiClose(t *testing.T) {
	a := &fakePublisher{name: "a"}
	m := NewMulti(zerolog.Nop(), a)
	m.Close()
	if !a.closed {
		t.Error("Close() did not close publisher")
	}
}

func TestEventBusPublishSubscribe(t *testing.T) {
	eb := NewEventBus(16)
	ch, cancel := eb.Subscribe(EventFilter{})
	defer cancel()

	err := eb.Publish(context.Background(), transcribe.Transcript{ID: "t1", Text: "ciao", Source: "stream"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case e := <-ch:
		if e.Type != "transcript" {
			t.Errorf("Type = %q, want transcript", e.Type)
		}
		if e.Source != "stream" {
			t.Errorf("Source = %q, want stream", e.Source)
		}
	default:
		t.Fatal("no event received")
	}
}

func TestEventBusSourceFilter(t *testing.T) {
	eb := NewEventBus(16)
	ch, cancel := eb.Subscribe(EventFilter{Sources: []string{"upload"}})
	defer cancel()

	eb.Publish(context.Background(), transcribe.Transcript{ID: "t1", Source: "stream"})
	eb.Publish(context.Background(), transcribe.Transcript{ID: "t2", Source: "upload"})

	if got := len(ch); got != 1 {
		t.Fatalf("buffered events = %d, want 1", got)
	}
	e := <-ch
	if e.Source != "upload" {
		t.Errorf("Source = %q, want upload", e.Source)
	}
}

func TestEventBusReplaySince(t *testing.T) {
	eb := NewEventBus(16)

	eb.Publish(context.Background(), transcribe.Transcript{ID: "t1", Source: "stream"})

	// Capture the first event's ID via a subscriber.
	ch, cancel := eb.Subscribe(EventFilter{})
	eb.Publish(context.Background(), transcribe.Transcript{ID: "t2", Source: "stream"})
	second := <-ch
	cancel()

	eb.Publish(context.Background(), transcribe.Transcript{ID: "t3", Source: "stream"})

	replayed := eb.ReplaySince(second.ID, EventFilter{})
	if len(replayed) != 1 {
		t.Fatalf("replayed = %d events, want 1", len(replayed))
	}

	if got := eb.ReplaySince("", EventFilter{}); got != nil {
		t.Errorf("ReplaySince(\"\") = %d events, want none", len(got))
	}
}

func TestEventBusSubscriberCount(t *testing.T) {
	eb := NewEventBus(4)
	if eb.SubscriberCount() != 0 {
		t.Errorf("count = %d, want 0", eb.SubscriberCount())
	}
	_, cancel1 := eb.Subscribe(EventFilter{})
	_, cancel2 := eb.Subscribe(EventFilter{})
	if eb.SubscriberCount() != 2 {
		t.Errorf("count = %d, want 2", eb.SubscriberCount())
	}
	cancel1()
	cancel2()
	if eb.SubscriberCount() != 0 {
		t.Errorf("count after cancel = %d, want 0", eb.SubscriberCount())
	}
}

func TestLogPublisherSkipsNothing(t *testing.T) {
	p := NewLogPublisher(zerolog.Nop())
	if err := p.Publish(context.Background(), transcribe.Transcript{Text: "ciao"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if p.Name() != "log" {
		t.Errorf("Name = %q, want log", p.Name())
	}
}
