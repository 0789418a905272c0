package output

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/metrics"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/transcribe"
)

// Event is a transcript event as sent to SSE subscribers.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventFilter restricts which events a subscriber receives.
type EventFilter struct {
	Sources []string // "stream", "file", "upload", "watch"; empty = all
}

// EventBus distributes transcript events to SSE subscribers and keeps a ring
// buffer for replay on reconnect. It is also a Publisher so it can join the
// output fan-out.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[uint64]busSubscriber
	nextID      uint64
	seq         atomic.Uint64

	ring     []Event
	ringSize int
	ringHead int
	ringMu   sync.RWMutex
}

type busSubscriber struct {
	ch     chan Event
	filter EventFilter
}

// NewEventBus creates an event bus with the given ring buffer size.
func NewEventBus(ringSize int) *EventBus {
	return &EventBus{
		subscribers: make(map[uint64]busSubscriber),
		ring:        make([]Event, ringSize),
		ringSize:    ringSize,
	}
}

func (eb *EventBus) Name() string { return "sse" }

func (eb *EventBus) Close() error { return nil }

// Publish fans a transcript out to all matching subscribers and records it
// in the ring buffer. Slow subscribers drop events rather than block.
func (eb *EventBus) Publish(_ context.Context, t transcribe.Transcript) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transcript event: %w", err)
	}

	seq := eb.seq.Add(1)
	event := Event{
		ID:        fmt.Sprintf("%d-%d", time.Now().UnixMilli(), seq),
		Type:      "transcript",
		Source:    t.Source,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}

	eb.ringMu.Lock()
	eb.ring[eb.ringHead] = event
	eb.ringHead = (eb.ringHead + 1) % eb.ringSize
	eb.ringMu.Unlock()

	eb.mu.RLock()
	for _, sub := range eb.subscribers {
		if matchesFilter(event, sub.filter) {
			select {
			case sub.ch <- event:
			default:
			}
		}
	}
	eb.mu.RUnlock()

	metrics.EventsPublishedTotal.Inc()
	return nil
}

// Subscribe registers a subscriber and returns its channel and a cancel func.
func (eb *EventBus) Subscribe(filter EventFilter) (<-chan Event, func()) {
	eb.mu.Lock()
	id := eb.nextID
	eb.nextID++
	ch := make(chan Event, 64)
	eb.subscribers[id] = busSubscriber{ch: ch, filter: filter}
	eb.mu.Unlock()

	cancel := func() {
		eb.mu.Lock()
		delete(eb.subscribers, id)
		eb.mu.Unlock()
	}
	return ch, cancel
}

// ReplaySince returns buffered events after the given event ID. An empty
// lastEventID replays nothing (events start flowing from the subscription).
func (eb *EventBus) ReplaySince(lastEventID string, filter EventFilter) []Event {
	if lastEventID == "" {
		return nil
	}

	eb.ringMu.RLock()
	defer eb.ringMu.RUnlock()

	var events []Event
	found := false
	for i := 0; i < eb.ringSize; i++ {
		idx := (eb.ringHead + i) % eb.ringSize
		e := eb.ring[idx]
		if e.ID == "" {
			continue
		}
		if !found {
			if e.ID == lastEventID {
				found = true
			}
			continue
		}
		if matchesFilter(e, filter) {
			events = append(events, e)
		}
	}
	return events
}

// SubscriberCount returns the number of active subscribers.
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

func matchesFilter(e Event, f EventFilter) bool {
	if len(f.Sources) == 0 {
		return true
	}
	for _, s := range f.Sources {
		if s == e.Source {
			return true
		}
	}
	return false
}
