package transcribe

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeProvider returns a fixed result and records calls.
type fakeProvider struct {
	mu    sync.Mutex
	calls int
	res   Result
	err   error
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }
func (f *fakeProvider) Transcribe(_ context.Context, _ string, _ Options) (*Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	res := f.res
	return &res, nil
}

func newTestPool(workers, queueSize int, p Provider, publish PublishFunc) *WorkerPool {
	if p == nil {
		p = &fakeProvider{}
	}
	return NewWorkerPool(WorkerPoolOptions{
		Provider:  p,
		Workers:   workers,
		QueueSize: queueSize,
		Timeout:   5 * time.Second,
		Publish:   publish,
		Log:       zerolog.Nop(),
	})
}

func TestNewWorkerPool(t *testing.T) {
	wp := newTestPool(4, 100, nil, nil)
	if wp == nil {
		t.Fatal("NewWorkerPool returned nil")
	}
	if cap(wp.jobs) != 100 {
		t.Errorf("queue capacity = %d, want 100", cap(wp.jobs))
	}
}

func TestWorkerPool_EnqueueBeforeStart(t *testing.T) {
	wp := newTestPool(2, 5, nil, nil)
	// Enqueue should work even before Start() — it just buffers
	ok := wp.Enqueue(Job{AudioPath: "a.wav"})
	if !ok {
		t.Error("Enqueue should return true when queue has space")
	}
}

func TestWorkerPool_EnqueueFull(t *testing.T) {
	wp := newTestPool(0, 2, nil, nil) // 0 workers = nobody draining

	wp.Enqueue(Job{AudioPath: "1.wav"})
	wp.Enqueue(Job{AudioPath: "2.wav"})

	ok := wp.Enqueue(Job{AudioPath: "3.wav"})
	if ok {
		t.Error("Enqueue should return false when queue is full")
	}
}

func TestWorkerPool_EnqueueAssignsID(t *testing.T) {
	wp := newTestPool(0, 2, nil, nil)
	wp.Enqueue(Job{AudioPath: "1.wav"})
	j := <-wp.jobs
	if j.ID == "" {
		t.Error("Enqueue should assign a job ID")
	}
}

func TestWorkerPool_Stats(t *testing.T) {
	wp := newTestPool(0, 10, nil, nil) // 0 workers so nothing drains

	wp.Enqueue(Job{AudioPath: "1.wav"})
	wp.Enqueue(Job{AudioPath: "2.wav"})

	stats := wp.Stats()
	if stats.Pending != 2 {
		t.Errorf("Pending = %d, want 2", stats.Pending)
	}
	if stats.Capacity != 10 {
		t.Errorf("Capacity = %d, want 10", stats.Capacity)
	}
	if stats.Completed != 0 {
		t.Errorf("Completed = %d, want 0", stats.Completed)
	}
	if stats.Failed != 0 {
		t.Errorf("Failed = %d, want 0", stats.Failed)
	}
}

func TestWorkerPool_ProcessesJobAndPublishes(t *testing.T) {
	provider := &fakeProvider{res: Result{Text: "ciao mondo", Language: "it", Duration: 1.5}}

	var mu sync.Mutex
	var published []Transcript
	publish := func(_ context.Context, tr Transcript) {
		mu.Lock()
		published = append(published, tr)
		mu.Unlock()
	}

	wp := newTestPool(1, 10, provider, publish)
	wp.Start()
	wp.Enqueue(Job{AudioPath: "a.wav", Source: "file"})
	wp.Stop() // drains the queue

	mu.Lock()
	defer mu.Unlock()
	if len(published) != 1 {
		t.Fatalf("published %d transcripts, want 1", len(published))
	}
	tr := published[0]
	if tr.Text != "ciao mondo" {
		t.Errorf("Text = %q", tr.Text)
	}
	if tr.Source != "file" {
		t.Errorf("Source = %q, want file", tr.Source)
	}
	if tr.Provider != "fake" || tr.Model != "fake-model" {
		t.Errorf("Provider/Model = %q/%q", tr.Provider, tr.Model)
	}
	if tr.WordCount != 2 {
		t.Errorf("WordCount = %d, want 2", tr.WordCount)
	}
	if tr.AudioSeconds != 1.5 {
		t.Errorf("AudioSeconds = %f, want 1.5", tr.AudioSeconds)
	}

	if got := wp.Stats().Completed; got != 1 {
		t.Errorf("Completed = %d, want 1", got)
	}
}

func TestWorkerPool_EmptyTranscriptNotPublished(t *testing.T) {
	provider := &fakeProvider{res: Result{Text: "   "}}

	var mu sync.Mutex
	count := 0
	publish := func(_ context.Context, _ Transcript) {
		mu.Lock()
		count++
		mu.Unlock()
	}

	wp := newTestPool(1, 10, provider, publish)
	wp.Start()
	wp.Enqueue(Job{AudioPath: "a.wav", Source: "stream"})
	wp.Stop()

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("published %d transcripts for blank text, want 0", count)
	}
	// Blank results count as completed, not failed.
	if got := wp.Stats().Completed; got != 1 {
		t.Errorf("Completed = %d, want 1", got)
	}
}

func TestWorkerPool_JobCleanupRuns(t *testing.T) {
	provider := &fakeProvider{res: Result{Text: "ok"}}
	cleaned := make(chan struct{})

	wp := newTestPool(1, 10, provider, nil)
	wp.Start()
	wp.Enqueue(Job{AudioPath: "a.wav", Cleanup: func() { close(cleaned) }})
	wp.Stop()

	select {
	case <-cleaned:
	default:
		t.Error("job cleanup was not invoked")
	}
}

func TestWorkerPool_StopDrains(t *testing.T) {
	wp := newTestPool(2, 10, nil, nil)
	wp.Start()

	done := make(chan struct{})
	go func() {
		wp.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return within 5 seconds")
	}
}
