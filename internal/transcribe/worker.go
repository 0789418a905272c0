package transcribe

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/audio"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/metrics"
)

// Job is a unit of audio waiting for transcription. Either AudioPath or
// Samples is set; samples are written to a temporary WAV before upload.
type Job struct {
	ID        string
	AudioPath string
	Samples   []float32
	Source    string // "stream", "file", "upload", "watch"
	AudioKey  string // archive key, if the audio was archived
	Cleanup   func() // invoked after the job finishes, may be nil
}

// QueueStats reports the current state of the transcription queue.
type QueueStats struct {
	Pending   int   `json:"pending"`
	Capacity  int   `json:"capacity"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// PublishFunc delivers a finished transcript to the configured outputs.
type PublishFunc func(ctx context.Context, t Transcript)

// TranscriptStore persists finished transcripts. Satisfied by *store.DB.
type TranscriptStore interface {
	InsertTranscript(ctx context.Context, t *Transcript) error
}

// WorkerPoolOptions configures the transcription worker pool.
type WorkerPoolOptions struct {
	Provider  Provider
	Opts      Options
	Workers   int
	QueueSize int
	Timeout   time.Duration
	Publish   PublishFunc
	Store     TranscriptStore // may be nil
	Log       zerolog.Logger
}

// WorkerPool runs transcription jobs on a fixed set of workers draining a
// buffered queue.
type WorkerPool struct {
	jobs     chan Job
	provider Provider
	opts     WorkerPoolOptions
	log      zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	completed atomic.Int64
	failed    atomic.Int64
}

// NewWorkerPool creates a transcription worker pool.
func NewWorkerPool(opts WorkerPoolOptions) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobs:     make(chan Job, opts.QueueSize),
		provider: opts.Provider,
		opts:     opts,
		log:      opts.Log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	wp.log.Info().Int("workers", wp.opts.Workers).Int("queue_size", wp.opts.QueueSize).Msg("transcription worker pool started")
}

// Stop signals workers to drain and waits for completion.
func (wp *WorkerPool) Stop() {
	close(wp.jobs)
	wp.wg.Wait()
	wp.cancel()
	wp.log.Info().
		Int64("completed", wp.completed.Load()).
		Int64("failed", wp.failed.Load()).
		Msg("transcription worker pool stopped")
}

// Enqueue adds a job to the queue. Returns false if the queue is full.
func (wp *WorkerPool) Enqueue(j Job) bool {
	if j.ID == "" {
		j.ID = NewID()
	}
	select {
	case wp.jobs <- j:
		return true
	default:
		return false
	}
}

// Stats returns current queue statistics.
func (wp *WorkerPool) Stats() QueueStats {
	return QueueStats{
		Pending:   len(wp.jobs),
		Capacity:  cap(wp.jobs),
		Completed: wp.completed.Load(),
		Failed:    wp.failed.Load(),
	}
}

// Pending returns the number of queued jobs. Used by the metrics collector.
func (wp *WorkerPool) Pending() int { return len(wp.jobs) }

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log := wp.log.With().Int("worker", id).Logger()

	for job := range wp.jobs {
		if err := wp.processJob(log, job); err != nil {
			wp.failed.Add(1)
			metrics.TranscriptionsTotal.WithLabelValues(wp.provider.Name(), "failed").Inc()
			log.Warn().Err(err).
				Str("job_id", job.ID).
				Str("source", job.Source).
				Msg("transcription failed")
		} else {
			wp.completed.Add(1)
			metrics.TranscriptionsTotal.WithLabelValues(wp.provider.Name(), "ok").Inc()
		}
	}
}

func (wp *WorkerPool) processJob(log zerolog.Logger, job Job) error {
	start := time.Now()
	if job.Cleanup != nil {
		defer job.Cleanup()
	}

	ctx, cancel := context.WithTimeout(wp.ctx, wp.opts.Timeout+10*time.Second)
	defer cancel()

	// In-memory chunks go through a temp WAV for upload.
	audioPath := job.AudioPath
	audioSeconds := 0.0
	if audioPath == "" {
		path, cleanup, err := audio.WriteTempWAV(job.Samples)
		if err != nil {
			return fmt.Errorf("encode chunk: %w", err)
		}
		defer cleanup()
		audioPath = path
		audioSeconds = float64(len(job.Samples)) / float64(audio.TargetSampleRate)
	}

	res, err := wp.provider.Transcribe(ctx, audioPath, wp.opts.Opts)
	if err != nil {
		return fmt.Errorf("%s: %w", wp.provider.Name(), err)
	}
	metrics.TranscribeDuration.WithLabelValues(wp.provider.Name()).Observe(time.Since(start).Seconds())

	text := strings.TrimSpace(res.Text)
	if text == "" {
		log.Debug().Str("job_id", job.ID).Msg("empty transcript, skipping")
		return nil
	}

	if res.Duration > 0 {
		audioSeconds = res.Duration
	}
	wordCount := len(res.Words)
	if wordCount == 0 {
		wordCount = len(strings.Fields(text))
	}

	t := Transcript{
		ID:           job.ID,
		Text:         text,
		Language:     res.Language,
		Source:       job.Source,
		Provider:     wp.provider.Name(),
		Model:        wp.provider.Model(),
		AudioKey:     job.AudioKey,
		AudioSeconds: audioSeconds,
		WordCount:    wordCount,
		ElapsedMs:    int(time.Since(start).Milliseconds()),
		Words:        res.Words,
		CreatedAt:    time.Now().UTC(),
	}

	if wp.opts.Store != nil {
		if err := wp.opts.Store.InsertTranscript(ctx, &t); err != nil {
			// Delivery still matters when persistence fails.
			log.Error().Err(err).Str("job_id", job.ID).Msg("transcript store insert failed")
		}
	}

	if wp.opts.Publish != nil {
		wp.opts.Publish(ctx, t)
	}

	log.Debug().
		Str("job_id", job.ID).
		Str("source", job.Source).
		Int("words", wordCount).
		Int("elapsed_ms", t.ElapsedMs).
		Msg("transcription complete")

	return nil
}

// NewID returns a short random job/transcript identifier.
func NewID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
