// Package archive stores the audio behind transcripts so it can be
// re-transcribed or audited later. Serve mode archives uploads and
// watched files; the CLI modes don't archive.
package archive

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/config"
)

// Store abstracts audio archive backends.
type Store interface {
	// Save stores audio data. key format: {source}/{YYYY-MM-DD}/{filename}
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// LocalPath returns the local filesystem path if the file exists on disk.
	// Returns "" if not available locally.
	LocalPath(key string) string

	// URL returns a presigned URL for the audio file.
	// Returns "" for local-only backends.
	URL(ctx context.Context, key string) (string, error)

	// Open returns a reader for the audio file.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an audio file exists.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "s3".
	Type() string
}

// BackgroundService is a stoppable background goroutine.
type BackgroundService interface {
	Start()
	Stop()
}

// New creates a Store based on config, plus optional background services the
// caller must Start/Stop. Local archiving is always on; S3 is layered on top
// when configured, with the pruner keeping the local copy bounded.
func New(cfg config.S3Config, audioDir string, log zerolog.Logger) (Store, []BackgroundService, error) {
	local := NewLocalStore(audioDir)
	if !cfg.Enabled() {
		return local, nil, nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("s3 init: %w", err)
	}

	// Startup validation: verify credentials and bucket access.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, nil, fmt.Errorf("s3 startup check (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("s3 connection verified")

	var services []BackgroundService
	if cfg.Retention > 0 {
		services = append(services, NewPruner(audioDir, cfg.Retention, s3store, log))
	}

	return NewTieredStore(s3store, local, log), services, nil
}

// Key builds an archive key from the transcript source and a filename,
// partitioned by date.
func Key(source, filename string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%s", source, now.UTC().Format("2006-01-02"), filename)
}
