package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/transcribe"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS transcripts (
    id            TEXT PRIMARY KEY,
    text          TEXT NOT NULL,
    language      TEXT NOT NULL DEFAULT '',
    source        TEXT NOT NULL,
    provider      TEXT NOT NULL,
    model         TEXT NOT NULL,
    audio_key     TEXT NOT NULL DEFAULT '',
    audio_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
    word_count    INTEGER NOT NULL DEFAULT 0,
    elapsed_ms    INTEGER NOT NULL DEFAULT 0,
    words         JSONB,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transcripts_created_at ON transcripts (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transcripts_source ON transcripts (source);
`

// InitSchema creates the transcripts table on a fresh database. Idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	db.log.Debug().Msg("schema ready")
	return nil
}

// InsertTranscript stores a finished transcript.
func (db *DB) InsertTranscript(ctx context.Context, t *transcribe.Transcript) error {
	var words []byte
	if len(t.Words) > 0 {
		var err error
		words, err = json.Marshal(t.Words)
		if err != nil {
			return fmt.Errorf("marshal words: %w", err)
		}
	}

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO transcripts
			(id, text, language, source, provider, model, audio_key, audio_seconds, word_count, elapsed_ms, words, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, t.ID, t.Text, t.Language, t.Source, t.Provider, t.Model,
		t.AudioKey, t.AudioSeconds, t.WordCount, t.ElapsedMs, words, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

// ListFilter restricts ListTranscripts results.
type ListFilter struct {
	Source string
	Since  *time.Time
	Limit  int
	Offset int
}

// ListTranscripts returns stored transcripts, newest first.
func (db *DB) ListTranscripts(ctx context.Context, f ListFilter) ([]transcribe.Transcript, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	query := `
		SELECT id, text, language, source, provider, model, audio_key, audio_seconds, word_count, elapsed_ms, words, created_at
		FROM transcripts
		WHERE ($1 = '' OR source = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := db.Pool.Query(ctx, query, f.Source, f.Since, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	return scanTranscripts(rows)
}

// SearchTranscripts returns transcripts whose text matches the query,
// newest first. Matching is case-insensitive substring search.
func (db *DB) SearchTranscripts(ctx context.Context, q string, limit int) ([]transcribe.Transcript, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, text, language, source, provider, model, audio_key, audio_seconds, word_count, elapsed_ms, words, created_at
		FROM transcripts
		WHERE text ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2
	`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search transcripts: %w", err)
	}
	defer rows.Close()

	return scanTranscripts(rows)
}

// CountTranscripts returns the total number of stored transcripts.
func (db *DB) CountTranscripts(ctx context.Context) (int64, error) {
	var count int64
	err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM transcripts`).Scan(&count)
	return count, err
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTranscripts(rows pgxRows) ([]transcribe.Transcript, error) {
	var out []transcribe.Transcript
	for rows.Next() {
		var t transcribe.Transcript
		var words []byte
		err := rows.Scan(&t.ID, &t.Text, &t.Language, &t.Source, &t.Provider, &t.Model,
			&t.AudioKey, &t.AudioSeconds, &t.WordCount, &t.ElapsedMs, &words, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		if len(words) > 0 {
			if err := json.Unmarshal(words, &t.Words); err != nil {
				return nil, fmt.Errorf("unmarshal words: %w", err)
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
