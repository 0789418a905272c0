package api

import (
	"context"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/archive"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/transcribe"
)

// Archive stores uploaded audio. Satisfied by the archive backends.
type Archive interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	LocalPath(key string) string
}

// Enqueuer accepts transcription jobs. Satisfied by *transcribe.WorkerPool.
type Enqueuer interface {
	Enqueue(j transcribe.Job) bool
}

// UploadHandler accepts audio files over HTTP and queues them for
// transcription.
type UploadHandler struct {
	pool    Enqueuer
	archive Archive
	log     zerolog.Logger
}

func NewUploadHandler(pool Enqueuer, archive Archive, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		pool:    pool,
		archive: archive,
		log:     log.With().Str("handler", "upload").Logger(),
	}
}

// Routes registers the upload endpoint.
func (h *UploadHandler) Routes(r chi.Router) {
	r.Post("/api/v1/transcribe", h.Upload)
}

// UploadResponse acknowledges an accepted upload.
type UploadResponse struct {
	JobID    string `json:"job_id"`
	AudioKey string `json:"audio_key"`
	Status   string `json:"status"`
}

// Upload handles POST /api/v1/transcribe. Accepts a multipart form with a
// "file" field, archives the audio, and enqueues it. Transcription is
// asynchronous; the transcript is delivered through the configured outputs
// and the events stream.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil || h.archive == nil {
		WriteError(w, http.StatusServiceUnavailable, "upload not available")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}
	if len(data) == 0 {
		WriteError(w, http.StatusBadRequest, "empty audio file")
		return
	}

	filename := sanitizeFilename(header.Filename)
	jobID := transcribe.NewID()
	key := archive.Key("upload", jobID+"_"+filename, time.Now())

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}

	if err := h.archive.Save(r.Context(), key, data, contentType); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("archive save failed")
		WriteError(w, http.StatusInternalServerError, "failed to store audio")
		return
	}

	localPath := h.archive.LocalPath(key)
	if localPath == "" {
		WriteError(w, http.StatusInternalServerError, "archived audio not readable")
		return
	}

	ok := h.pool.Enqueue(transcribe.Job{
		ID:        jobID,
		AudioPath: localPath,
		Source:    "upload",
		AudioKey:  key,
	})
	if !ok {
		WriteError(w, http.StatusServiceUnavailable, "transcription queue full, retry later")
		return
	}

	h.log.Info().Str("job_id", jobID).Str("file", filename).Int("bytes", len(data)).Msg("upload accepted")
	WriteJSON(w, http.StatusAccepted, UploadResponse{
		JobID:    jobID,
		AudioKey: key,
		Status:   "queued",
	})
}

// sanitizeFilename strips path components and characters that would break
// archive keys.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." || name == ".." {
		return "audio"
	}
	return name
}
