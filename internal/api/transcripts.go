package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/store"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/transcribe"
)

// TranscriptsHandler serves stored transcripts and queue state.
type TranscriptsHandler struct {
	db   *store.DB
	pool *transcribe.WorkerPool
}

func NewTranscriptsHandler(db *store.DB, pool *transcribe.WorkerPool) *TranscriptsHandler {
	return &TranscriptsHandler{db: db, pool: pool}
}

// Routes registers transcript routes on the given router.
func (h *TranscriptsHandler) Routes(r chi.Router) {
	r.Get("/api/v1/transcripts", h.List)
	r.Get("/api/v1/transcripts/search", h.Search)
	r.Get("/api/v1/queue", h.Queue)
}

// ListResponse wraps a page of transcripts.
type ListResponse struct {
	Transcripts []transcribe.Transcript `json:"transcripts"`
	Total       int64                   `json:"total"`
	Limit       int                     `json:"limit"`
	Offset      int                     `json:"offset"`
}

// List handles GET /api/v1/transcripts.
// Query params: source, since (RFC 3339), limit, offset.
func (h *TranscriptsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		WriteError(w, http.StatusServiceUnavailable, "transcript storage not configured")
		return
	}

	p, err := ParsePagination(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := store.ListFilter{Limit: p.Limit, Offset: p.Offset}
	if v, ok := QueryString(r, "source"); ok {
		filter.Source = v
	}
	if t, ok := QueryTime(r, "since"); ok {
		filter.Since = &t
	}

	transcripts, err := h.db.ListTranscripts(r.Context(), filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list transcripts")
		return
	}

	total, err := h.db.CountTranscripts(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to count transcripts")
		return
	}

	if transcripts == nil {
		transcripts = []transcribe.Transcript{}
	}
	WriteJSON(w, http.StatusOK, ListResponse{
		Transcripts: transcripts,
		Total:       total,
		Limit:       p.Limit,
		Offset:      p.Offset,
	})
}

// Search handles GET /api/v1/transcripts/search?q=...
func (h *TranscriptsHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		WriteError(w, http.StatusServiceUnavailable, "transcript storage not configured")
		return
	}

	q, ok := QueryString(r, "q")
	if !ok {
		WriteError(w, http.StatusBadRequest, "missing q parameter")
		return
	}

	p, err := ParsePagination(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	transcripts, err := h.db.SearchTranscripts(r.Context(), q, p.Limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "search failed")
		return
	}

	if transcripts == nil {
		transcripts = []transcribe.Transcript{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"transcripts": transcripts,
		"query":       q,
	})
}

// Queue handles GET /api/v1/queue.
func (h *TranscriptsHandler) Queue(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil {
		WriteError(w, http.StatusServiceUnavailable, "worker pool not running")
		return
	}
	WriteJSON(w, http.StatusOK, h.pool.Stats())
}
