package api

import (
	"net/http"
	"time"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/store"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/transcribe"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/watch"
)

// WatcherStatusSource exposes the drop-directory watcher state.
// Satisfied by *watch.Watcher.
type WatcherStatusSource interface {
	Status() watch.Status
}

type HealthResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Checks        map[string]string      `json:"checks"`
	Queue         *transcribe.QueueStats `json:"queue,omitempty"`
	Watcher       *watch.Status          `json:"watcher,omitempty"`
}

type HealthHandler struct {
	db        *store.DB
	pool      *transcribe.WorkerPool
	watcher   WatcherStatusSource
	version   string
	startTime time.Time
}

func NewHealthHandler(db *store.DB, pool *transcribe.WorkerPool, watcher WatcherStatusSource, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		pool:      pool,
		watcher:   watcher,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Database check
	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			checks["database"] = "error"
			status = "degraded"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}

	// Transcription queue check. A full queue means uploads are being
	// rejected, which is worth surfacing.
	if h.pool != nil {
		stats := h.pool.Stats()
		resp.Queue = &stats
		if stats.Capacity > 0 && stats.Pending >= stats.Capacity {
			checks["queue"] = "full"
			if status == "healthy" {
				status = "degraded"
				resp.Status = status
			}
		} else {
			checks["queue"] = "ok"
		}
	} else {
		checks["queue"] = "not_configured"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		resp.Status = status
	}

	// File watcher check
	if h.watcher != nil {
		ws := h.watcher.Status()
		resp.Watcher = &ws
		checks["file_watcher"] = ws.Status
	}

	WriteJSON(w, httpStatus, resp)
}
