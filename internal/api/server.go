package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/inspiralpatterns/fritz-speech-to-text/internal/config"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/metrics"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/output"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/store"
	"github.com/inspiralpatterns/fritz-speech-to-text/internal/transcribe"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the HTTP server exposes. Nil fields disable
// the corresponding endpoints gracefully.
type Deps struct {
	DB      *store.DB
	Pool    *transcribe.WorkerPool
	Archive Archive
	Bus     *output.EventBus
	Watcher WatcherStatusSource
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, deps Deps, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)

	// Health and metrics — no auth
	health := NewHealthHandler(deps.DB, deps.Pool, deps.Watcher, version, startTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))

		upload := NewUploadHandler(deps.Pool, deps.Archive, log)
		upload.Routes(r)

		transcripts := NewTranscriptsHandler(deps.DB, deps.Pool)
		transcripts.Routes(r)

		events := NewEventsHandler(deps.Bus)
		events.Routes(r)
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}

// Handler returns the underlying router, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}
