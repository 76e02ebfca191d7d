package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/transcript-editor/internal/config"
	"github.com/snarg/transcript-editor/internal/metrics"
)

// ServerOptions holds the dependencies wired into the HTTP server.
type ServerOptions struct {
	Config      *config.Config
	Store       TranscriptStore
	Events      EventSource
	Health      HealthDeps
	OpenAPISpec []byte
	Version     string
	StartTime   time.Time
	Log         zerolog.Logger
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// NewRouter builds the chi router with all middleware and routes.
func NewRouter(opts ServerOptions) chi.Router {
	cfg := opts.Config
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	r.Use(metrics.InstrumentHandler)
	r.Use(CORSWithOrigins(cfg.CORSOrigins))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		health := NewHealthHandler(opts.Store, opts.Health, opts.Version, opts.StartTime)
		r.Get("/health", health.ServeHTTP)

		if len(opts.OpenAPISpec) > 0 {
			r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/yaml")
				w.Write(opts.OpenAPISpec)
			})
		}

		transcripts := NewTranscriptHandler(opts.Store)
		events := NewEventsHandler(opts.Events)
		ws := NewWebSocketHandler(opts.Events, cfg.CORSOrigins)

		// Reads are unauthenticated.
		transcripts.Routes(r)
		r.Get("/transcript/events", events.StreamEvents)
		r.Get("/transcript/ws", ws.ServeHTTP)

		// Mutations require the bearer token when AUTH_TOKEN is set.
		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(cfg.AuthToken))
			transcripts.WriteRoutes(r)
		})
	})

	return r
}

func NewServer(opts ServerOptions) *Server {
	cfg := opts.Config
	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      NewRouter(opts),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: opts.Log,
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
