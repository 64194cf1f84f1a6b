package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/taoeli/maxlink/internal/database/repositories"
	"github.com/taoeli/maxlink/internal/modules/trajectory"
	"github.com/taoeli/maxlink/internal/services"
)

// Config holds server configuration. Simulation is required; Runs,
// Diagnostics, and History may be nil, in which case the endpoints backed
// by them answer 404.
type Config struct {
	Port        int
	Log         zerolog.Logger
	Simulation  *services.SimulationService
	Runs        *repositories.RunRepository
	Diagnostics *repositories.DiagnosticsRepository
	History     *trajectory.HistoryDB
}

// Server exposes simulation progress and diagnostics over HTTP. It is
// read-only: the tick loop is never driven through it.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	sim     *services.SimulationService
	runs    *repositories.RunRepository
	diags   *repositories.DiagnosticsRepository
	history *trajectory.HistoryDB
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "server").Logger(),
		sim:     cfg.Simulation,
		runs:    cfg.Runs,
		diags:   cfg.Diagnostics,
		history: cfg.History,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Route("/molecules", func(r chi.Router) {
			r.Get("/", s.handleListMolecules)
			r.Get("/{id}", s.handleMolecule)
			r.Get("/{id}/trajectory", s.handleMoleculeTrajectory)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/latest", s.handleLatestRun)
			r.Get("/{id}/summary", s.handleRunSummary)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request")
	})
}
