package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-social/kestrel/internal/config"
	"github.com/opensource-social/kestrel/internal/domain"
	"github.com/opensource-social/kestrel/internal/score"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, c domain.Cache, bus domain.EventBus, scorer *score.Engine,
	audienceCfg *config.Store[domain.AudienceQualityParams],
	hopsCfg *config.Store[domain.HopsParams],
	scoreCfg *config.Store[domain.TwitterScoreParams],
	version string) *Server {
	handler := NewHandler(repo, c, bus, scorer, audienceCfg, hopsCfg, scoreCfg, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Engine routes
	router.Route("/api/connections", func(r chi.Router) {
		// Persisted results and named graph snapshots
		r.Get("/results/{engine}/{accountID}", handler.GetResult)
		r.Put("/graphs/{id}", handler.PutGraph)
		r.Get("/graphs/{id}", handler.GetGraph)

		// Admin configuration
		r.Get("/admin/{engine}/config", handler.AdminGetConfig)
		r.Patch("/admin/{engine}/config", handler.AdminPatchConfig)
		r.Get("/admin/{engine}/config/history", handler.ConfigHistory)

		// Async scoring intake
		r.Post("/twitter-score/async", handler.EnqueueScore)

		// Per-engine compute, batch and introspection
		r.Post("/{engine}", handler.Compute)
		r.Post("/{engine}/batch", handler.Batch)
		r.Get("/{engine}/info", handler.Info)
		r.Get("/{engine}/mock", handler.Mock)
		r.Get("/{engine}/config", handler.GetConfig)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
