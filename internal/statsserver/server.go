// Package statsserver exposes a small HTTP introspection API over
// internal/jobs' run registry: submit a hypergraph for partitioning, poll
// its status, fetch the committed objective once it finishes. Grounded on
// the teacher's graph-clustering-backend/src2 api+main split (gorilla/mux
// router, a middleware stack, graceful shutdown on SIGINT/SIGTERM), wired
// to github.com/rs/cors instead of the teacher's hand-rolled
// CORSMiddleware -- the same concern, the dependency pack's actual
// library for it.
package statsserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-clustering-service/internal/jobs"
)

// Server wraps an *http.Server preconfigured with routes and middleware.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

// New builds a Server listening on addr, backed by registry.
func New(addr string, registry *jobs.Registry, logger zerolog.Logger) *Server {
	router := mux.NewRouter()
	handlers := NewHandlers(registry)
	SetupRoutes(router, handlers)

	router.Use(LoggingMiddleware(logger))
	router.Use(RecoveryMiddleware(logger))

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}).Handler(router)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// ListenAndServe starts the server; it blocks until Shutdown is called or
// the listener fails.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("stats server starting")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("stats server shutting down")
	return s.httpServer.Shutdown(ctx)
}
