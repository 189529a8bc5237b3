// Package server provides the HTTP API for Norma.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/norma/internal/config"
	"github.com/hyperjump/norma/internal/indexctx"
	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/search"
	"github.com/hyperjump/norma/internal/vigencia"
)

// Answerer answers a question, recursively or through the single pipeline.
type Answerer interface {
	Answer(ctx context.Context, req models.Request) (*models.Response, error)
}

// Retriever runs hybrid retrieval without generation.
type Retriever interface {
	Retrieve(ctx context.Context, q search.Query) (*search.Response, error)
}

// IndexStatus reports which artifacts are loaded.
type IndexStatus interface {
	Status(ctx context.Context) indexctx.Status
}

// Server is the HTTP server for the Norma API.
type Server struct {
	answerer  Answerer
	retriever Retriever
	registry  *vigencia.Registry
	index     IndexStatus
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. cfg may be nil; it
// only feeds the status endpoint and the listen address.
func NewServer(
	answerer Answerer,
	retriever Retriever,
	registry *vigencia.Registry,
	index IndexStatus,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		answerer:  answerer,
		retriever: retriever,
		registry:  registry,
		index:     index,
		config:    cfg,
		logger:    logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))
	r.Use(middleware.Compress(5))
	r.Use(s.logRequests)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Post("/search", s.handleSearch)
		r.Get("/status", s.handleStatus)
		r.Route("/normas", func(r chi.Router) {
			r.Get("/", s.handleListNormas)
			r.Post("/", s.handleCreateNorma)
			r.Get("/{id}", s.handleConsultNorma)
			r.Get("/{id}/report", s.handleNormaReport)
			r.Post("/{id}/derogation", s.handleDerogation)
			r.Post("/{id}/partial-derogations", s.handlePartialDerogation)
			r.Post("/{id}/modifications", s.handleModification)
		})
	})
	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/health", s.handleHealth)
	return r
}

// logRequests writes one zap line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) addr() string {
	host, port := "localhost", 8080
	if s.config != nil {
		host, port = s.config.Server.Host, s.config.Server.Port
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
