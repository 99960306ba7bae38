// Package server provides the HTTP API for dreamcache.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/dreamcache/internal/cache"
	"github.com/hyperjump/dreamcache/internal/config"
	"github.com/hyperjump/dreamcache/internal/store"
	"github.com/hyperjump/dreamcache/internal/vector"
)

// Server is the HTTP server for the dreamcache API.
type Server struct {
	orch     *cache.Orchestrator
	contents store.ContentStore
	index    vector.Index
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. The content store
// and index are only consulted for the status endpoint; all request traffic
// goes through the orchestrator.
func NewServer(
	orch *cache.Orchestrator,
	contents store.ContentStore,
	index vector.Index,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		orch:     orch,
		contents: contents,
		index:    index,
		config:   cfg,
		logger:   logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(180 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/suggest", s.handleSuggest)
	r.Post("/api/v1/images", s.handleImages)
	r.Get("/api/v1/prompts/search", s.handlePromptSearch)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
