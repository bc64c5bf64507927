// Package server provides the HTTP API for custsim.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/custsim/internal/config"
	"github.com/hyperjump/custsim/internal/ingest"
	"github.com/hyperjump/custsim/internal/keyword"
	"github.com/hyperjump/custsim/internal/search"
	"github.com/hyperjump/custsim/internal/storage"
)

// Server is the HTTP server for the custsim API.
type Server struct {
	index    *search.Index
	ingester *ingest.Ingester
	keywords keyword.KeywordIndex
	storage  *storage.SQLiteStorage
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. keywords and store may be nil,
// which disables customer lookup and the disk usage figure respectively.
func NewServer(
	index *search.Index,
	ingester *ingest.Ingester,
	keywords keyword.KeywordIndex,
	store *storage.SQLiteStorage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		index:    index,
		ingester: ingester,
		keywords: keywords,
		storage:  store,
		config:   cfg,
		logger:   logger,
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/customers", s.handleIngest)
		r.Get("/customers/lookup", s.handleLookup)
		r.Get("/customers/{id}", s.handleGetCustomer)
		r.Get("/customers/{id}/context", s.handleGetContext)
		r.Post("/search", s.handleSearch)
		r.Get("/ingestions", s.handleListIngestions)
		r.Get("/ingestions/{id}", s.handleGetIngestion)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
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
