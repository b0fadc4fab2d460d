// Package main provides the API router setup.
package main

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/utility-explorer/intelligence/cmd/intelligence-api/handlers"
	"github.com/utility-explorer/intelligence/cmd/intelligence-api/middleware"
	"github.com/utility-explorer/intelligence/internal/config"
	"github.com/utility-explorer/intelligence/internal/embedding"
	"github.com/utility-explorer/intelligence/internal/observability"
)

// Dependencies carries the shared services the handlers need.
type Dependencies struct {
	Agent    handlers.QueryAgent
	Chunks   handlers.ChunkWriter
	Embedder embedding.Embedder
	DB       *sql.DB
}

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config, deps *Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(chimiddleware.Timeout(cfg.Server.WriteTimeout))

	queryHandler := handlers.NewQueryHandler(logger, deps.Agent)
	knowledgeHandler := handlers.NewKnowledgeHandler(logger, deps.Chunks, deps.Embedder)
	healthHandler := handlers.NewHealthHandler(logger, deps.DB)

	r.Get("/health", healthHandler.Health)
	r.Post("/query", queryHandler.Query)
	r.Post("/ingest-knowledge", knowledgeHandler.Ingest)

	return r
}
