package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/utility-explorer/intelligence/internal/embedding"
	"github.com/utility-explorer/intelligence/internal/observability"
	"github.com/utility-explorer/intelligence/internal/storage"
)

// ChunkWriter persists knowledge chunks.
type ChunkWriter interface {
	Create(ctx context.Context, chunk *storage.KnowledgeChunk) error
}

// KnowledgeHandler handles knowledge ingestion from external
// collaborators.
type KnowledgeHandler struct {
	logger   *observability.Logger
	chunks   ChunkWriter
	embedder embedding.Embedder
}

// NewKnowledgeHandler creates a new knowledge handler.
func NewKnowledgeHandler(logger *observability.Logger, chunks ChunkWriter, embedder embedding.Embedder) *KnowledgeHandler {
	return &KnowledgeHandler{logger: logger, chunks: chunks, embedder: embedder}
}

// IngestRequestDTO represents a knowledge ingestion request.
type IngestRequestDTO struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// Ingest embeds and stores one knowledge chunk.
func (h *KnowledgeHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqDTO IngestRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if reqDTO.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required", "")
		return
	}

	vector, err := h.embedder.EmbedSingle(ctx, reqDTO.Content)
	if err != nil {
		h.logger.Error().Err(err).Msg("knowledge embedding failed")
		writeError(w, http.StatusInternalServerError, "embedding failed", err.Error())
		return
	}

	chunk := &storage.KnowledgeChunk{
		Content:   reqDTO.Content,
		Source:    reqDTO.Source,
		Embedding: embedding.Float64s(vector),
	}
	if err := h.chunks.Create(ctx, chunk); err != nil {
		h.logger.Error().Err(err).Msg("knowledge chunk write failed")
		writeError(w, http.StatusInternalServerError, "storage failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Knowledge ingested and vectorized.",
	})
}
