package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/utility-explorer/intelligence/internal/agent"
	"github.com/utility-explorer/intelligence/internal/observability"
)

// QueryAgent runs the full question pipeline.
type QueryAgent interface {
	Handle(ctx context.Context, question string) agent.Response
}

// QueryHandler handles natural-language query requests.
type QueryHandler struct {
	logger *observability.Logger
	agent  QueryAgent
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(logger *observability.Logger, agent QueryAgent) *QueryHandler {
	return &QueryHandler{logger: logger, agent: agent}
}

// QueryRequestDTO represents the API request for a question.
type QueryRequestDTO struct {
	Question string `json:"question"`
}

// Query answers one question.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqDTO QueryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if reqDTO.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required", "")
		return
	}

	resp := h.agent.Handle(ctx, reqDTO.Question)
	writeJSON(w, http.StatusOK, resp)
}
