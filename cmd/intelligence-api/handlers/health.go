package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/utility-explorer/intelligence/internal/observability"
)

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	logger *observability.Logger
	db     *sql.DB
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(logger *observability.Logger, db *sql.DB) *HealthHandler {
	return &HealthHandler{logger: logger, db: db}
}

// Health performs a trivial database round trip and reports status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "unconfigured"
	if h.db != nil {
		var one int
		if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			dbStatus = "error: " + err.Error()
		} else {
			dbStatus = "connected"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"service":  "utility-intelligence",
		"database": dbStatus,
	})
}
