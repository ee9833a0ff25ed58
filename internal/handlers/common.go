package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/synssins/homebox-companion/internal/apperrors"
	"github.com/synssins/homebox-companion/internal/capture"
	"github.com/synssins/homebox-companion/internal/chat"
)

// Handler holds the request-scoped dependencies. It is constructed by
// the composition root in cmd/serve and passed by reference; there is
// no package-level state.
type Handler struct {
	pipeline     *capture.Manager
	orchestrator *chat.Orchestrator
}

// New creates a handler over the pipeline and orchestrator.
func New(pipeline *capture.Manager, orchestrator *chat.Orchestrator) *Handler {
	return &Handler{
		pipeline:     pipeline,
		orchestrator: orchestrator,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// writeError maps typed outcomes to status codes. Only this boundary
// layer translates error kinds into HTTP.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Request failed", "err", err)
	} else {
		slog.Info("Request rejected", "status", status, "err", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": err.Error(),
		"kind":  string(apperrors.KindOf(err)),
	})
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
