package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/synssins/homebox-companion/internal/apperrors"
)

// HandleChat serves /api/chat/{session}/...: message send (streamed),
// history and cancel.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/chat/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" {
		h.writeError(w, apperrors.Invalid("chat session id is required"))
		return
	}

	switch action {
	case "messages":
		if r.Method != "POST" {
			h.methodNotAllowed(w)
			return
		}
		h.sendMessage(w, r, sessionID)
	case "history":
		if r.Method != "GET" {
			h.methodNotAllowed(w)
			return
		}
		h.writeJSON(w, map[string]any{
			"state":    h.orchestrator.SessionState(sessionID),
			"messages": h.orchestrator.History(sessionID),
		})
	case "cancel":
		if r.Method != "POST" {
			h.methodNotAllowed(w)
			return
		}
		if err := h.orchestrator.Cancel(sessionID); err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, map[string]string{"status": "cancelled"})
	default:
		h.writeError(w, apperrors.NotFound("resource", action))
	}
}

// sendMessage starts a generation and streams its events as
// server-sent events until the loop emits done or error.
func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request, sessionID string) {
	var request struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, apperrors.Invalid("invalid JSON: "+err.Error()))
		return
	}

	events, err := h.orchestrator.SendMessage(r.Context(), sessionID, request.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, apperrors.Internal(nil))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			slog.Error("Unable to encode event", "session_id", sessionID, "err", err)
			continue
		}
		if _, err := w.Write([]byte("event: " + string(event.Kind) + "\ndata: " + string(payload) + "\n\n")); err != nil {
			slog.Warn("Event stream client gone", "session_id", sessionID, "err", err)
			return
		}
		flusher.Flush()
	}
}

// HandleApprovals serves POST /api/approvals/{id}: resolve one pending
// approval.
func (h *Handler) HandleApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.methodNotAllowed(w)
		return
	}

	approvalID := strings.TrimPrefix(r.URL.Path, "/api/approvals/")
	if approvalID == "" {
		h.writeError(w, apperrors.Invalid("approval id is required"))
		return
	}

	var request struct {
		Approved bool `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, apperrors.Invalid("invalid JSON: "+err.Error()))
		return
	}

	approval, err := h.orchestrator.ResolveApproval(approvalID, request.Approved)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, approval)
}
