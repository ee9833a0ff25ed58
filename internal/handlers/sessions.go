package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/synssins/homebox-companion/internal/apperrors"
	"github.com/synssins/homebox-companion/internal/models"
)

// HandleSessions serves /api/sessions: list and create.
func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		sessions, err := h.pipeline.ListSessions(r.Context())
		if err != nil {
			h.writeError(w, err)
			return
		}
		if sessions == nil {
			sessions = []*models.CaptureSession{}
		}
		h.writeJSON(w, sessions)
	case "POST":
		var request struct {
			Target   models.TargetConfig       `json:"target"`
			Settings models.ProcessingSettings `json:"settings"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			h.writeError(w, apperrors.Invalid("invalid JSON: "+err.Error()))
			return
		}
		session, err := h.pipeline.CreateSession(r.Context(), request.Target, request.Settings)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, session)
	default:
		h.methodNotAllowed(w)
	}
}

// HandleSessionDetail serves /api/sessions/{id} and its sub-resources:
// images, push and abandon.
func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" {
		h.writeError(w, apperrors.Invalid("session id is required"))
		return
	}

	switch action {
	case "":
		h.sessionDetail(w, r, sessionID)
	case "images":
		h.sessionImages(w, r, sessionID)
	case "push":
		if r.Method != "POST" {
			h.methodNotAllowed(w)
			return
		}
		session, err := h.pipeline.PushSession(r.Context(), sessionID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, session)
	case "abandon":
		if r.Method != "POST" {
			h.methodNotAllowed(w)
			return
		}
		session, err := h.pipeline.AbandonSession(r.Context(), sessionID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, session)
	default:
		h.writeError(w, apperrors.NotFound("resource", action))
	}
}

func (h *Handler) sessionDetail(w http.ResponseWriter, r *http.Request, sessionID string) {
	switch r.Method {
	case "GET":
	case "DELETE":
		if err := h.pipeline.DeleteSession(r.Context(), sessionID); err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, map[string]string{"status": "deleted"})
		return
	default:
		h.methodNotAllowed(w)
		return
	}
	session, err := h.pipeline.GetSession(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	images, err := h.pipeline.ListImages(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if images == nil {
		images = []*models.ImageRecord{}
	}
	h.writeJSON(w, map[string]any{
		"session": session,
		"images":  images,
	})
}
