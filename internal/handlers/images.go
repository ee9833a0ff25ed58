package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/synssins/homebox-companion/internal/apperrors"
)

// maxImageBytes caps uploads at 10MB.
const maxImageBytes = 10 * 1024 * 1024

// sessionImages serves POST /api/sessions/{id}/images: upload one
// photo and queue it for extraction.
func (h *Handler) sessionImages(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != "POST" {
		h.methodNotAllowed(w)
		return
	}

	imageData, err := readImage(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	rec, err := h.pipeline.AddImage(r.Context(), sessionID, imageData)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Extraction runs in the background; the record starts pending.
	h.pipeline.EnqueueImage(rec.ID)
	h.writeJSON(w, rec)
}

func readImage(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, apperrors.Invalid("failed to read file: " + err.Error())
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
		if err != nil {
			return nil, apperrors.Invalid("failed to read file contents: " + err.Error())
		}
		if len(data) >= maxImageBytes {
			return nil, apperrors.Invalid("file too large (max 10MB)")
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImageBytes))
	if err != nil {
		return nil, apperrors.Invalid("failed to read request body: " + err.Error())
	}
	if len(data) >= maxImageBytes {
		return nil, apperrors.Invalid("image too large (max 10MB)")
	}
	return data, nil
}

// HandleImageDetail serves /api/images/{id}: query, edit and process.
func (h *Handler) HandleImageDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/images/")
	imageID, action, _ := strings.Cut(rest, "/")
	if imageID == "" {
		h.writeError(w, apperrors.Invalid("image id is required"))
		return
	}

	switch action {
	case "":
		switch r.Method {
		case "GET":
			rec, err := h.pipeline.GetImage(r.Context(), imageID)
			if err != nil {
				h.writeError(w, err)
				return
			}
			h.writeJSON(w, rec)
		case "PATCH":
			var changes map[string]string
			if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
				h.writeError(w, apperrors.Invalid("invalid JSON: "+err.Error()))
				return
			}
			rec, err := h.pipeline.EditResult(r.Context(), imageID, changes)
			if err != nil {
				h.writeError(w, err)
				return
			}
			h.writeJSON(w, rec)
		default:
			h.methodNotAllowed(w)
		}
	case "process":
		if r.Method != "POST" {
			h.methodNotAllowed(w)
			return
		}
		// Retry path: an explicit process request runs synchronously so
		// the caller sees the outcome.
		if err := h.pipeline.ProcessImage(r.Context(), imageID); err != nil {
			h.writeError(w, err)
			return
		}
		rec, err := h.pipeline.GetImage(r.Context(), imageID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, rec)
	default:
		h.writeError(w, apperrors.NotFound("resource", action))
	}
}
