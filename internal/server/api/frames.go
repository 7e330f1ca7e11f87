package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/posetrack/internal/store"
)

// FramesHandler serves the recorded frames of a session.
type FramesHandler struct {
	store *store.Store
}

// NewFramesHandler creates a new FramesHandler with the given store.
func NewFramesHandler(s *store.Store) *FramesHandler {
	return &FramesHandler{store: s}
}

type posesResponse struct {
	Samples []store.PoseSample `json:"samples"`
}

type skeletonsResponse struct {
	Frames []store.SkeletonFrame `json:"frames"`
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: /api/sessions/{id}/poses and /api/sessions/{id}/skeletons
func (h *FramesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.Split(path, "/")

	if len(parts) != 2 || (parts[1] != "poses" && parts[1] != "skeletons") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := parts[0]
	if _, err := h.store.Sessions().GetByID(sessionID); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to verify session")
		return
	}

	if parts[1] == "poses" {
		h.poses(w, sessionID)
		return
	}
	h.skeletons(w, sessionID)
}

// poses handles GET /api/sessions/{id}/poses
func (h *FramesHandler) poses(w http.ResponseWriter, sessionID string) {
	samples, err := h.store.Frames().Poses(sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pose samples")
		return
	}
	if samples == nil {
		samples = []store.PoseSample{}
	}
	writeJSON(w, http.StatusOK, posesResponse{Samples: samples})
}

// skeletons handles GET /api/sessions/{id}/skeletons
func (h *FramesHandler) skeletons(w http.ResponseWriter, sessionID string) {
	frames, err := h.store.Frames().Skeletons(sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list skeleton frames")
		return
	}
	if frames == nil {
		frames = []store.SkeletonFrame{}
	}
	writeJSON(w, http.StatusOK, skeletonsResponse{Frames: frames})
}
