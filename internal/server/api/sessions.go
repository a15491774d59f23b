package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/roadpilot/internal/store"
)

// DefaultFrameLimit caps /frames responses when no limit is given.
const DefaultFrameLimit = 500

// SessionHandler serves sessions and their frames.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

type listSessionsResponse struct {
	Sessions []*store.Session `json:"sessions"`
}

type listFramesResponse struct {
	SessionID string        `json:"session_id"`
	Frames    []store.Frame `json:"frames"`
}

// ServeHTTP routes /api/sessions, /api/sessions/{id} and /api/sessions/{id}/frames.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.list(w)
		return
	}

	id, rest, _ := strings.Cut(path, "/")
	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.get(w, id)
	case rest == "" && r.Method == http.MethodDelete:
		h.delete(w, id)
	case rest == "frames" && r.Method == http.MethodGet:
		h.frames(w, r, id)
	case rest == "" || rest == "frames":
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *SessionHandler) list(w http.ResponseWriter) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}
	writeJSON(w, http.StatusOK, listSessionsResponse{Sessions: sessions})
}

func (h *SessionHandler) get(w http.ResponseWriter, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) delete(w http.ResponseWriter, id string) {
	err := h.store.Sessions().Delete(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) frames(w http.ResponseWriter, r *http.Request, id string) {
	limit := DefaultFrameLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	frames, err := h.store.Frames().ListBySession(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list frames")
		return
	}
	if frames == nil {
		frames = []store.Frame{}
	}
	writeJSON(w, http.StatusOK, listFramesResponse{SessionID: id, Frames: frames})
}
