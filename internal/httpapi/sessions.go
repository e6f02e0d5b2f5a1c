package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/qagraph/qagraph/pkg/session"
)

type sessionListResponse struct {
	Success  bool              `json:"success"`
	Sessions []session.Summary `json:"sessions"`
}

// handleListSessions implements GET /api/sessions.
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	sessions, err := h.sessions.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("httpapi: list sessions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, sessionListResponse{Success: true, Sessions: sessions})
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type sessionDetailResponse struct {
	Success bool              `json:"success"`
	History []historyMessage  `json:"history"`
	Summary string            `json:"summary"`
}

// handleGetSession implements GET /api/sessions/{id}.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	detail, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("httpapi: get session failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	history := make([]historyMessage, 0, len(detail.ChatHistory))
	for _, m := range detail.ChatHistory {
		history = append(history, historyMessage{Role: string(m.Role), Content: m.Content})
	}
	writeJSON(w, http.StatusOK, sessionDetailResponse{Success: true, History: history, Summary: detail.Summary})
}

// handleDeleteSession implements DELETE /api/sessions/{id}. The delete
// is idempotent: it returns 200 whether or not the session existed, and
// 500 only when the store itself fails.
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.sessions.Delete(r.Context(), id); err != nil {
		h.logger.Error("httpapi: delete session failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "session deleted"})
}
