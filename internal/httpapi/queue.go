package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/qagraph/qagraph/pkg/broker"
	"github.com/qagraph/qagraph/pkg/state"
)

type queueRequest struct {
	Query          string `json:"query"`
	SessionID      string `json:"session_id"`
	TargetLanguage string `json:"target_language,omitempty"`
	Model          string `json:"model,omitempty"`
}

type queueResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	StreamURL string `json:"stream_url"`
}

// handleQueue implements POST /api/queue: 400 on a missing query, 503
// when the broker can't accept the job.
func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	job := &state.Job{
		RequestID:      newRequestID(),
		SessionID:      req.SessionID,
		Query:          req.Query,
		TargetLanguage: req.TargetLanguage,
		Model:          req.Model,
		EnqueuedAt:     time.Now().UTC(),
	}

	if err := h.broker.Enqueue(r.Context(), job); err != nil {
		if errors.Is(err, broker.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "broker unavailable")
			return
		}
		h.logger.Error("httpapi: enqueue failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "broker unavailable")
		return
	}

	writeJSON(w, http.StatusOK, queueResponse{
		Success:   true,
		RequestID: job.RequestID,
		StreamURL: "/api/stream/" + job.RequestID,
	})
}
