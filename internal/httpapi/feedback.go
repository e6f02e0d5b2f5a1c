package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/qagraph/qagraph/pkg/state"
)

type feedbackRequest struct {
	SessionID         string `json:"session_id"`
	MessageIndex      int    `json:"message_index"`
	FeedbackType      string `json:"feedback_type"`
	UserQuery         string `json:"user_query"`
	AssistantResponse string `json:"assistant_response"`
	RoutingDecision   string `json:"routing_decision,omitempty"`
	Intent            string `json:"intent,omitempty"`
	ModelUsed         string `json:"model_used,omitempty"`
}

type feedbackResponse struct {
	Success    bool   `json:"success"`
	FeedbackID string `json:"feedback_id"`
}

// handleAppendFeedback implements POST /api/feedback.
func (h *Handler) handleAppendFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	ftype := state.FeedbackType(req.FeedbackType)
	if ftype != state.FeedbackUp && ftype != state.FeedbackDown {
		writeError(w, http.StatusBadRequest, "feedback_type must be \"up\" or \"down\"")
		return
	}

	fb := &state.Feedback{
		ID:                uuid.New().String(),
		SessionID:         req.SessionID,
		MessageIndex:      req.MessageIndex,
		Type:              ftype,
		UserQuery:         req.UserQuery,
		AssistantResponse: req.AssistantResponse,
		RoutingDecision:   req.RoutingDecision,
		Intent:            req.Intent,
		ModelUsed:         req.ModelUsed,
		CreatedAt:         time.Now().UTC(),
	}

	if err := h.feedback.Append(r.Context(), fb); err != nil {
		h.logger.Error("httpapi: append feedback failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record feedback")
		return
	}
	writeJSON(w, http.StatusOK, feedbackResponse{Success: true, FeedbackID: fb.ID})
}

type toolBreakdown struct {
	RoutingDecision string `json:"routing_decision"`
	Up              int    `json:"up"`
	Down            int    `json:"down"`
}

type feedbackAnalyticsResponse struct {
	Success          bool            `json:"success"`
	Total            int             `json:"total"`
	ThumbsUp         int             `json:"thumbs_up"`
	ThumbsDown       int             `json:"thumbs_down"`
	SatisfactionRate float64         `json:"satisfaction_rate"`
	ByRoutingDecision []toolBreakdown `json:"by_routing_decision"`
}

// handleFeedbackAnalytics implements GET /api/analytics/feedback,
// optionally scoped by start_date (YYYY-MM-DD, UTC) and
// routing_decision query params.
func (h *Handler) handleFeedbackAnalytics(w http.ResponseWriter, r *http.Request) {
	since := time.Time{}
	if v := r.URL.Query().Get("start_date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
			return
		}
		since = parsed
	}
	routingFilter := r.URL.Query().Get("routing_decision")

	counts, err := h.feedback.Analytics(r.Context(), since, time.Now().UTC())
	if err != nil {
		h.logger.Error("httpapi: feedback analytics failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute analytics")
		return
	}

	byTool := make(map[string]*toolBreakdown)
	resp := feedbackAnalyticsResponse{Success: true}
	for _, c := range counts {
		if routingFilter != "" && c.RoutingDecision != routingFilter {
			continue
		}
		resp.ThumbsUp += c.Up
		resp.ThumbsDown += c.Down

		b, ok := byTool[c.RoutingDecision]
		if !ok {
			b = &toolBreakdown{RoutingDecision: c.RoutingDecision}
			byTool[c.RoutingDecision] = b
		}
		b.Up += c.Up
		b.Down += c.Down
	}
	resp.Total = resp.ThumbsUp + resp.ThumbsDown
	if resp.Total > 0 {
		resp.SatisfactionRate = float64(resp.ThumbsUp) / float64(resp.Total)
	}
	for _, b := range byTool {
		resp.ByRoutingDecision = append(resp.ByRoutingDecision, *b)
	}

	writeJSON(w, http.StatusOK, resp)
}
