package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/qagraph/qagraph/pkg/state"
)

// handleStream implements GET /api/stream/{request_id}: replays
// buffered events then streams live ones, heartbeats every
// DefaultHeartbeatInterval while idle, and never blocks the worker on a
// slow or disconnected client.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "request_id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sub, err := h.broker.Subscribe(r.Context(), requestID)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown request_id")
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	var pendingNode string
	for {
		select {
		case <-r.Context().Done():
			return

		case ev, open := <-sub.Events():
			if !open {
				return
			}
			if err := writeWireEvent(w, ev, &pendingNode); err != nil {
				h.logger.Warn("httpapi: stream write failed", "request_id", requestID, "error", err)
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeWireEvent translates one internal state.Event into its SSE wire
// shape. A node/state_delta pair arrives as two internal events
// (EventNode then EventStateDelta); pendingNode remembers the node name
// until the paired delta lets the handler emit one combined
// `{"node":..., "state":...}` line.
func writeWireEvent(w io.Writer, ev *state.Event, pendingNode *string) error {
	switch ev.Kind {
	case state.EventConnected:
		return writeSSE(w, map[string]any{"event": "connected"})

	case state.EventNode:
		if p, ok := ev.Payload.(state.NodePayload); ok {
			*pendingNode = p.Name
		}
		return nil

	case state.EventStateDelta:
		name := *pendingNode
		*pendingNode = ""
		return writeSSE(w, map[string]any{"node": name, "state": ev.Payload})

	case state.EventError:
		p, _ := ev.Payload.(state.ErrorPayload)
		return writeSSE(w, map[string]any{"event": "error", "error": p.Error, "stage": p.Stage})

	case state.EventComplete:
		p, _ := ev.Payload.(state.CompletePayload)
		return writeSSE(w, map[string]any{"event": "complete", "state": p})

	default:
		return nil
	}
}

func writeSSE(w io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
