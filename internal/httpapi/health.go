package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/qagraph/qagraph/internal/adapters"
	"github.com/qagraph/qagraph/internal/observability"
)

var errNotConfigured = errors.New("not configured")

// registerHealthChecks wires the named backend probes GET /health
// reports: llm, search, retrieval, broker, store.
func (h *Handler) registerHealthChecks() {
	h.health.RegisterCheck(observability.PingCheck())

	h.health.RegisterCheck(&observability.HealthCheck{
		Name:     "llm",
		Critical: true,
		CheckFunc: func(ctx context.Context) error {
			if h.llm == nil {
				return errNotConfigured
			}
			return nil
		},
	})

	h.health.RegisterCheck(&observability.HealthCheck{
		Name:     "search",
		Critical: false,
		CheckFunc: func(ctx context.Context) error {
			if !h.adapters.Configured(adapters.KindWebSearch) {
				return errNotConfigured
			}
			return nil
		},
	})

	h.health.RegisterCheck(&observability.HealthCheck{
		Name:     "retrieval",
		Critical: false,
		CheckFunc: func(ctx context.Context) error {
			if !h.adapters.Configured(adapters.KindInternalRetrieval) {
				return errNotConfigured
			}
			return nil
		},
	})

	h.health.RegisterCheck(&observability.HealthCheck{
		Name:     "broker",
		Critical: true,
		CheckFunc: func(ctx context.Context) error {
			if h.broker == nil {
				return errNotConfigured
			}
			return nil
		},
	})

	h.health.RegisterCheck(&observability.HealthCheck{
		Name:     "store",
		Critical: true,
		CheckFunc: func(ctx context.Context) error {
			_, err := h.sessions.List(ctx, 1)
			return err
		},
	})
}

type healthResponse struct {
	Status   string            `json:"status"`
	Backends map[string]string `json:"backends"`
}

// handleHealth implements GET /health, remapping the generic
// HealthChecker result into a flat backends shape.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := h.health.Check(r.Context())

	backends := make(map[string]string, len(resp.Checks))
	for name, status := range resp.Checks {
		if name == "ping" {
			continue
		}
		backends[name] = string(status.Status)
	}

	status := http.StatusOK
	if resp.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: string(resp.Status), Backends: backends})
}
