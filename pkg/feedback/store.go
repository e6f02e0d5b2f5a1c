// Package feedback persists user thumbs-up/thumbs-down ratings on
// assistant responses and aggregates them for the analytics endpoint.
package feedback

import (
	"context"
	"errors"
	"time"

	"github.com/qagraph/qagraph/pkg/state"
)

// ErrNotFound is returned when a feedback record does not exist.
var ErrNotFound = errors.New("feedback: not found")

// DailyCount is one routing_decision/date bucket in the analytics
// aggregation.
type DailyCount struct {
	Date            string `json:"date"` // YYYY-MM-DD, UTC
	RoutingDecision string `json:"routing_decision"`
	Up              int    `json:"up"`
	Down            int    `json:"down"`
}

// Store persists feedback records and serves the aggregated view.
type Store interface {
	// Append records fb. Feedback is immutable once recorded: there is
	// no Update operation.
	Append(ctx context.Context, fb *state.Feedback) error

	// ListBySession returns all feedback left on a session, oldest
	// first.
	ListBySession(ctx context.Context, sessionID string) ([]*state.Feedback, error)

	// Analytics aggregates feedback counts by routing_decision and UTC
	// calendar date within [since, until).
	Analytics(ctx context.Context, since, until time.Time) ([]DailyCount, error)

	Close() error
}

func bucketKey(routingDecision, date string) string { return date + "|" + routingDecision }
