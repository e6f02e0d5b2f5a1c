// Package checkpoint persists AgentState snapshots keyed by session,
// enforcing the monotonic-sequence ordering the graph runtime and HTTP
// API rely on: the latest checkpoint for a session is always the
// canonical view, and a stale write never clobbers a newer one.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/qagraph/qagraph/pkg/state"
)

// ErrNotFound is returned when a session has no checkpoint.
var ErrNotFound = errors.New("checkpoint: session not found")

// ErrStaleWrite is returned by Save when a newer checkpoint already
// exists for the session; the caller's write is rejected rather than
// silently discarded.
var ErrStaleWrite = errors.New("checkpoint: stale write rejected")

// Record is one persisted checkpoint document.
type Record struct {
	SessionID string
	Sequence  int64
	State     *state.AgentState
	UpdatedAt time.Time
}

// SessionSummary is the truncated, listing-friendly view of a session's
// latest checkpoint.
type SessionSummary struct {
	SessionID   string    `json:"session_id"`
	Summary     string    `json:"summary"`
	LastUpdated time.Time `json:"last_updated"`
}

// summaryTruncateLen bounds SessionSummary.Summary for the list endpoint
// to a short preview per session.
const summaryTruncateLen = 200

// Store is the pluggable persistence backend for checkpoints. It exposes
// exactly the operations the checkpoint store and session service need:
// put, get-latest-by-session, list-by-session-since, delete-by-session.
type Store interface {
	// Save writes the given state as the next checkpoint for sessionID.
	// It returns the newly assigned sequence. If a checkpoint with a
	// sequence >= the store's current sequence for this session is
	// concurrently written first, Save returns ErrStaleWrite.
	Save(ctx context.Context, sessionID string, s *state.AgentState) (int64, error)

	// LoadLatest returns the most recent checkpoint for sessionID, or
	// ErrNotFound if none exists.
	LoadLatest(ctx context.Context, sessionID string) (*Record, error)

	// ListSessions returns session summaries updated at or after since,
	// most recently updated first, capped at limit (0 means no cap).
	ListSessions(ctx context.Context, since time.Time, limit int) ([]SessionSummary, error)

	// DeleteSession removes all checkpoints for sessionID. It is
	// idempotent: deleting an already-deleted or unknown session
	// succeeds.
	DeleteSession(ctx context.Context, sessionID string) error

	// Close releases any resources held by the store.
	Close() error
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
