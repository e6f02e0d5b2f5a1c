// Package session implements listing, fetching, and deleting
// conversation sessions, materializing chat history from the checkpoint
// store.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qagraph/qagraph/pkg/checkpoint"
	"github.com/qagraph/qagraph/pkg/state"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session: not found")

// zeroTime is passed to ListSessions so List has no lower bound.
var zeroTime = time.Time{}

// Summary is the list-view representation of a session, matching
// GET /api/sessions.
type Summary = checkpoint.SessionSummary

// Detail is the full materialized view of a session, matching
// GET /api/sessions/{id}.
type Detail struct {
	SessionID   string         `json:"session_id"`
	Sequence    int64          `json:"sequence"`
	ChatHistory []state.Message `json:"chat_history"`
	Summary     string         `json:"summary"`
}

// Service is the Session Service: a read/delete view over the
// checkpoint store's per-session state, plus whatever convenience
// operations the HTTP API needs. Session creation happens implicitly
// the first time a worker checkpoints a new session ID; there is no
// explicit Create here.
type Service interface {
	// List returns session summaries ordered most-recently-updated
	// first, optionally capped at limit (0 = unlimited).
	List(ctx context.Context, limit int) ([]Summary, error)

	// Get materializes a session's full chat history and summary.
	// Returns ErrNotFound if the session has no checkpoint.
	Get(ctx context.Context, sessionID string) (*Detail, error)

	// Delete removes a session's checkpoint. Idempotent: deleting a
	// session that does not exist (or was already deleted) is not an
	// error, matching the checkpoint store's DeleteSession semantics.
	Delete(ctx context.Context, sessionID string) error
}

type service struct {
	store checkpoint.Store
}

// NewService builds a Session Service backed by store.
func NewService(store checkpoint.Store) Service {
	return &service{store: store}
}

// List implements Service.
func (s *service) List(ctx context.Context, limit int) ([]Summary, error) {
	summaries, err := s.store.ListSessions(ctx, zeroTime, limit)
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	return summaries, nil
}

// Get implements Service.
func (s *service) Get(ctx context.Context, sessionID string) (*Detail, error) {
	rec, err := s.store.LoadLatest(ctx, sessionID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: get: %w", err)
	}

	detail := &Detail{SessionID: sessionID, Sequence: rec.Sequence}
	if rec.State != nil {
		detail.ChatHistory = rec.State.ChatHistory
		detail.Summary = rec.State.Summary
	}
	return detail, nil
}

// Delete implements Service.
func (s *service) Delete(ctx context.Context, sessionID string) error {
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}
