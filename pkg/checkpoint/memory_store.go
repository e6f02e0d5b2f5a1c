package checkpoint

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/qagraph/qagraph/pkg/state"
)

// MemoryStore implements Store in-process, for tests and single-binary
// deployments. Every read/write round-trips through JSON so callers can
// never mutate stored state through an aliased pointer.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, sessionID string, s *state.AgentState) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := int64(1)
	if existing, ok := m.records[sessionID]; ok {
		next = existing.Sequence + 1
	}

	m.records[sessionID] = &Record{
		SessionID: sessionID,
		Sequence:  next,
		State:     deepCopyState(s),
		UpdatedAt: time.Now().UTC(),
	}
	return next, nil
}

// LoadLatest implements Store.
func (m *MemoryStore) LoadLatest(_ context.Context, sessionID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	out.State = deepCopyState(rec.State)
	return &out, nil
}

// ListSessions implements Store.
func (m *MemoryStore) ListSessions(_ context.Context, since time.Time, limit int) ([]SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []SessionSummary
	for id, rec := range m.records {
		if rec.UpdatedAt.Before(since) {
			continue
		}
		summary := ""
		if rec.State != nil {
			summary = rec.State.Summary
		}
		out = append(out, SessionSummary{
			SessionID:   id,
			Summary:     truncate(summary, summaryTruncateLen),
			LastUpdated: rec.UpdatedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdated.After(out[j].LastUpdated) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteSession implements Store.
func (m *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, sessionID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

func deepCopyState(s *state.AgentState) *state.AgentState {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return s.Clone()
	}
	var out state.AgentState
	if err := json.Unmarshal(data, &out); err != nil {
		return s.Clone()
	}
	return &out
}
