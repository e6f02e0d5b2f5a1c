package feedback

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/qagraph/qagraph/pkg/state"
)

// MemoryStore is an in-process Store, useful for tests and single-node
// deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*state.Feedback
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, fb *state.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *fb
	s.records = append(s.records, &cp)
	return nil
}

// ListBySession implements Store.
func (s *MemoryStore) ListBySession(_ context.Context, sessionID string) ([]*state.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*state.Feedback
	for _, fb := range s.records {
		if fb.SessionID == sessionID {
			cp := *fb
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Analytics implements Store.
func (s *MemoryStore) Analytics(_ context.Context, since, until time.Time) ([]DailyCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets := make(map[string]*DailyCount)
	for _, fb := range s.records {
		if fb.CreatedAt.Before(since) || !fb.CreatedAt.Before(until) {
			continue
		}
		date := fb.CreatedAt.UTC().Format("2006-01-02")
		key := bucketKey(fb.RoutingDecision, date)
		b, ok := buckets[key]
		if !ok {
			b = &DailyCount{Date: date, RoutingDecision: fb.RoutingDecision}
			buckets[key] = b
		}
		switch fb.Type {
		case state.FeedbackUp:
			b.Up++
		case state.FeedbackDown:
			b.Down++
		}
	}

	out := make([]DailyCount, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].RoutingDecision < out[j].RoutingDecision
	})
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
