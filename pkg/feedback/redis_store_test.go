package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/qagraph/qagraph/pkg/state"
)

func setupMiniredisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client, "test:")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStore_AppendAndListBySession(t *testing.T) {
	ctx := context.Background()
	s := setupMiniredisStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Append(ctx, &state.Feedback{ID: "f1", SessionID: "s1", Type: state.FeedbackUp, CreatedAt: base}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, &state.Feedback{ID: "f2", SessionID: "s1", Type: state.FeedbackDown, CreatedAt: base.Add(time.Hour)}); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.ListBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "f1" || got[1].ID != "f2" {
		t.Fatalf("expected [f1, f2] in order, got %+v", got)
	}
}

func TestRedisStore_Analytics(t *testing.T) {
	ctx := context.Background()
	s := setupMiniredisStore(t)

	day1 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	records := []*state.Feedback{
		{ID: "f1", SessionID: "s1", RoutingDecision: "calculator", Type: state.FeedbackUp, CreatedAt: day1},
		{ID: "f2", SessionID: "s1", RoutingDecision: "calculator", Type: state.FeedbackDown, CreatedAt: day1},
	}
	for _, fb := range records {
		if err := s.Append(ctx, fb); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	counts, err := s.Analytics(ctx, day1.Add(-time.Hour), day1.Add(time.Hour))
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if len(counts) != 1 || counts[0].Up != 1 || counts[0].Down != 1 {
		t.Fatalf("expected one bucket up=1 down=1, got %+v", counts)
	}
}
