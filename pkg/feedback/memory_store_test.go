package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/qagraph/qagraph/pkg/state"
)

func TestMemoryStore_AppendAndListBySession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Append(ctx, &state.Feedback{ID: "f1", SessionID: "s1", Type: state.FeedbackUp, CreatedAt: base}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, &state.Feedback{ID: "f2", SessionID: "s1", Type: state.FeedbackDown, CreatedAt: base.Add(time.Hour)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, &state.Feedback{ID: "f3", SessionID: "s2", Type: state.FeedbackUp, CreatedAt: base}); err != nil {
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

func TestMemoryStore_Analytics(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	day1 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	records := []*state.Feedback{
		{ID: "f1", SessionID: "s1", RoutingDecision: "calculator", Type: state.FeedbackUp, CreatedAt: day1},
		{ID: "f2", SessionID: "s1", RoutingDecision: "calculator", Type: state.FeedbackDown, CreatedAt: day1},
		{ID: "f3", SessionID: "s1", RoutingDecision: "rag", Type: state.FeedbackUp, CreatedAt: day2},
	}
	for _, fb := range records {
		if err := s.Append(ctx, fb); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	counts, err := s.Analytics(ctx, day1.Add(-time.Hour), day2.Add(time.Hour))
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("expected 2 buckets, got %d: %+v", len(counts), counts)
	}

	var calc, rag *DailyCount
	for i := range counts {
		switch counts[i].RoutingDecision {
		case "calculator":
			calc = &counts[i]
		case "rag":
			rag = &counts[i]
		}
	}
	if calc == nil || calc.Up != 1 || calc.Down != 1 {
		t.Fatalf("expected calculator bucket up=1 down=1, got %+v", calc)
	}
	if rag == nil || rag.Up != 1 || rag.Down != 0 {
		t.Fatalf("expected rag bucket up=1 down=0, got %+v", rag)
	}
}

func TestMemoryStore_AnalyticsExcludesOutOfRange(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	early := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Append(ctx, &state.Feedback{ID: "f1", SessionID: "s1", RoutingDecision: "rag", Type: state.FeedbackUp, CreatedAt: early}); err != nil {
		t.Fatalf("append: %v", err)
	}

	counts, err := s.Analytics(ctx, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if len(counts) != 0 {
		t.Fatalf("expected no buckets for out-of-range feedback, got %+v", counts)
	}
}
