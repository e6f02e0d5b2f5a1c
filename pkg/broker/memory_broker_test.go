package broker

import (
	"context"
	"testing"
	"time"

	"github.com/qagraph/qagraph/pkg/state"
)

func TestMemoryBroker_EnqueueClaimFIFO(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker(0, 0)
	defer b.Close()

	if err := b.Enqueue(ctx, &state.Job{RequestID: "r1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := b.Enqueue(ctx, &state.Job{RequestID: "r2"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	j1, err := b.Claim(ctx, time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if j1.RequestID != "r1" {
		t.Fatalf("expected FIFO order, got %q first", j1.RequestID)
	}

	j2, err := b.Claim(ctx, time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if j2.RequestID != "r2" {
		t.Fatalf("expected FIFO order, got %q second", j2.RequestID)
	}
}

func TestMemoryBroker_ClaimTimesOutWhenEmpty(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker(0, 0)
	defer b.Close()

	_, err := b.Claim(ctx, 20*time.Millisecond)
	if err != ErrNoJob {
		t.Fatalf("expected ErrNoJob, got %v", err)
	}
}

func TestMemoryBroker_ClaimWakesOnEnqueue(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker(0, 0)
	defer b.Close()

	done := make(chan *state.Job, 1)
	go func() {
		job, err := b.Claim(ctx, 2*time.Second)
		if err != nil {
			t.Errorf("claim: %v", err)
			return
		}
		done <- job
	}()

	time.Sleep(20 * time.Millisecond)
	if err := b.Enqueue(ctx, &state.Job{RequestID: "late"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case job := <-done:
		if job.RequestID != "late" {
			t.Fatalf("expected job 'late', got %q", job.RequestID)
		}
	case <-time.After(time.Second):
		t.Fatal("claim did not wake up on enqueue")
	}
}

func TestMemoryBroker_SubscribeReplaysBufferedEvents(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker(0, 0)
	defer b.Close()

	if err := b.Publish(ctx, "r1", &state.Event{RequestID: "r1", Kind: state.EventConnected, Sequence: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := b.Publish(ctx, "r1", &state.Event{RequestID: "r1", Kind: state.EventNode, Sequence: 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	sub, err := b.Subscribe(ctx, "r1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	first := <-sub.Events()
	second := <-sub.Events()
	if first.Sequence != 1 || second.Sequence != 2 {
		t.Fatalf("expected replay in order [1,2], got [%d,%d]", first.Sequence, second.Sequence)
	}
}

func TestMemoryBroker_SubscribeReceivesLiveEvents(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker(0, 0)
	defer b.Close()

	sub, err := b.Subscribe(ctx, "r1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if err := b.Publish(ctx, "r1", &state.Event{RequestID: "r1", Kind: state.EventComplete, Sequence: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-sub.Events():
		if ev.Kind != state.EventComplete {
			t.Fatalf("expected complete event, got %v", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("did not receive live event")
	}
}

func TestMemoryBroker_ReplayBufferIsBounded(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker(3, 0)
	defer b.Close()

	for i := int64(1); i <= 5; i++ {
		if err := b.Publish(ctx, "r1", &state.Event{RequestID: "r1", Kind: state.EventNode, Sequence: i}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	sub, err := b.Subscribe(ctx, "r1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	var got []int64
	for i := 0; i < 3; i++ {
		got = append(got, (<-sub.Events()).Sequence)
	}
	if got[0] != 3 || got[1] != 4 || got[2] != 5 {
		t.Fatalf("expected buffer trimmed to last 3 events [3,4,5], got %v", got)
	}
}

func TestMemoryBroker_StreamExpiresAfterGraceOnTerminalEvent(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker(0, 20*time.Millisecond)
	defer b.Close()

	if err := b.Publish(ctx, "r1", &state.Event{RequestID: "r1", Kind: state.EventComplete, Sequence: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	b.mu.Lock()
	_, exists := b.streams["r1"]
	b.mu.Unlock()
	if exists {
		t.Fatal("expected stream to be cleaned up after sub grace period")
	}
}
