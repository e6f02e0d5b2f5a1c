package broker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/qagraph/qagraph/pkg/state"
)

func setupMiniredisBroker(t *testing.T, replayBuffer int, subGrace time.Duration) *RedisBroker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedisBrokerFromClient(client, "test:", replayBuffer, subGrace)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestRedisBroker_EnqueueClaimFIFO(t *testing.T) {
	ctx := context.Background()
	b := setupMiniredisBroker(t, 0, 0)

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
}

func TestRedisBroker_ClaimTimesOutWhenEmpty(t *testing.T) {
	ctx := context.Background()
	b := setupMiniredisBroker(t, 0, 0)

	_, err := b.Claim(ctx, 50*time.Millisecond)
	if err != ErrNoJob {
		t.Fatalf("expected ErrNoJob, got %v", err)
	}
}

func TestRedisBroker_PublishAppendsToReplayBufferAndTrims(t *testing.T) {
	ctx := context.Background()
	b := setupMiniredisBroker(t, 3, time.Minute)

	for i := int64(1); i <= 5; i++ {
		if err := b.Publish(ctx, "r1", &state.Event{RequestID: "r1", Kind: state.EventNode, Sequence: i}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	raw, err := b.client.LRange(ctx, b.streamKey("r1"), 0, -1).Result()
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	if len(raw) != 3 {
		t.Fatalf("expected replay buffer trimmed to 3 entries, got %d", len(raw))
	}
}

func TestRedisBroker_SubscribeReplaysBufferedEvents(t *testing.T) {
	ctx := context.Background()
	b := setupMiniredisBroker(t, 10, time.Minute)

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

func TestRedisBroker_TerminalEventSetsExpiry(t *testing.T) {
	ctx := context.Background()
	b := setupMiniredisBroker(t, 10, time.Minute)

	if err := b.Publish(ctx, "r1", &state.Event{RequestID: "r1", Kind: state.EventComplete, Sequence: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ttl, err := b.client.TTL(ctx, b.streamKey("r1")).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 {
		t.Fatalf("expected positive TTL on terminal event, got %v", ttl)
	}
}
