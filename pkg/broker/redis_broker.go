package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qagraph/qagraph/pkg/state"
)

// RedisBroker implements Broker on Redis: RPUSH/BLPOP for the job
// queue, and a list-as-replay-buffer plus a PUBLISH/SUBSCRIBE channel
// per request for event fanout. Horizontal broker replication
// (clustering multiple Redis nodes) is out of scope; this talks to one
// Redis endpoint.
type RedisBroker struct {
	client       *redis.Client
	prefix       string
	replayBuffer int
	subGrace     time.Duration
}

// RedisBrokerConfig configures a RedisBroker.
type RedisBrokerConfig struct {
	Addr         string
	Password     string
	DB           int
	Prefix       string
	PoolSize     int
	ReplayBuffer int
	SubGrace     time.Duration
}

// NewRedisBroker dials Redis and returns a ready RedisBroker.
func NewRedisBroker(cfg RedisBrokerConfig) (*RedisBroker, error) {
	if cfg.Addr == "" {
		return nil, errors.New("broker: redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSizeOrDefault(cfg.PoolSize),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("broker: redis ping failed: %w", err)
	}

	return newRedisBroker(client, cfg.Prefix, cfg.ReplayBuffer, cfg.SubGrace), nil
}

// NewRedisBrokerFromClient wraps an existing client, for testing
// against miniredis.
func NewRedisBrokerFromClient(client *redis.Client, prefix string, replayBuffer int, subGrace time.Duration) *RedisBroker {
	return newRedisBroker(client, prefix, replayBuffer, subGrace)
}

func newRedisBroker(client *redis.Client, prefix string, replayBuffer int, subGrace time.Duration) *RedisBroker {
	if prefix == "" {
		prefix = "qagraph:broker:"
	}
	if replayBuffer <= 0 {
		replayBuffer = DefaultReplayBuffer
	}
	if subGrace <= 0 {
		subGrace = DefaultSubGrace
	}
	return &RedisBroker{client: client, prefix: prefix, replayBuffer: replayBuffer, subGrace: subGrace}
}

func poolSizeOrDefault(n int) int {
	if n <= 0 {
		return 10
	}
	return n
}

func (b *RedisBroker) queueKey() string               { return b.prefix + "queue" }
func (b *RedisBroker) streamKey(requestID string) string { return b.prefix + "stream:" + requestID }
func (b *RedisBroker) channelKey(requestID string) string {
	return b.prefix + "channel:" + requestID
}

// Enqueue implements Broker.
func (b *RedisBroker) Enqueue(ctx context.Context, job *state.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("broker: encode job: %w", err)
	}
	if err := b.client.RPush(ctx, b.queueKey(), data).Err(); err != nil {
		return fmt.Errorf("broker: enqueue: %w", err)
	}
	return nil
}

// Claim implements Broker using BLPOP as a blocking pop off a FIFO
// work queue.
func (b *RedisBroker) Claim(ctx context.Context, wait time.Duration) (*state.Job, error) {
	res, err := b.client.BLPop(ctx, wait, b.queueKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoJob
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("broker: claim: %w", err)
	}
	// res is [key, value].
	if len(res) != 2 {
		return nil, ErrNoJob
	}
	var job state.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("broker: decode job: %w", err)
	}
	return &job, nil
}

// Publish implements Broker. Each event is appended to the request's
// replay list (trimmed to the configured buffer size) and published on
// its live channel. A terminal event sets the replay list's TTL to
// SUB_GRACE so it survives just long enough for a trailing subscriber.
func (b *RedisBroker) Publish(ctx context.Context, requestID string, ev *state.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("broker: encode event: %w", err)
	}

	key := b.streamKey(requestID)
	pipe := b.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-b.replayBuffer), -1)
	if isTerminal(ev.Kind) {
		pipe.Expire(ctx, key, b.subGrace)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("broker: append to stream: %w", err)
	}

	if err := b.client.Publish(ctx, b.channelKey(requestID), data).Err(); err != nil {
		return fmt.Errorf("broker: publish: %w", err)
	}
	return nil
}

// Subscribe implements Broker: it replays the buffered events for
// requestID, then forwards events published live until the caller
// closes the subscription or the underlying pub/sub connection ends.
func (b *RedisBroker) Subscribe(ctx context.Context, requestID string) (Subscription, error) {
	raw, err := b.client.LRange(ctx, b.streamKey(requestID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("broker: read replay buffer: %w", err)
	}

	pubsub := b.client.Subscribe(ctx, b.channelKey(requestID))

	sub := &redisSubscription{
		pubsub: pubsub,
		ch:     make(chan *state.Event, b.replayBuffer),
	}

	for _, line := range raw {
		var ev state.Event
		if jerr := json.Unmarshal([]byte(line), &ev); jerr == nil {
			sub.ch <- &ev
		}
	}

	go sub.pump()
	return sub, nil
}

// Close implements Broker.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan *state.Event
	closed bool
}

func (s *redisSubscription) pump() {
	defer close(s.ch)
	for msg := range s.pubsub.Channel() {
		var ev state.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			continue
		}
		select {
		case s.ch <- &ev:
		default:
			// Slow subscriber: drop live event, replay buffer covers
			// reconnects.
		}
	}
}

func (s *redisSubscription) Events() <-chan *state.Event { return s.ch }

func (s *redisSubscription) Close() {
	if s.closed {
		return
	}
	s.closed = true
	_ = s.pubsub.Close()
}
