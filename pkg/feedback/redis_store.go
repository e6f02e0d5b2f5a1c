package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qagraph/qagraph/pkg/state"
)

// RedisStore implements Store on Redis: one string key per feedback
// record holding it as JSON, indexed by a per-session sorted set for
// ListBySession and by a global sorted set scored by creation time. The
// analytics aggregation ranges that global index over [since, until)
// and counts in Go rather than with Redis-side aggregation primitives.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisStoreConfig configures a RedisStore.
type RedisStoreConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	PoolSize int
}

// NewRedisStore dials Redis and returns a ready RedisStore.
func NewRedisStore(cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("feedback: redis address is required")
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("feedback: redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "qagraph:feedback:"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// NewRedisStoreFromClient wraps an existing client, for testing against
// miniredis.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "qagraph:feedback:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) recordKey(id string) string          { return s.prefix + "record:" + id }
func (s *RedisStore) sessionIndexKey(sid string) string   { return s.prefix + "session:" + sid }
func (s *RedisStore) allRecordsIndexKey() string          { return s.prefix + "all" }

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, fb *state.Feedback) error {
	data, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("feedback: encode: %w", err)
	}

	score := float64(fb.CreatedAt.UnixNano())
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.recordKey(fb.ID), data, 0)
	pipe.ZAdd(ctx, s.sessionIndexKey(fb.SessionID), redis.Z{Score: score, Member: fb.ID})
	pipe.ZAdd(ctx, s.allRecordsIndexKey(), redis.Z{Score: score, Member: fb.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("feedback: append: %w", err)
	}
	return nil
}

func (s *RedisStore) loadMany(ctx context.Context, ids []string) ([]*state.Feedback, error) {
	out := make([]*state.Feedback, 0, len(ids))
	for _, id := range ids {
		raw, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
		if err != nil {
			continue
		}
		var fb state.Feedback
		if err := json.Unmarshal(raw, &fb); err != nil {
			return nil, fmt.Errorf("feedback: decode %s: %w", id, err)
		}
		out = append(out, &fb)
	}
	return out, nil
}

// ListBySession implements Store.
func (s *RedisStore) ListBySession(ctx context.Context, sessionID string) ([]*state.Feedback, error) {
	ids, err := s.client.ZRange(ctx, s.sessionIndexKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("feedback: list session index: %w", err)
	}
	return s.loadMany(ctx, ids)
}

// Analytics implements Store.
func (s *RedisStore) Analytics(ctx context.Context, since, until time.Time) ([]DailyCount, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.allRecordsIndexKey(), &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.UnixNano()),
		Max: fmt.Sprintf("%d", until.UnixNano()-1),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("feedback: range all index: %w", err)
	}

	records, err := s.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*DailyCount)
	for _, fb := range records {
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
	return out, nil
}

// Close implements Store.
func (s *RedisStore) Close() error { return s.client.Close() }
