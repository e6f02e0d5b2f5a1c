package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qagraph/qagraph/pkg/state"
)

// RedisStore implements Store using Redis, for multi-worker deployments
// sharing one checkpoint namespace: a key prefix, one string key per
// session holding the latest record as JSON, and a sorted set indexing
// sessions by last-updated time for listing.
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
		return nil, errors.New("checkpoint: redis address is required")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "qagraph:checkpoint:"
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
		return nil, fmt.Errorf("checkpoint: redis ping failed: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

// NewRedisStoreFromClient wraps an existing client, useful for testing
// against miniredis.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "qagraph:checkpoint:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) recordKey(sessionID string) string { return s.prefix + "state:" + sessionID }
func (s *RedisStore) indexKey() string                  { return s.prefix + "index" }

type redisRecord struct {
	SessionID string            `json:"session_id"`
	Sequence  int64             `json:"sequence"`
	State     *state.AgentState `json:"state"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// maxCASAttempts bounds the optimistic-concurrency retry loop in Save.
const maxCASAttempts = 5

// Save implements Store using a WATCH/MULTI transaction so a checkpoint
// write can never regress the session's sequence even under concurrent
// workers racing on the same session.
func (s *RedisStore) Save(ctx context.Context, sessionID string, st *state.AgentState) (int64, error) {
	key := s.recordKey(sessionID)

	var assigned int64
	txf := func(tx *redis.Tx) error {
		var current redisRecord
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			if jerr := json.Unmarshal(raw, &current); jerr != nil {
				return fmt.Errorf("checkpoint: decode existing record: %w", jerr)
			}
		case errors.Is(err, redis.Nil):
			current = redisRecord{}
		default:
			return fmt.Errorf("checkpoint: read existing record: %w", err)
		}

		assigned = current.Sequence + 1
		next := redisRecord{
			SessionID: sessionID,
			Sequence:  assigned,
			State:     st,
			UpdatedAt: time.Now().UTC(),
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("checkpoint: encode record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(next.UpdatedAt.UnixNano()), Member: sessionID})
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return assigned, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return 0, fmt.Errorf("checkpoint: save: %w", err)
	}
	return 0, ErrStaleWrite
}

// LoadLatest implements Store.
func (s *RedisStore) LoadLatest(ctx context.Context, sessionID string) (*Record, error) {
	raw, err := s.client.Get(ctx, s.recordKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("checkpoint: load: %w", err)
	}

	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("checkpoint: decode: %w", err)
	}
	return &Record{SessionID: rec.SessionID, Sequence: rec.Sequence, State: rec.State, UpdatedAt: rec.UpdatedAt}, nil
}

// ListSessions implements Store.
func (s *RedisStore) ListSessions(ctx context.Context, since time.Time, limit int) ([]SessionSummary, error) {
	ids, err := s.client.ZRevRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.UnixNano()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list index: %w", err)
	}

	out := make([]SessionSummary, 0, len(ids))
	for _, id := range ids {
		rec, err := s.LoadLatest(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
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
func (s *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.recordKey(sessionID))
	pipe.ZRem(ctx, s.indexKey(), sessionID)
	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("checkpoint: delete: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
