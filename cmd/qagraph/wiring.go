package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qagraph/qagraph/internal/config"
	"github.com/qagraph/qagraph/internal/llmclient"
	"github.com/qagraph/qagraph/pkg/broker"
	"github.com/qagraph/qagraph/pkg/checkpoint"
	"github.com/qagraph/qagraph/pkg/feedback"
)

// buildBroker dispatches on BROKER_URL's scheme: "memory://" (the
// default, single-process) or "redis://host:port/db".
func buildBroker(cfg *config.Config) (broker.Broker, error) {
	if cfg.BrokerURL == "" || cfg.BrokerURL == "memory://" {
		return broker.NewMemoryBroker(cfg.ReplayBuffer, cfg.SubGrace), nil
	}

	redisCfg, err := parseRedisURL(cfg.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("broker_url: %w", err)
	}
	b, err := broker.NewRedisBroker(broker.RedisBrokerConfig{
		Addr:         redisCfg.addr,
		Password:     redisCfg.password,
		DB:           redisCfg.db,
		Prefix:       "qagraph",
		ReplayBuffer: cfg.ReplayBuffer,
		SubGrace:     cfg.SubGrace,
	})
	if err != nil {
		return nil, fmt.Errorf("broker: %w", err)
	}
	return b, nil
}

// buildStore dispatches on STORE_URL's scheme: "memory://", "file://"
// (a local directory), or "redis://host:port/db".
func buildStore(cfg *config.Config) (checkpoint.Store, error) {
	switch {
	case cfg.StoreURL == "" || cfg.StoreURL == "memory://":
		return checkpoint.NewMemoryStore(), nil

	case strings.HasPrefix(cfg.StoreURL, "file://"):
		dir := strings.TrimPrefix(cfg.StoreURL, "file://")
		return checkpoint.NewFileStore(dir)

	case strings.HasPrefix(cfg.StoreURL, "redis://"):
		redisCfg, err := parseRedisURL(cfg.StoreURL)
		if err != nil {
			return nil, fmt.Errorf("store_url: %w", err)
		}
		return checkpoint.NewRedisStore(checkpoint.RedisStoreConfig{
			Addr:     redisCfg.addr,
			Password: redisCfg.password,
			DB:       redisCfg.db,
			Prefix:   "qagraph",
		})

	default:
		return nil, fmt.Errorf("store_url: unsupported scheme in %q", cfg.StoreURL)
	}
}

// buildFeedbackStore reuses STORE_URL's backend choice: memory or
// Redis. Feedback has no file-backed implementation, since the
// analytics aggregation needs a query surface FileStore doesn't have.
func buildFeedbackStore(cfg *config.Config) (feedback.Store, error) {
	if cfg.StoreURL == "" || cfg.StoreURL == "memory://" || strings.HasPrefix(cfg.StoreURL, "file://") {
		return feedback.NewMemoryStore(), nil
	}

	redisCfg, err := parseRedisURL(cfg.StoreURL)
	if err != nil {
		return nil, fmt.Errorf("store_url: %w", err)
	}
	return feedback.NewRedisStore(feedback.RedisStoreConfig{
		Addr:     redisCfg.addr,
		Password: redisCfg.password,
		DB:       redisCfg.db,
		Prefix:   "qagraph-feedback",
	})
}

// buildLLMClient prefers OpenAI when both a key and a Bedrock region
// are configured; Validate already ensures at least one is set.
func buildLLMClient(ctx context.Context, cfg *config.Config) (llmclient.Client, error) {
	if cfg.OpenAIKey != "" {
		return llmclient.NewOpenAIClient(cfg.OpenAIKey, cfg.LLMModel), nil
	}
	client, err := llmclient.NewBedrockClient(ctx, cfg.BedrockRegion, cfg.LLMModel)
	if err != nil {
		return nil, fmt.Errorf("bedrock client: %w", err)
	}
	return client, nil
}

type redisConnInfo struct {
	addr     string
	password string
	db       int
}

// parseRedisURL reads "redis://[:password@]host:port[/db]" into the
// fields the broker/store Redis configs need directly, without pulling
// in a dedicated URL-parsing dependency for three fields.
func parseRedisURL(raw string) (redisConnInfo, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return redisConnInfo{}, fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Scheme != "redis" {
		return redisConnInfo{}, fmt.Errorf("expected a redis:// URL, got %q", raw)
	}

	info := redisConnInfo{addr: u.Host}
	if u.User != nil {
		info.password, _ = u.User.Password()
	}
	if path := strings.TrimPrefix(u.Path, "/"); path != "" {
		db, err := strconv.Atoi(path)
		if err != nil {
			return redisConnInfo{}, fmt.Errorf("redis db %q: %w", path, err)
		}
		info.db = db
	}
	return info, nil
}
