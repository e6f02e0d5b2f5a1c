package main

import (
	"context"
	"log/slog"

	"github.com/qagraph/qagraph/internal/adapters"
	"github.com/qagraph/qagraph/internal/config"
	"github.com/qagraph/qagraph/internal/llmclient"
	"github.com/qagraph/qagraph/internal/summarizer"
	"github.com/qagraph/qagraph/internal/worker"
	"github.com/qagraph/qagraph/pkg/broker"
	"github.com/qagraph/qagraph/pkg/checkpoint"
	"github.com/qagraph/qagraph/pkg/feedback"
)

// wireBackends builds every shared dependency serve/worker commands
// need from one loaded Config.
func wireBackends(ctx context.Context, cfg *config.Config) (
	broker.Broker, checkpoint.Store, feedback.Store, *adapters.Registry, llmclient.Client, error,
) {
	b, err := buildBroker(cfg)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	store, err := buildStore(cfg)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	fb, err := buildFeedbackStore(cfg)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	reg, err := buildAdapterRegistry(cfg)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	llm, err := buildLLMClient(ctx, cfg)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	return b, store, fb, reg, llm, nil
}

// newConfiguredWorker builds a Worker from the loaded Config, carrying
// the revision budget, summarizer thresholds, claim and job timeouts,
// and fallback behavior into worker.Config. NodeTimeout (T_NODE) is not
// carried: the graph uses the fixed per-node timeouts in
// internal/nodes/graph.go.
func newConfiguredWorker(
	b broker.Broker, store checkpoint.Store, cfg *config.Config,
	reg *adapters.Registry, llm llmclient.Client, logger *slog.Logger,
) *worker.Worker {
	return worker.New(b, store, worker.Config{
		LLM:      llm,
		Adapters: reg,
		SummarizerConfig: summarizer.Config{
			HierarchicalThreshold: cfg.HierarchicalThreshold,
			ChunkSize:             cfg.ChunkSize,
			KeepRecentMessages:    cfg.KeepRecentMessages,
		},
		Model:                       cfg.LLMModel,
		MaxRevisions:                cfg.MaxRevisions,
		BaseLanguage:                cfg.BaseLanguage,
		FallbackWebOnEmptyRetrieval: cfg.FallbackWebOnEmptyRetrieval,
		ClaimTimeout:                cfg.ClaimTimeout,
		JobTimeout:                  cfg.JobTimeout,
		Logger:                      logger,
	})
}
