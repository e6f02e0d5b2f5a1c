package llmclient

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/qagraph/qagraph/internal/cost"
	"github.com/qagraph/qagraph/internal/observability"
)

// Instrumented wraps a Client with automatic span tracing, Prometheus
// metrics, and cost tracking.
type Instrumented struct {
	client  Client
	tracker *cost.Tracker
}

// NewInstrumented wraps client, recording cost against tracker.
func NewInstrumented(client Client, tracker *cost.Tracker) *Instrumented {
	return &Instrumented{client: client, tracker: tracker}
}

// CreateCompletion implements Client.
func (i *Instrumented) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, span := observability.StartSpan(ctx, "llm."+i.client.Name()+".completion")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", i.client.Name()),
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.messages_count", len(req.Messages)),
	)

	start := time.Now()
	resp, err := i.client.CreateCompletion(ctx, req)
	duration := time.Since(start)

	status := "ok"
	var costUSD float64
	if err != nil {
		status = "error"
		span.RecordError(err)
	} else {
		span.SetAttributes(
			attribute.Int("llm.prompt_tokens", resp.Usage.PromptTokens),
			attribute.Int("llm.completion_tokens", resp.Usage.CompletionTokens),
		)
		if i.tracker != nil {
			c := i.tracker.Record(&cost.Usage{
				Model:        req.Model,
				InputTokens:  resp.Usage.PromptTokens,
				OutputTokens: resp.Usage.CompletionTokens,
				TotalTokens:  resp.Usage.TotalTokens,
			})
			costUSD = c.TotalCost
			span.SetAttributes(attribute.Float64("llm.cost_usd", costUSD))
		}
	}

	observability.RecordLLMCall(i.client.Name(), req.Model, status, duration, costUSD)
	return resp, err
}

// Name implements Client.
func (i *Instrumented) Name() string { return i.client.Name() }
