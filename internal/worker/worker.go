// Package worker implements the claim/run/publish loop that pulls jobs
// off the broker's queue, drives one graph run per job, and reports
// progress and the terminal outcome back through the broker's
// per-request event stream.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/qagraph/qagraph/internal/adapters"
	"github.com/qagraph/qagraph/internal/cost"
	"github.com/qagraph/qagraph/internal/graph"
	"github.com/qagraph/qagraph/internal/llmclient"
	"github.com/qagraph/qagraph/internal/nodes"
	"github.com/qagraph/qagraph/internal/observability"
	"github.com/qagraph/qagraph/internal/summarizer"
	"github.com/qagraph/qagraph/pkg/broker"
	"github.com/qagraph/qagraph/pkg/checkpoint"
	"github.com/qagraph/qagraph/pkg/state"
)

// DefaultClaimTimeout bounds how long a single Claim call blocks
// waiting for a job before the worker loop checks ctx again.
const DefaultClaimTimeout = 5 * time.Second

// DefaultJobTimeout bounds how long processJob may run before the
// worker gives up on the job and publishes an error event.
const DefaultJobTimeout = 10 * time.Minute

// Config bundles everything a Worker needs beyond the broker and
// checkpoint store it claims jobs from and persists state to.
type Config struct {
	LLM              llmclient.Client
	Adapters         *adapters.Registry
	CostCalculator   *cost.Calculator
	SummarizerConfig summarizer.Config

	Model                       string
	MaxRevisions                int
	BaseLanguage                string
	FallbackWebOnEmptyRetrieval bool

	ClaimTimeout time.Duration
	JobTimeout   time.Duration

	Logger *slog.Logger
}

// Worker runs the claim loop against one Broker/checkpoint.Store pair.
// Multiple Workers (in one process or many) may run against the same
// broker concurrently; each processes one job at a time, sequentially.
type Worker struct {
	broker      broker.Broker
	checkpoints checkpoint.Store
	cfg         Config
}

// New builds a Worker. Unset Config durations fall back to the package
// defaults.
func New(b broker.Broker, store checkpoint.Store, cfg Config) *Worker {
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = DefaultClaimTimeout
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CostCalculator == nil {
		cfg.CostCalculator = cost.NewCalculator()
	}
	return &Worker{broker: b, checkpoints: store, cfg: cfg}
}

// Run claims and processes jobs until ctx is canceled. A claim timeout
// (broker.ErrNoJob) is not an error — it just means poll again.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, err := w.broker.Claim(ctx, w.cfg.ClaimTimeout)
		if err != nil {
			if errors.Is(err, broker.ErrNoJob) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.cfg.Logger.Error("worker: claim failed", "error", err)
			continue
		}

		w.processJob(ctx, job)
	}
}

// processJob drives exactly one job through connected → graph run →
// terminal event. It never returns an error to the caller: every
// failure mode ends in a published `error` event instead, so one bad
// job can't take the claim loop down with it.
func (w *Worker) processJob(ctx context.Context, job *state.Job) {
	ctx, span := observability.StartSpan(ctx, "worker.process_job")
	defer span.End()
	span.SetAttributes(
		attribute.String("request_id", job.RequestID),
		attribute.String("session_id", job.SessionID),
	)

	logger := w.cfg.Logger.With("request_id", job.RequestID, "session_id", job.SessionID)

	sessionID := job.SessionID
	if sessionID == "" {
		sessionID = job.RequestID
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	w.publish(ctx, job.RequestID, &state.Event{
		RequestID: job.RequestID,
		Kind:      state.EventConnected,
		CreatedAt: now(),
	})

	initial, err := w.loadInitialState(jobCtx, sessionID, job)
	if err != nil {
		logger.Error("worker: load prior state failed", "error", err)
		w.publishError(ctx, job, "session", err)
		return
	}

	model := job.Model
	if model == "" {
		model = w.cfg.Model
	}

	tracker := cost.NewTracker(w.cfg.CostCalculator)
	llm := llmclient.NewInstrumented(w.cfg.LLM, tracker)

	deps := &nodes.Deps{
		LLM:                         llm,
		Adapters:                    w.cfg.Adapters,
		Summarizer:                  summarizer.New(llm, w.cfg.SummarizerConfig),
		Model:                       model,
		MaxRevisions:                w.cfg.MaxRevisions,
		BaseLanguage:                w.cfg.BaseLanguage,
		FallbackWebOnEmptyRetrieval: w.cfg.FallbackWebOnEmptyRetrieval,
	}
	g := nodes.BuildGraph(deps)

	emit := func(ev *state.Event) {
		ev.RequestID = job.RequestID
		w.publish(ctx, job.RequestID, ev)
	}
	checkpointFn := func(ctx context.Context, s *state.AgentState) error {
		// Only a partial checkpoint past the retrieval stage is worth
		// keeping — a run that fails in router/planner hasn't produced
		// anything a session replay would want back.
		if s.Error != nil && (s.Error.Stage == string(graph.Router) || s.Error.Stage == string(graph.Planner)) {
			return nil
		}
		_, err := w.checkpoints.Save(ctx, sessionID, s)
		if errors.Is(err, checkpoint.ErrStaleWrite) {
			return nil
		}
		return err
	}

	final, runErr := g.Run(jobCtx, graph.Router, initial, graph.RunOptions{Emit: emit, Checkpoint: checkpointFn})

	observability.RecordRevisionLoopIterations(final.RevisionCount)

	if runErr != nil {
		logger.Warn("worker: run ended in error", "error", runErr)
		var stageErr *state.StageError
		if errors.As(runErr, &stageErr) {
			w.publish(ctx, job.RequestID, &state.Event{
				RequestID: job.RequestID,
				Kind:      state.EventError,
				Payload:   state.ErrorPayload{Error: stageErr.Message, Stage: stageErr.Stage},
				CreatedAt: now(),
			})
			return
		}
		w.publishError(ctx, job, "worker", runErr)
		return
	}

	final.ChatHistory = append(final.ChatHistory,
		state.Message{Role: state.RoleUser, Content: job.Query, CreatedAt: now()},
		state.Message{Role: state.RoleAssistant, Content: final.FinalAnswer, CreatedAt: now()},
	)
	if _, err := w.checkpoints.Save(jobCtx, sessionID, final); err != nil && !errors.Is(err, checkpoint.ErrStaleWrite) {
		logger.Error("worker: final checkpoint save failed", "error", err)
	}

	w.publish(ctx, job.RequestID, &state.Event{
		RequestID: job.RequestID,
		Kind:      state.EventComplete,
		Payload: state.CompletePayload{
			FinalAnswer:     final.FinalAnswer,
			RoutingDecision: final.RoutingDecision,
			Intent:          final.Intent,
			Summary:         final.Summary,
		},
		CreatedAt: now(),
	})
}

// loadInitialState builds the AgentState a run starts from: the prior
// session's chat_history and summary carried over, every per-run field
// (routing, draft, citations, critique, revision count, final answer)
// starting fresh for the new query.
func (w *Worker) loadInitialState(ctx context.Context, sessionID string, job *state.Job) (*state.AgentState, error) {
	rec, err := w.checkpoints.LoadLatest(ctx, sessionID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return &state.AgentState{Query: job.Query, TargetLanguage: job.TargetLanguage}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("worker: load session %s: %w", sessionID, err)
	}

	initial := &state.AgentState{Query: job.Query, TargetLanguage: job.TargetLanguage}
	if rec.State != nil {
		initial.ChatHistory = rec.State.ChatHistory
		initial.Summary = rec.State.Summary
	}
	return initial, nil
}

// publish makes up to 3 attempts, 50ms apart, and logs the error if the
// last one still fails.
func (w *Worker) publish(ctx context.Context, requestID string, ev *state.Event) {
	const attempts, backoff = 3, 50 * time.Millisecond
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = w.broker.Publish(ctx, requestID, ev); err == nil {
			return
		}
		if attempt < attempts {
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
		}
	}
	w.cfg.Logger.Error("worker: publish failed", "request_id", requestID, "kind", ev.Kind, "error", err)
}

func (w *Worker) publishError(ctx context.Context, job *state.Job, stage string, err error) {
	w.publish(ctx, job.RequestID, &state.Event{
		RequestID: job.RequestID,
		Kind:      state.EventError,
		Payload:   state.ErrorPayload{Error: err.Error(), Stage: stage},
		CreatedAt: now(),
	})
}

func now() time.Time { return time.Now().UTC() }
