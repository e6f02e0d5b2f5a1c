package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/qagraph/qagraph/internal/adapters"
	"github.com/qagraph/qagraph/internal/llmclient"
	"github.com/qagraph/qagraph/pkg/broker"
	"github.com/qagraph/qagraph/pkg/checkpoint"
	"github.com/qagraph/qagraph/pkg/state"
)

func generatorJSON(answer string) string {
	return fmt.Sprintf(`{"answer": %q, "citations": []}`, answer)
}

func criticApprovedJSON() string {
	return `{"verdict": "approved", "reasons": []}`
}

func newTestWorker(llm llmclient.Client) (*Worker, broker.Broker, checkpoint.Store) {
	b := broker.NewMemoryBroker(16, time.Minute)
	store := checkpoint.NewMemoryStore()
	reg := adapters.NewRegistry().WithRetryConfig(adapters.RetryConfig{MaxAttempts: 1})
	reg.Register(adapters.NewCalculatorAdapter())

	w := New(b, store, Config{
		LLM:          llm,
		Adapters:     reg,
		Model:        "mock",
		MaxRevisions: 2,
		BaseLanguage: "english",
	})
	return w, b, store
}

func TestWorker_ProcessesCalculatorJobEndToEnd(t *testing.T) {
	mock := llmclient.NewMockClient()
	mock.Responses = []*llmclient.CompletionResponse{
		{Content: generatorJSON("4")},
		{Content: criticApprovedJSON()},
	}
	w, b, store := newTestWorker(mock)

	job := &state.Job{RequestID: "req-1", SessionID: "sess-1", Query: "2 + 2"}

	ctx := context.Background()
	sub, err := b.Subscribe(ctx, job.RequestID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	w.processJob(ctx, job)

	var kinds []state.EventKind
	var finalAnswer string
	timeout := time.After(2 * time.Second)
drain:
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				break drain
			}
			kinds = append(kinds, ev.Kind)
			if ev.Kind == state.EventComplete {
				if p, ok := ev.Payload.(state.CompletePayload); ok {
					finalAnswer = p.FinalAnswer
				}
				break drain
			}
			if ev.Kind == state.EventError {
				t.Fatalf("unexpected error event: %+v", ev.Payload)
			}
		case <-timeout:
			t.Fatal("timed out waiting for terminal event")
		}
	}

	if len(kinds) == 0 || kinds[0] != state.EventConnected {
		t.Fatalf("expected first event to be connected, got %v", kinds)
	}
	if finalAnswer != "4" {
		t.Fatalf("unexpected final answer: %q", finalAnswer)
	}

	rec, err := store.LoadLatest(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if len(rec.State.ChatHistory) != 2 {
		t.Fatalf("expected 2 messages appended to chat history, got %d", len(rec.State.ChatHistory))
	}
	if rec.State.ChatHistory[0].Role != state.RoleUser || rec.State.ChatHistory[1].Role != state.RoleAssistant {
		t.Fatalf("unexpected chat history roles: %+v", rec.State.ChatHistory)
	}
}

func TestWorker_CriticRejectionPublishesErrorAndKeepsPostRetrievalCheckpoint(t *testing.T) {
	mock := llmclient.NewMockClient()
	mock.Responses = []*llmclient.CompletionResponse{
		{Content: `{"tool": "direct_answer", "reasoning": "general knowledge", "confidence": 0.9}`},
		{Content: generatorJSON("unsafe content")},
		{Content: `{"verdict": "rejected", "reasons": ["policy violation"]}`},
	}
	w, b, store := newTestWorker(mock)

	job := &state.Job{RequestID: "req-2", SessionID: "sess-2", Query: "tell me about volcanoes"}

	ctx := context.Background()
	sub, err := b.Subscribe(ctx, job.RequestID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	w.processJob(ctx, job)

	var sawError bool
	timeout := time.After(2 * time.Second)
drain:
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				break drain
			}
			if ev.Kind == state.EventError {
				sawError = true
				break drain
			}
			if ev.Kind == state.EventComplete {
				t.Fatal("expected an error event, got complete")
			}
		case <-timeout:
			t.Fatal("timed out waiting for terminal event")
		}
	}
	if !sawError {
		t.Fatal("expected an error event")
	}

	// A rejection surfaces past generator, so the partial checkpoint
	// (with retrieved/drafted state) is kept even though the run never
	// reaches finalize.
	if _, err := store.LoadLatest(ctx, "sess-2"); err != nil {
		t.Fatalf("expected a partial checkpoint to survive a post-retrieval error: %v", err)
	}
}

func TestWorker_SecondJobInSameSessionSeesPriorHistory(t *testing.T) {
	mock := llmclient.NewMockClient()
	mock.Responses = []*llmclient.CompletionResponse{
		{Content: generatorJSON("4")},
		{Content: criticApprovedJSON()},
		{Content: generatorJSON("9")},
		{Content: criticApprovedJSON()},
	}
	w, b, store := newTestWorker(mock)
	ctx := context.Background()

	job1 := &state.Job{RequestID: "req-3", SessionID: "sess-3", Query: "2 + 2"}
	sub1, _ := b.Subscribe(ctx, job1.RequestID)
	w.processJob(ctx, job1)
	drainToTerminal(t, sub1)
	sub1.Close()

	job2 := &state.Job{RequestID: "req-4", SessionID: "sess-3", Query: "3 + 6"}
	sub2, _ := b.Subscribe(ctx, job2.RequestID)
	w.processJob(ctx, job2)
	drainToTerminal(t, sub2)
	sub2.Close()

	rec, err := store.LoadLatest(ctx, "sess-3")
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if len(rec.State.ChatHistory) != 4 {
		t.Fatalf("expected 4 accumulated messages across both jobs, got %d", len(rec.State.ChatHistory))
	}
}

func drainToTerminal(t *testing.T, sub broker.Subscription) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if ev.Kind == state.EventComplete || ev.Kind == state.EventError {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for terminal event")
		}
	}
}
