package summarizer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/qagraph/qagraph/internal/llmclient"
	"github.com/qagraph/qagraph/pkg/state"
)

func makeHistory(n int) []state.Message {
	history := make([]state.Message, 0, n)
	for i := 0; i < n; i++ {
		role := state.RoleUser
		if i%2 == 1 {
			role = state.RoleAssistant
		}
		history = append(history, state.Message{
			Role:      role,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: time.Now(),
		})
	}
	return history
}

func TestSummarizer_ShortHistoryIsUnchanged(t *testing.T) {
	mock := llmclient.NewMockClient()
	s := New(mock, Config{})

	summary, trace, err := s.Summarize(context.Background(), "", makeHistory(5), "prior")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary != "prior" {
		t.Fatalf("expected summary unchanged below MinHistoryLen, got %q", summary)
	}
	if trace != nil {
		t.Fatalf("expected no trace for unchanged summary, got %+v", trace)
	}
	if mock.CallCount() != 0 {
		t.Fatalf("expected no LLM calls for short history, got %d", mock.CallCount())
	}
}

func TestSummarizer_StandardModeSummarizesOnce(t *testing.T) {
	mock := llmclient.NewMockClient()
	mock.Responses = []*llmclient.CompletionResponse{{Content: "condensed summary"}}
	s := New(mock, Config{})

	summary, trace, err := s.Summarize(context.Background(), "gpt-4o-mini", makeHistory(30), "")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary != "condensed summary" {
		t.Fatalf("expected standard-mode summary, got %q", summary)
	}
	if trace != nil {
		t.Fatalf("expected no trace in standard mode, got %+v", trace)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected exactly one LLM call in standard mode, got %d", mock.CallCount())
	}
}

func TestSummarizer_HierarchicalModeChunksAndEmitsTrace(t *testing.T) {
	cfg := Config{HierarchicalThreshold: 100, ChunkSize: 20, KeepRecentMessages: 4}
	history := makeHistory(120)
	wantChunks := ((len(history) - cfg.KeepRecentMessages) + cfg.ChunkSize - 1) / cfg.ChunkSize

	mock := llmclient.NewMockClient()
	for i := 0; i < wantChunks; i++ {
		mock.Responses = append(mock.Responses, &llmclient.CompletionResponse{Content: "chunk summary"})
	}
	mock.Responses = append(mock.Responses, &llmclient.CompletionResponse{Content: "final meta summary"})

	s := New(mock, cfg)

	summary, trace, err := s.Summarize(context.Background(), "gpt-4o-mini", history, "earlier context")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary != "final meta summary" {
		t.Fatalf("expected meta-summary as final output, got %q", summary)
	}
	if trace == nil || !trace.Hierarchical {
		t.Fatalf("expected hierarchical trace, got %+v", trace)
	}

	if trace.ChunkCount != wantChunks {
		t.Fatalf("expected %d chunk summaries, got %d", wantChunks, trace.ChunkCount)
	}

	// one call per chunk plus one meta-summary call
	if mock.CallCount() != wantChunks+1 {
		t.Fatalf("expected %d LLM calls, got %d", wantChunks+1, mock.CallCount())
	}
}

func TestSummarizer_EnforcesSummaryCharCap(t *testing.T) {
	long := make([]byte, DefaultSummaryCharCap+500)
	for i := range long {
		long[i] = 'a'
	}

	mock := llmclient.NewMockClient()
	mock.Responses = []*llmclient.CompletionResponse{{Content: string(long)}}
	s := New(mock, Config{})

	summary, _, err := s.Summarize(context.Background(), "", makeHistory(30), "")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(summary) != DefaultSummaryCharCap {
		t.Fatalf("expected summary capped at %d chars, got %d", DefaultSummaryCharCap, len(summary))
	}
}

func TestSummarizer_KeepsMostRecentMessagesOutOfPrompt(t *testing.T) {
	mock := llmclient.NewMockClient()
	mock.Responses = []*llmclient.CompletionResponse{{Content: "ok"}}
	s := New(mock, Config{KeepRecentMessages: 4})

	history := makeHistory(12)
	if _, _, err := s.Summarize(context.Background(), "", history, ""); err != nil {
		t.Fatalf("summarize: %v", err)
	}

	lastKept := history[len(history)-1].Content
	prompt := mock.Calls[0].Messages[0].Content
	if strings.Contains(prompt, lastKept) {
		t.Fatalf("expected most recent message %q to be excluded from the summarize prompt", lastKept)
	}
}
