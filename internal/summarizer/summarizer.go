// Package summarizer condenses old chat history into a running summary so
// the generator node's prompt stays bounded regardless of session length.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/qagraph/qagraph/internal/llmclient"
	"github.com/qagraph/qagraph/pkg/state"
)

const (
	// MinHistoryLen is the shortest chat history summarize is worth
	// running for; shorter histories are cheap enough to send whole.
	MinHistoryLen = 10

	// DefaultHierarchicalThreshold is len(history) at which chunked,
	// two-pass summarization replaces the single-call standard mode.
	DefaultHierarchicalThreshold = 100

	// DefaultChunkSize is how many messages go into one sub-summary
	// call during hierarchical summarization.
	DefaultChunkSize = 20

	// DefaultKeepRecentMessages is how many of the most recent messages
	// are left out of summarization and kept verbatim in the prompt.
	DefaultKeepRecentMessages = 4

	// DefaultSummaryCharCap bounds the length of the produced summary.
	DefaultSummaryCharCap = 4096
)

// Config controls the summarizer's thresholds; zero values fall back to
// the package defaults above.
type Config struct {
	HierarchicalThreshold int
	ChunkSize             int
	KeepRecentMessages    int
	SummaryCharCap        int
}

func (c Config) withDefaults() Config {
	if c.HierarchicalThreshold <= 0 {
		c.HierarchicalThreshold = DefaultHierarchicalThreshold
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.KeepRecentMessages <= 0 {
		c.KeepRecentMessages = DefaultKeepRecentMessages
	}
	if c.SummaryCharCap <= 0 {
		c.SummaryCharCap = DefaultSummaryCharCap
	}
	return c
}

// Trace records which path a Summarize call took and, for hierarchical
// runs, the intermediate chunk summaries — exposed so tests can assert
// on the hierarchical path without parsing the final summary text.
type Trace struct {
	Hierarchical   bool
	ChunkCount     int
	ChunkSummaries []string
}

// Summarizer produces AgentState.Summary updates from chat history via an
// LLM client. It never mutates the chat history itself — the full
// transcript stays in storage and only the prompt-side view gets
// compressed.
type Summarizer struct {
	client llmclient.Client
	cfg    Config
}

// New builds a Summarizer. client is typically an llmclient.Instrumented
// wrapping a concrete provider, so summarization calls are traced and
// cost-tracked like every other LLM call in a run.
func New(client llmclient.Client, cfg Config) *Summarizer {
	return &Summarizer{client: client, cfg: cfg.withDefaults()}
}

// Summarize condenses history[:-KeepRecentMessages] into an updated
// summary, incorporating existingSummary. For histories shorter than
// MinHistoryLen, existingSummary is returned unchanged with a nil Trace
// (no LLM call). model selects the
// completion model; an empty model lets the underlying client apply its
// own default.
func (s *Summarizer) Summarize(ctx context.Context, model string, history []state.Message, existingSummary string) (string, *Trace, error) {
	if len(history) < MinHistoryLen {
		return existingSummary, nil, nil
	}

	keep := s.cfg.KeepRecentMessages
	if keep > len(history) {
		keep = len(history)
	}
	toSummarize := history[:len(history)-keep]
	if len(toSummarize) == 0 {
		return existingSummary, nil, nil
	}

	if len(history) >= s.cfg.HierarchicalThreshold {
		return s.hierarchical(ctx, model, toSummarize, existingSummary)
	}
	summary, err := s.standard(ctx, model, toSummarize, existingSummary)
	if err != nil {
		return "", nil, err
	}
	return s.cap(summary), nil, nil
}

// standard summarizes toSummarize in one call, as the original's 10-99
// message branch does.
func (s *Summarizer) standard(ctx context.Context, model string, toSummarize []state.Message, existingSummary string) (string, error) {
	prompt := fmt.Sprintf(
		"Distill the following conversation into a concise summary. "+
			"Include all key facts, decisions, and user preferences mentioned.\n\n"+
			"Existing Summary: %s\n\n"+
			"New messages to incorporate:\n%s\n\n"+
			"Concise Summary:",
		existingSummary, renderMessages(toSummarize))

	resp, err := s.client.CreateCompletion(ctx, llmclient.CompletionRequest{
		Model:    model,
		Messages: []llmclient.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return resp.Content, nil
}

// hierarchical chunks toSummarize into cfg.ChunkSize pieces, summarizes
// each independently, then folds the chunk summaries plus the prior
// summary into one meta-summary, mirroring the original's 100+ message
// branch.
func (s *Summarizer) hierarchical(ctx context.Context, model string, toSummarize []state.Message, existingSummary string) (string, *Trace, error) {
	trace := &Trace{Hierarchical: true}

	for start := 0; start < len(toSummarize); start += s.cfg.ChunkSize {
		end := start + s.cfg.ChunkSize
		if end > len(toSummarize) {
			end = len(toSummarize)
		}
		chunk := toSummarize[start:end]

		prompt := fmt.Sprintf(
			"Summarize this conversation segment concisely, preserving key facts:\n\n%s\n\nBrief Summary:",
			renderMessages(chunk))

		resp, err := s.client.CreateCompletion(ctx, llmclient.CompletionRequest{
			Model:    model,
			Messages: []llmclient.Message{{Role: "user", Content: prompt}},
		})
		if err != nil {
			// A single failed chunk degrades the meta-summary rather
			// than failing the whole node; the original does the
			// same (logs and continues to the next chunk).
			continue
		}
		trace.ChunkSummaries = append(trace.ChunkSummaries, resp.Content)
	}
	trace.ChunkCount = len(trace.ChunkSummaries)

	var segments strings.Builder
	for _, cs := range trace.ChunkSummaries {
		segments.WriteString("- ")
		segments.WriteString(cs)
		segments.WriteString("\n")
	}

	metaPrompt := fmt.Sprintf(
		"Create a comprehensive summary by combining these segment summaries. "+
			"Preserve all important facts, decisions, user preferences, and context.\n\n"+
			"Previous Summary: %s\n\n"+
			"New Segment Summaries:\n%s\n"+
			"Comprehensive Summary:",
		existingSummary, segments.String())

	resp, err := s.client.CreateCompletion(ctx, llmclient.CompletionRequest{
		Model:    model,
		Messages: []llmclient.Message{{Role: "user", Content: metaPrompt}},
	})
	if err != nil {
		return "", trace, fmt.Errorf("meta-summarize: %w", err)
	}
	return s.cap(resp.Content), trace, nil
}

// cap enforces len(summary) ≤ SummaryCharCap.
func (s *Summarizer) cap(summary string) string {
	if len(summary) <= s.cfg.SummaryCharCap {
		return summary
	}
	return summary[:s.cfg.SummaryCharCap]
}

func renderMessages(msgs []state.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
