// Package nodes implements the eight pure functions the graph runtime
// threads AgentState through: router, planner, retrieval, generator,
// critic, translator, summarize, and finalize. Each node takes an
// AgentState and returns the next AgentState or an error; the next node
// is chosen by the edge functions in graph.go, and none of the nodes
// talk to the graph runtime or broker directly.
package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/qagraph/qagraph/internal/adapters"
	"github.com/qagraph/qagraph/internal/llmclient"
	"github.com/qagraph/qagraph/internal/summarizer"
	"github.com/qagraph/qagraph/pkg/state"
)

// DefaultBaseLanguage is the language a run is assumed to already be in
// when no target_language has been set; the translator node treats a
// request to translate into this language as an identity operation.
const DefaultBaseLanguage = "english"

// DefaultMaxRevisions bounds the generator/critic revision loop.
const DefaultMaxRevisions = 2

// contextWindow is how many trailing chat_history messages are included
// in node prompts — the original's list(history)[-6:] everywhere it
// builds a prompt.
const contextWindow = 6

// Deps bundles every external dependency a node needs: the LLM client
// nodes call through, the adapter registry the retrieval node dispatches
// to, and the summarizer the summarize node delegates to. One Deps is
// shared by every node function built off it and is safe for concurrent
// use by multiple in-flight runs.
type Deps struct {
	LLM        llmclient.Client
	Adapters   *adapters.Registry
	Summarizer *summarizer.Summarizer

	Model                       string
	MaxRevisions                int
	BaseLanguage                string
	FallbackWebOnEmptyRetrieval bool
}

func (d *Deps) maxRevisions() int {
	if d.MaxRevisions > 0 {
		return d.MaxRevisions
	}
	return DefaultMaxRevisions
}

func (d *Deps) baseLanguage() string {
	if d.BaseLanguage != "" {
		return strings.ToLower(d.BaseLanguage)
	}
	return DefaultBaseLanguage
}

// recentHistory returns the trailing contextWindow messages of history,
// rendered as "role: content" lines for a prompt.
func recentHistory(history []state.Message) string {
	start := 0
	if len(history) > contextWindow {
		start = len(history) - contextWindow
	}
	var b strings.Builder
	for _, m := range history[start:] {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// callJSON sends prompt to the LLM and decodes its response as JSON
// into out. Nodes that ask the model for structured output (routing
// decisions, plans, critiques) all go through this; a model that wraps
// its JSON in prose still round-trips via the first '{'..last '}' slice
// extracted here.
func callJSON(ctx context.Context, llm llmclient.Client, model, prompt string, out any) error {
	resp, err := llm.CreateCompletion(ctx, llmclient.CompletionRequest{
		Model:    model,
		Messages: []llmclient.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(extractJSON(resp.Content)), out)
}

// extractJSON slices out the outermost {...} object in s, tolerating a
// model that prefixes or suffixes its JSON answer with prose.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

var urlPattern = regexp.MustCompile(`https?://\S+`)

// arithmeticPattern matches queries that are (or clearly contain) a
// plain arithmetic expression — digits, operators, parens, whitespace.
// Percent queries ("15% of 1500") are normalized by the router before
// this check runs.
var arithmeticPattern = regexp.MustCompile(`^[\s0-9+\-*/().]+$`)

// translatePattern extracts "translate <text> to <language>"-shaped
// requests, grounded on the original's explicit translation_agent.py
// intent check.
var translatePattern = regexp.MustCompile(`(?i)translate\b.*\bto\s+([a-zA-Z\s]+)$`)

var bookKeywords = []string{"book", "pdf", "document", "chapter", "manual", "report"}

func looksLikeBookQuery(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range bookKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// normalizePercentQuery rewrites "N% of M" into an arithmetic
// expression the calculator adapter's go/parser-based evaluator can
// read (e.g. "What is 15% of 1500?").
var percentOfPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*%\s*of\s*(\d+(?:\.\d+)?)`)

func normalizePercentQuery(query string) (string, bool) {
	m := percentOfPattern.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	return fmt.Sprintf("(%s/100)*%s", m[1], m[2]), true
}
