package nodes

import (
	"context"
	"strings"

	"github.com/qagraph/qagraph/pkg/state"
)

// routerClassification is the JSON shape the fallback LLM classifier
// is asked to produce when none of the deterministic priority rules
// match.
type routerClassification struct {
	Tool       string  `json:"tool"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

const routerConfidenceThreshold = 0.6

// Router produces a RoutingDecision from (query, summary, recent
// history). Priority rules: document/book-title queries →
// internal_retrieval before web_search; explicit URL → targeted_crawl;
// arithmetic expressions → calculator; explicit translation intent →
// translate. Falls back to an LLM classification between web_search
// and direct_answer, defaulting to direct_answer when the model isn't
// confident.
func (d *Deps) Router(ctx context.Context, s *state.AgentState) (*state.AgentState, error) {
	query := strings.TrimSpace(s.Query)

	if normalized, ok := normalizePercentQuery(query); ok {
		s.RoutingDecision = &state.RoutingDecision{Tool: state.ToolCalculator, Reasoning: "arithmetic percentage expression", Target: normalized}
		return s, nil
	}
	if arithmeticPattern.MatchString(query) && strings.TrimSpace(query) != "" {
		s.RoutingDecision = &state.RoutingDecision{Tool: state.ToolCalculator, Reasoning: "query is a plain arithmetic expression"}
		return s, nil
	}
	if loc := urlPattern.FindString(query); loc != "" {
		s.RoutingDecision = &state.RoutingDecision{Tool: state.ToolTargetedCrawl, Reasoning: "query names an explicit URL", Target: loc}
		return s, nil
	}
	if m := translatePattern.FindStringSubmatch(query); m != nil {
		lang := strings.TrimSpace(m[1])
		s.RoutingDecision = &state.RoutingDecision{Tool: state.ToolTranslate, Reasoning: "explicit translation request"}
		s.TargetLanguage = lang
		return s, nil
	}
	if looksLikeBookQuery(query) {
		s.RoutingDecision = &state.RoutingDecision{Tool: state.ToolInternalRetrieval, Reasoning: "query references a document/book title"}
		return s, nil
	}

	prompt := "Classify the user's query into exactly one tool: \"web_search\" (needs current/external information) " +
		"or \"direct_answer\" (answerable from general knowledge alone). " +
		"Respond as JSON: {\"tool\": string, \"reasoning\": string, \"confidence\": number between 0 and 1}.\n\n" +
		"Conversation summary: " + s.Summary + "\n" +
		"Recent history:\n" + recentHistory(s.ChatHistory) + "\n" +
		"Query: " + query

	var cls routerClassification
	if err := callJSON(ctx, d.LLM, d.Model, prompt, &cls); err == nil &&
		cls.Confidence >= routerConfidenceThreshold &&
		cls.Tool == string(state.ToolWebSearch) {
		s.RoutingDecision = &state.RoutingDecision{Tool: state.ToolWebSearch, Reasoning: cls.Reasoning}
		return s, nil
	}

	s.RoutingDecision = &state.RoutingDecision{Tool: state.ToolDirectAnswer, Reasoning: "insufficient confidence for any specialized tool"}
	return s, nil
}
