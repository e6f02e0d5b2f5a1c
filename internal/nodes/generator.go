package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/qagraph/qagraph/internal/adapters"
	"github.com/qagraph/qagraph/pkg/state"
)

type generatorOutput struct {
	Answer    string `json:"answer"`
	Citations []int  `json:"citations"`
}

// Generator produces draft_answer and citations. A calculator routing
// decision is answered by the deterministic CalculatorAdapter instead
// of the LLM. Otherwise, on revision (revision_count > 0, critique
// present) it incorporates critique.instructions instead of re-running
// full retrieval-grounded generation, matching the original's
// handle_critique branch.
func (d *Deps) Generator(ctx context.Context, s *state.AgentState) (*state.AgentState, error) {
	if s.RoutingDecision != nil && s.RoutingDecision.Tool == state.ToolCalculator {
		return d.generateFromCalculator(ctx, s)
	}

	if s.Critique != nil && s.Critique.Verdict == state.VerdictNeedsRevision {
		prompt := fmt.Sprintf(
			"Revise the following draft answer to address this feedback. "+
				"Respond as JSON: {\"answer\": string, \"citations\": [int, ...]}.\n\n"+
				"Original query: %s\n"+
				"Draft answer: %s\n"+
				"Feedback: %s\n"+
				"Revision instructions: %s",
			s.Query, s.DraftAnswer, strings.Join(s.Critique.Reasons, "; "), s.Critique.Instructions)

		var out generatorOutput
		if err := callJSON(ctx, d.LLM, d.Model, prompt, &out); err != nil {
			return nil, &state.StageError{Stage: "generator", Message: err.Error(), Retryable: true}
		}
		s.DraftAnswer = out.Answer
		s.Citations = out.Citations
		return s, nil
	}

	var contextBlock strings.Builder
	for i, ev := range s.RetrievedContext {
		contextBlock.WriteString(fmt.Sprintf("[%d] %s\n", i, ev.Text))
	}

	prompt := fmt.Sprintf(
		"Answer the user's query using the provided context, citing context item indices used. "+
			"Respond as JSON: {\"answer\": string, \"citations\": [int, ...]}.\n\n"+
			"Intent: %s\nPlan: %s\n"+
			"Conversation summary: %s\n"+
			"Recent history:\n%s\n"+
			"Context:\n%s\n"+
			"Query: %s",
		s.Intent, strings.Join(s.Plan, " -> "), s.Summary, recentHistory(s.ChatHistory), contextBlock.String(), s.Query)

	var out generatorOutput
	if err := callJSON(ctx, d.LLM, d.Model, prompt, &out); err != nil {
		return nil, &state.StageError{Stage: "generator", Message: err.Error(), Retryable: true}
	}
	s.DraftAnswer = out.Answer
	s.Citations = out.Citations
	return s, nil
}

// generateFromCalculator answers a calculator routing decision by
// evaluating the arithmetic expression directly instead of asking the
// LLM to compute it. Target holds a normalized expression when the
// router rewrote one (e.g. "15% of 1500" -> "(15/100)*1500"); otherwise
// the query itself is already a bare expression.
func (d *Deps) generateFromCalculator(ctx context.Context, s *state.AgentState) (*state.AgentState, error) {
	expr := s.RoutingDecision.Target
	if expr == "" {
		expr = s.Query
	}

	res := d.Adapters.Run(ctx, adapters.KindCalculator, expr, adapters.Options{})
	if res.Err != nil {
		return nil, &state.StageError{Stage: "generator", Message: res.Err.Error(), Retryable: false}
	}

	if len(res.Evidence) > 0 {
		s.DraftAnswer = res.Evidence[0].Text
	}
	s.Citations = nil
	return s, nil
}
