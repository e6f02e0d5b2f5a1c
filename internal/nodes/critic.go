package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/qagraph/qagraph/pkg/state"
)

type criticOutput struct {
	Verdict      string   `json:"verdict"`
	Reasons      []string `json:"reasons"`
	Instructions string   `json:"instructions"`
}

// Critic reviews draft_answer quality and returns a verdict. It rejects
// outright only for safety/policy violations, which are fatal — returned
// as an error here rather than a critique, so the graph terminates the
// run with a sanitized message instead of looping.
func (d *Deps) Critic(ctx context.Context, s *state.AgentState) (*state.AgentState, error) {
	var contextBlock strings.Builder
	for i, ev := range s.RetrievedContext {
		contextBlock.WriteString(fmt.Sprintf("[%d] %s\n", i, ev.Text))
	}

	prompt := fmt.Sprintf(
		"Review this draft answer for factual grounding in the provided context and for safety/policy "+
			"violations. Respond as JSON: {\"verdict\": \"approved\"|\"needs_revision\"|\"rejected\", "+
			"\"reasons\": [string, ...], \"instructions\": string}.\n\n"+
			"Query: %s\nContext:\n%s\nDraft answer: %s",
		s.Query, contextBlock.String(), s.DraftAnswer)

	var out criticOutput
	if err := callJSON(ctx, d.LLM, d.Model, prompt, &out); err != nil {
		// A critic that can't be consulted doesn't block the run —
		// the original's except-branch returns needs_revision=False,
		// i.e. treats an unreachable critic as an implicit approval.
		s.Critique = &state.Critique{Verdict: state.VerdictApproved}
		return s, nil
	}

	verdict := state.Verdict(out.Verdict)
	switch verdict {
	case state.VerdictRejected:
		return nil, &state.StageError{Stage: "critic", Message: "response rejected by policy review", Retryable: false}

	case state.VerdictNeedsRevision:
		if s.RevisionCount >= d.maxRevisions() {
			// Revision budget exhausted: accept the current draft
			// rather than loop forever.
			s.Critique = &state.Critique{Verdict: state.VerdictApproved, Reasons: out.Reasons}
			return s, nil
		}
		s.RevisionCount++
		s.Critique = &state.Critique{Verdict: state.VerdictNeedsRevision, Reasons: out.Reasons, Instructions: out.Instructions}
		return s, nil

	default:
		s.Critique = &state.Critique{Verdict: state.VerdictApproved, Reasons: out.Reasons}
		return s, nil
	}
}
