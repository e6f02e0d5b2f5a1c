package nodes

import (
	"context"

	"github.com/qagraph/qagraph/pkg/state"
)

// Summarize delegates to the Summarizer. Summarization is non-fatal: a
// failure is recorded as a soft warning in summary_warning rather than
// aborting the run or touching final_answer.
func (d *Deps) Summarize(ctx context.Context, s *state.AgentState) (*state.AgentState, error) {
	summary, _, err := d.Summarizer.Summarize(ctx, d.Model, s.ChatHistory, s.Summary)
	if err != nil {
		s.SummaryWarn = err.Error()
		return s, nil
	}
	s.Summary = summary
	s.SummaryWarn = ""
	return s, nil
}
