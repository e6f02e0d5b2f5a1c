package nodes

import (
	"context"
	"fmt"

	"github.com/qagraph/qagraph/pkg/state"
)

// Finalize sets final_answer = translator output and closes the run.
// A run that somehow reaches finalize without a translator output (the
// error path is expected to have terminated earlier) falls back to the
// draft answer, or an apology stub.
func (d *Deps) Finalize(_ context.Context, s *state.AgentState) (*state.AgentState, error) {
	if s.FinalAnswer != "" {
		return s, nil
	}
	if s.DraftAnswer != "" {
		answer := s.DraftAnswer
		if len(s.Citations) > 0 {
			answer += fmt.Sprintf("\n\nCitations: %v", s.Citations)
		}
		s.FinalAnswer = answer
		return s, nil
	}
	s.FinalAnswer = "I'm sorry, I wasn't able to produce an answer for this request."
	return s, nil
}
