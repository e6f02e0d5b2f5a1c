package nodes

import (
	"context"

	"github.com/qagraph/qagraph/pkg/state"
)

type plannerOutput struct {
	Intent string   `json:"intent"`
	Plan   []string `json:"plan"`
}

// Planner produces intent and a short ordered plan. It's skipped
// entirely (never invoked) for calculator/direct_answer routing
// decisions — enforced by the graph's edge after router, not by this
// function.
func (d *Deps) Planner(ctx context.Context, s *state.AgentState) (*state.AgentState, error) {
	prompt := "Given the user's query and the tool already selected to answer it, state the user's " +
		"intent in one short phrase and a short ordered plan (2-4 steps) for answering. " +
		"Respond as JSON: {\"intent\": string, \"plan\": [string, ...]}.\n\n" +
		"Selected tool: " + string(toolOf(s)) + "\n" +
		"Query: " + s.Query

	var out plannerOutput
	if err := callJSON(ctx, d.LLM, d.Model, prompt, &out); err != nil {
		return nil, &state.StageError{Stage: "planner", Message: err.Error(), Retryable: true}
	}

	s.Intent = out.Intent
	s.Plan = out.Plan
	return s, nil
}

func toolOf(s *state.AgentState) state.RoutingTool {
	if s.RoutingDecision == nil {
		return state.ToolDirectAnswer
	}
	return s.RoutingDecision.Tool
}
