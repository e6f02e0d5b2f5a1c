package nodes

import (
	"context"

	"github.com/qagraph/qagraph/internal/adapters"
	"github.com/qagraph/qagraph/pkg/state"
)

// Retrieval dispatches to the adapter registry based on routing_decision
// and yields retrieved_context. An empty result after
// internal_retrieval falls back to web_search once per turn when
// FALLBACK_WEB_ON_EMPTY_RETRIEVAL is enabled, updating routing_decision
// to reflect the tool actually used.
func (d *Deps) Retrieval(ctx context.Context, s *state.AgentState) (*state.AgentState, error) {
	decision := s.RoutingDecision
	if decision == nil {
		s.RetrievedContext = []state.Evidence{{Text: s.Query}}
		return s, nil
	}

	switch decision.Tool {
	case state.ToolWebSearch, state.ToolTargetedCrawl, state.ToolInternalRetrieval:
		kind := adapters.Kind(decision.Tool)
		res := d.Adapters.Run(ctx, kind, s.Query, adapters.Options{Target: decision.Target, TopK: 5})
		if res.Err != nil {
			return nil, &state.StageError{Stage: "retrieval", Message: res.Err.Error(), Retryable: true}
		}

		if decision.Tool == state.ToolInternalRetrieval && len(res.Evidence) == 0 && d.FallbackWebOnEmptyRetrieval {
			fallback := d.Adapters.Run(ctx, adapters.KindWebSearch, s.Query, adapters.Options{TopK: 5})
			if fallback.Err == nil {
				s.RetrievedContext = fallback.Evidence
				s.RoutingDecision = &state.RoutingDecision{
					Tool:      state.ToolWebSearch,
					Reasoning: decision.Reasoning + " (fell back from empty internal_retrieval)",
				}
				return s, nil
			}
		}

		s.RetrievedContext = res.Evidence
		return s, nil

	default:
		// translate and direct_answer don't call an adapter; the
		// query itself is the context the generator works from.
		s.RetrievedContext = []state.Evidence{{Text: s.Query}}
		return s, nil
	}
}
