package graph

import (
	"reflect"
	"time"

	"github.com/qagraph/qagraph/pkg/state"
)

func now() time.Time { return time.Now().UTC() }

// mergeDelta replaces current's fields with delta's and returns a
// StateDeltaPayload naming only the fields that actually changed,
// matching the wire-level "partial delta" described for the
// state_delta event while keeping AgentState itself one flat typed
// struct rather than a dynamic dictionary.
func mergeDelta(current, delta *state.AgentState) state.StateDeltaPayload {
	changes := state.StateDeltaPayload{}

	compare := func(field string, oldVal, newVal any) {
		if !reflect.DeepEqual(oldVal, newVal) {
			changes[field] = newVal
		}
	}

	compare("query", current.Query, delta.Query)
	compare("chat_history_len", len(current.ChatHistory), len(delta.ChatHistory))
	compare("summary", current.Summary, delta.Summary)
	compare("summary_warning", current.SummaryWarn, delta.SummaryWarn)
	compare("routing_decision", current.RoutingDecision, delta.RoutingDecision)
	compare("intent", current.Intent, delta.Intent)
	compare("plan", current.Plan, delta.Plan)
	compare("retrieved_context_len", len(current.RetrievedContext), len(delta.RetrievedContext))
	compare("draft_answer", current.DraftAnswer, delta.DraftAnswer)
	compare("citations", current.Citations, delta.Citations)
	compare("critique", current.Critique, delta.Critique)
	compare("revision_count", current.RevisionCount, delta.RevisionCount)
	compare("final_answer", current.FinalAnswer, delta.FinalAnswer)
	compare("target_language", current.TargetLanguage, delta.TargetLanguage)
	compare("error", current.Error, delta.Error)

	*current = *delta
	return changes
}
