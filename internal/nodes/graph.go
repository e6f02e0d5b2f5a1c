package nodes

import (
	"time"

	"github.com/qagraph/qagraph/internal/graph"
	"github.com/qagraph/qagraph/pkg/state"
)

// Default per-node timeouts: retrieval and generator run longer than
// the others because they're the nodes actually waiting on a network
// call or a long completion.
const (
	DefaultNodeTimeout      = 60 * time.Second
	DefaultRetrievalTimeout = 120 * time.Second
	DefaultGeneratorTimeout = 180 * time.Second
)

// BuildGraph wires the eight agent nodes into the graph runtime:
// router → (planner → retrieval | generator directly for
// calculator/direct_answer) → generator → critic → (generator again
// while needs_revision and under budget, else translator) → summarize
// → finalize.
func BuildGraph(d *Deps) *graph.Graph {
	return graph.NewBuilder().
		AddNode(graph.Router, d.Router, DefaultNodeTimeout).
		AddNode(graph.Planner, d.Planner, DefaultNodeTimeout).
		AddNode(graph.Retrieval, d.Retrieval, DefaultRetrievalTimeout).
		AddNode(graph.Generator, d.Generator, DefaultGeneratorTimeout).
		AddNode(graph.Critic, d.Critic, DefaultNodeTimeout).
		AddNode(graph.Translator, d.Translator, DefaultNodeTimeout).
		AddNode(graph.Summarize, d.Summarize, DefaultNodeTimeout).
		AddNode(graph.Finalize, d.Finalize, DefaultNodeTimeout).
		AddEdge(graph.Router, routerEdge).
		AddEdge(graph.Planner, straightTo(graph.Retrieval)).
		AddEdge(graph.Retrieval, straightTo(graph.Generator)).
		AddEdge(graph.Generator, straightTo(graph.Critic)).
		AddEdge(graph.Critic, d.criticEdge).
		AddEdge(graph.Translator, straightTo(graph.Summarize)).
		AddEdge(graph.Summarize, straightTo(graph.Finalize)).
		AddEdge(graph.Finalize, straightTo(graph.End)).
		Build()
}

func straightTo(next graph.Name) graph.Edge {
	return func(*state.AgentState) graph.Name { return next }
}

// routerEdge implements the calculator/direct_answer fast path: skip
// planner and retrieval and generate straight off the query. Every
// other tool goes through planner → retrieval first.
func routerEdge(s *state.AgentState) graph.Name {
	if s.RoutingDecision == nil {
		return graph.Planner
	}
	switch s.RoutingDecision.Tool {
	case state.ToolCalculator, state.ToolDirectAnswer:
		return graph.Generator
	default:
		return graph.Planner
	}
}

// criticEdge implements the bounded revision loop: loop back to
// generator while the critic asked for a revision, otherwise proceed to
// translator. Critic itself caps RevisionCount against the budget and
// downgrades a budget-exhausted needs_revision to approved, so by the
// time this edge runs, a needs_revision verdict always means "and
// there's budget left" — the edge just follows the verdict.
func (d *Deps) criticEdge(s *state.AgentState) graph.Name {
	if s.Critique != nil && s.Critique.Verdict == state.VerdictNeedsRevision {
		return graph.Generator
	}
	return graph.Translator
}
