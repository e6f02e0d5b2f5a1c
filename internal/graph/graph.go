// Package graph implements an explicit directed state machine over
// AgentState: a registered node function per node name, a transition
// table deciding the next node after each step, per-node timeouts, and
// event/checkpoint hooks a caller wires up to a broker and checkpoint
// store. The transition table is a conditional function rather than a
// linear next-steps list, so the generator/critic revision loop and the
// router's intent-based branching can be expressed without a
// dynamically-typed context map.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qagraph/qagraph/pkg/state"
)

// Name identifies a node in the graph.
type Name string

const (
	Router     Name = "router"
	Planner    Name = "planner"
	Retrieval  Name = "retrieval"
	Generator  Name = "generator"
	Critic     Name = "critic"
	Translator Name = "translator"
	Summarize  Name = "summarize"
	Finalize   Name = "finalize"

	// End is the sentinel "next node" returned by an Edge function to
	// signal the run loop should stop.
	End Name = ""
)

// NodeFunc executes one node's logic against the current state and
// returns the fields that changed. The returned state need not be a
// full copy — the runtime merges it as a delta over the node's input.
type NodeFunc func(ctx context.Context, s *state.AgentState) (*state.AgentState, error)

// Edge decides the next node to run given the state as it stood after
// the just-executed node. Returning End stops the run.
type Edge func(s *state.AgentState) Name

// EventEmitter is called by the runtime on node enter/exit/error/
// completion. Implementations (typically the worker, publishing
// through the broker) must not block for long; EventEmitter is called
// synchronously from the run loop.
type EventEmitter func(ev *state.Event)

// Checkpointer persists the state after a node completes. Called at
// most once per node, and unconditionally after the terminal node or
// on a run-ending error.
type Checkpointer func(ctx context.Context, s *state.AgentState) error

// ErrNodeNotRegistered is returned when an edge names a node with no
// registered NodeFunc.
type ErrNodeNotRegistered struct{ Name Name }

func (e *ErrNodeNotRegistered) Error() string {
	return fmt.Sprintf("graph: node %q is not registered", e.Name)
}

// Graph is a registry of node functions and the edges connecting them.
// A Graph is immutable once built and safe for concurrent Run calls.
type Graph struct {
	nodes    map[Name]NodeFunc
	edges    map[Name]Edge
	timeouts map[Name]time.Duration
}

// Builder assembles a Graph.
type Builder struct {
	g *Graph
}

// NewBuilder starts building a Graph.
func NewBuilder() *Builder {
	return &Builder{g: &Graph{
		nodes:    make(map[Name]NodeFunc),
		edges:    make(map[Name]Edge),
		timeouts: make(map[Name]time.Duration),
	}}
}

// AddNode registers fn as the handler for name, reached within timeout
// (0 means no per-node timeout beyond the run's overall context).
func (b *Builder) AddNode(name Name, fn NodeFunc, timeout time.Duration) *Builder {
	b.g.nodes[name] = fn
	if timeout > 0 {
		b.g.timeouts[name] = timeout
	}
	return b
}

// AddEdge registers the transition function run after name completes.
func (b *Builder) AddEdge(name Name, edge Edge) *Builder {
	b.g.edges[name] = edge
	return b
}

// Build finalizes the Graph.
func (b *Builder) Build() *Graph {
	return b.g
}

// RunOptions configures one Run invocation.
type RunOptions struct {
	Emit         EventEmitter
	Checkpoint   Checkpointer
	SequenceFrom int64
}

// Run executes the graph starting at start against the given initial
// state, applying each node's delta, following edges until End, and
// invoking the emit/checkpoint hooks along the way. It returns the
// final accumulated state.
func (g *Graph) Run(ctx context.Context, start Name, initial *state.AgentState, opts RunOptions) (*state.AgentState, error) {
	current := initial.Clone()
	seq := opts.SequenceFrom

	emit := opts.Emit
	if emit == nil {
		emit = func(*state.Event) {}
	}

	name := start
	for name != End {
		if err := ctx.Err(); err != nil {
			return current, err
		}

		fn, ok := g.nodes[name]
		if !ok {
			return current, &ErrNodeNotRegistered{Name: name}
		}

		seq++
		emit(&state.Event{Kind: state.EventNode, Sequence: seq, CreatedAt: now(), Payload: state.NodePayload{Name: string(name)}})

		nodeCtx := ctx
		var cancel context.CancelFunc
		if d, ok := g.timeouts[name]; ok {
			nodeCtx, cancel = context.WithTimeout(ctx, d)
		}
		delta, err := fn(nodeCtx, current.Clone())
		if cancel != nil {
			cancel()
		}

		if err != nil {
			stageErr := toStageError(name, err)
			current.Error = stageErr
			seq++
			emit(&state.Event{Kind: state.EventError, Sequence: seq, CreatedAt: now(), Payload: state.ErrorPayload{Error: stageErr.Message, Stage: stageErr.Stage}})
			if opts.Checkpoint != nil {
				_ = opts.Checkpoint(ctx, current)
			}
			return current, stageErr
		}

		changes := mergeDelta(current, delta)
		seq++
		emit(&state.Event{Kind: state.EventStateDelta, Sequence: seq, CreatedAt: now(), Payload: changes})

		if opts.Checkpoint != nil {
			if err := opts.Checkpoint(ctx, current); err != nil {
				return current, fmt.Errorf("graph: checkpoint after node %s: %w", name, err)
			}
		}

		edge, ok := g.edges[name]
		if !ok {
			break
		}
		name = edge(current)
	}

	if opts.Checkpoint != nil {
		if err := opts.Checkpoint(ctx, current); err != nil {
			return current, fmt.Errorf("graph: final checkpoint: %w", err)
		}
	}
	return current, nil
}

func toStageError(name Name, err error) *state.StageError {
	var se *state.StageError
	if errors.As(err, &se) {
		return se
	}
	return &state.StageError{Stage: string(name), Message: err.Error(), Retryable: false}
}
