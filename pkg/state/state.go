// Package state defines the shared data model that flows through the
// graph runtime, the checkpoint store, and the HTTP/SSE API: chat
// messages, the per-run agent state, jobs, and the events published while
// a job runs.
package state

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies who authored a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a session's chat history. Messages are
// append-only within a session except on an explicit session clear.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RoutingTool is the closed set of destinations the router node can send
// a query to. Adding a tool requires a code change; this is intentional,
// it keeps handling of routing decisions exhaustive.
type RoutingTool string

const (
	ToolWebSearch         RoutingTool = "web_search"
	ToolTargetedCrawl     RoutingTool = "targeted_crawl"
	ToolInternalRetrieval RoutingTool = "internal_retrieval"
	ToolCalculator        RoutingTool = "calculator"
	ToolTranslate         RoutingTool = "translate"
	ToolDirectAnswer      RoutingTool = "direct_answer"
)

// RoutingDecision is the router node's output: which tool to invoke and
// why, plus an optional crawl target.
type RoutingDecision struct {
	Tool      RoutingTool `json:"tool"`
	Reasoning string      `json:"reasoning,omitempty"`
	Target    string      `json:"target,omitempty"`
}

// Evidence is one normalized unit of retrieved content, whatever backend
// produced it.
type Evidence struct {
	Text   string   `json:"text"`
	Source string   `json:"source"`
	Score  *float64 `json:"score,omitempty"`
}

// Verdict is the critic node's closed set of outcomes for a draft answer.
type Verdict string

const (
	VerdictApproved      Verdict = "approved"
	VerdictNeedsRevision Verdict = "needs_revision"
	VerdictRejected      Verdict = "rejected"
)

// Critique is the critic node's assessment of a draft answer.
type Critique struct {
	Verdict      Verdict  `json:"verdict"`
	Reasons      []string `json:"reasons,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
}

// StageError records the node a run failed in and whether retrying that
// node might succeed.
type StageError struct {
	Stage     string `json:"stage"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	return e.Stage + ": " + e.Message
}

// AgentState is the full record a graph run threads through every node.
// It doubles as the persisted checkpoint body: node functions consume an
// AgentState and return a partial delta that the runtime merges back in.
type AgentState struct {
	Query        string    `json:"query"`
	ChatHistory  []Message `json:"chat_history"`
	Summary      string    `json:"summary"`
	SummaryWarn  string    `json:"summary_warning,omitempty"`

	RoutingDecision *RoutingDecision `json:"routing_decision,omitempty"`
	Intent          string           `json:"intent,omitempty"`
	Plan            []string         `json:"plan,omitempty"`

	RetrievedContext []Evidence `json:"retrieved_context,omitempty"`

	DraftAnswer string `json:"draft_answer,omitempty"`
	Citations   []int  `json:"citations,omitempty"`

	Critique      *Critique `json:"critique,omitempty"`
	RevisionCount int       `json:"revision_count"`

	FinalAnswer string `json:"final_answer,omitempty"`

	TargetLanguage string `json:"target_language,omitempty"`

	Error *StageError `json:"error,omitempty"`
}

// Clone returns a deep-enough copy of s for safe mutation by a node
// without aliasing slices/pointers shared with the caller's copy.
func (s *AgentState) Clone() *AgentState {
	if s == nil {
		return nil
	}
	out := *s
	out.ChatHistory = append([]Message(nil), s.ChatHistory...)
	out.Plan = append([]string(nil), s.Plan...)
	out.RetrievedContext = append([]Evidence(nil), s.RetrievedContext...)
	out.Citations = append([]int(nil), s.Citations...)
	if s.RoutingDecision != nil {
		rd := *s.RoutingDecision
		out.RoutingDecision = &rd
	}
	if s.Critique != nil {
		c := *s.Critique
		c.Reasons = append([]string(nil), s.Critique.Reasons...)
		out.Critique = &c
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return &out
}

// Job is one unit of asynchronous work handed from the API to a worker
// through the broker's queue.
type Job struct {
	RequestID      string    `json:"request_id"`
	SessionID      string    `json:"session_id"`
	Query          string    `json:"query"`
	TargetLanguage string    `json:"target_language,omitempty"`
	Model          string    `json:"model,omitempty"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}

// EventKind is the closed set of event types published while a job runs.
type EventKind string

const (
	EventConnected   EventKind = "connected"
	EventNode        EventKind = "node"
	EventStateDelta  EventKind = "state_delta"
	EventError       EventKind = "error"
	EventComplete    EventKind = "complete"
)

// Event is one message on a request_id's SSE stream.
type Event struct {
	RequestID string    `json:"request_id"`
	Kind      EventKind `json:"kind"`
	Payload   any       `json:"payload,omitempty"`
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}

// NodePayload is the payload of an EventNode event.
type NodePayload struct {
	Name string `json:"name"`
}

// StateDeltaPayload is the payload of an EventStateDelta event: only the
// fields that changed when a node exited.
type StateDeltaPayload map[string]any

// ErrorPayload is the payload of an EventError event.
type ErrorPayload struct {
	Error string `json:"error"`
	Stage string `json:"stage"`
}

// CompletePayload is the payload of the terminal EventComplete event.
type CompletePayload struct {
	FinalAnswer     string           `json:"final_answer"`
	RoutingDecision *RoutingDecision `json:"routing_decision,omitempty"`
	Intent          string           `json:"intent,omitempty"`
	Summary         string           `json:"summary,omitempty"`
}

// eventWire is Event's JSON shape with Payload left undecoded, so
// UnmarshalJSON can pick its concrete type from Kind before decoding it.
type eventWire struct {
	RequestID string          `json:"request_id"`
	Kind      EventKind       `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Sequence  int64           `json:"sequence"`
	CreatedAt time.Time       `json:"created_at"`
}

// UnmarshalJSON reconstructs Payload into its concrete per-Kind type
// (NodePayload, StateDeltaPayload, ErrorPayload, CompletePayload)
// instead of leaving it as a generic map[string]interface{}. Brokers
// that round-trip events through JSON (e.g. RedisBroker) need this to
// hand callers the same typed payloads an in-process broker would.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.RequestID = w.RequestID
	e.Kind = w.Kind
	e.Sequence = w.Sequence
	e.CreatedAt = w.CreatedAt

	if len(w.Payload) == 0 {
		e.Payload = nil
		return nil
	}

	switch w.Kind {
	case EventNode:
		var p NodePayload
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return fmt.Errorf("decode node payload: %w", err)
		}
		e.Payload = p
	case EventStateDelta:
		var p StateDeltaPayload
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return fmt.Errorf("decode state_delta payload: %w", err)
		}
		e.Payload = p
	case EventError:
		var p ErrorPayload
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return fmt.Errorf("decode error payload: %w", err)
		}
		e.Payload = p
	case EventComplete:
		var p CompletePayload
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return fmt.Errorf("decode complete payload: %w", err)
		}
		e.Payload = p
	default:
		var p any
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		e.Payload = p
	}
	return nil
}

// FeedbackType is the closed set of thumbs a user can leave on a response.
type FeedbackType string

const (
	FeedbackUp   FeedbackType = "up"
	FeedbackDown FeedbackType = "down"
)

// Feedback is one immutable user rating of an assistant response.
type Feedback struct {
	ID                string       `json:"id"`
	SessionID         string       `json:"session_id"`
	MessageIndex      int          `json:"message_index"`
	Type              FeedbackType `json:"type"`
	UserQuery         string       `json:"user_query"`
	AssistantResponse string       `json:"assistant_response"`
	RoutingDecision   string       `json:"routing_decision,omitempty"`
	Intent            string       `json:"intent,omitempty"`
	ModelUsed         string       `json:"model_used,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}
