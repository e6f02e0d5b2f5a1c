// Package llmclient is the provider-agnostic interface the generator,
// critic, translator, and summarizer nodes call through: a
// CompletionRequest/CompletionResponse shape plus a Name for
// provider-tagged metrics. Prompt templates live in the nodes package;
// this package only covers dispatch and per-call instrumentation.
package llmclient

import "context"

// Message is one turn of a prompt's conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is one call to a model.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Usage is the token accounting for a CompletionResponse.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse is one model response.
type CompletionResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Client dispatches completion requests to a concrete LLM backend.
type Client interface {
	// CreateCompletion executes one request. Model selection, prompt
	// construction, and response-quality concerns are the caller's
	// (the node's); Client only transports the request.
	CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name identifies the backend, used in observability labels.
	Name() string
}

// Error wraps a backend-specific failure with the provider name, so
// callers can distinguish "OpenAI rejected the request" from a local
// bug without parsing error strings.
type Error struct {
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Provider + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Provider + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }
