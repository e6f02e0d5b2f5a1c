package llmclient

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a deterministic, call-recording Client for tests:
// queue up responses (or errors) and they're returned in order: one
// per CreateCompletion call, falling back to a fixed default after the
// queue drains.
type MockClient struct {
	mu        sync.Mutex
	Responses []*CompletionResponse
	Errors    []error
	Calls     []CompletionRequest
	index     int
}

// NewMockClient builds an empty MockClient; call with no queued
// responses/errors always returns a fixed default response.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// CreateCompletion implements Client.
func (m *MockClient) CreateCompletion(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if m.index < len(m.Errors) && m.Errors[m.index] != nil {
		err := m.Errors[m.index]
		m.index++
		return nil, err
	}
	if m.index < len(m.Responses) {
		resp := m.Responses[m.index]
		m.index++
		return resp, nil
	}

	return &CompletionResponse{
		Content:      fmt.Sprintf("mock response to %q", lastUserContent(req.Messages)),
		FinishReason: "stop",
		Usage:        Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// Name implements Client.
func (m *MockClient) Name() string { return "mock" }

// CallCount returns how many CreateCompletion calls have been made,
// useful for asserting revision-loop iteration counts in tests.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func lastUserContent(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}
