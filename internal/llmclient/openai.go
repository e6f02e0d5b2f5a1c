package llmclient

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient dispatches completions to the OpenAI chat completions
// API. Grounded on agents/react.go's use of sashabaranov/go-openai:
// a thin wrapper interface over CreateChatCompletion so the real
// client can be swapped for a fake in tests.
type OpenAIClient struct {
	api   chatCompleter
	model string
}

// chatCompleter is the subset of openai.Client this package calls,
// narrowed for testability.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAIClient builds an OpenAIClient against the real OpenAI API.
func NewOpenAIClient(apiKey, defaultModel string) *OpenAIClient {
	return &OpenAIClient{api: openai.NewClient(apiKey), model: defaultModel}
}

// NewOpenAIClientWithAPI wraps an existing chatCompleter, for testing
// against a fake.
func NewOpenAIClientWithAPI(api chatCompleter, defaultModel string) *OpenAIClient {
	return &OpenAIClient{api: api, model: defaultModel}
}

// CreateCompletion implements Client.
func (c *OpenAIClient) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, &Error{Provider: "openai", Message: "create chat completion", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Provider: "openai", Message: "no choices in response"}
	}

	return &CompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Name implements Client.
func (c *OpenAIClient) Name() string { return "openai" }
