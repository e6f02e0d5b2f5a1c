package llmclient

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

type fakeModelInvoker struct {
	body []byte
	err  error
	req  *bedrockruntime.InvokeModelInput
}

func (f *fakeModelInvoker) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.req = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

func TestBedrockClient_CreateCompletion(t *testing.T) {
	respBody, _ := json.Marshal(anthropicResponse{
		Content:    []anthropicContentBlock{{Type: "text", Text: "hello from claude"}},
		StopReason: "end_turn",
	})
	fake := &fakeModelInvoker{body: respBody}

	c := NewBedrockClientWithAPI(fake, "anthropic.claude-3-5-sonnet-20241022-v2:0")
	resp, err := c.CreateCompletion(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "system", Content: "be terse"}, {Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("create completion: %v", err)
	}
	if resp.Content != "hello from claude" {
		t.Fatalf("expected content 'hello from claude', got %q", resp.Content)
	}

	var sent anthropicRequest
	if err := json.Unmarshal(fake.req.Body, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent.System != "be terse" {
		t.Fatalf("expected system message to be extracted, got %q", sent.System)
	}
	if len(sent.Messages) != 1 || sent.Messages[0].Role != "user" {
		t.Fatalf("expected only user message in messages, got %+v", sent.Messages)
	}
}

func TestBedrockClient_DefaultsMaxTokens(t *testing.T) {
	respBody, _ := json.Marshal(anthropicResponse{Content: []anthropicContentBlock{{Type: "text", Text: "ok"}}})
	fake := &fakeModelInvoker{body: respBody}
	c := NewBedrockClientWithAPI(fake, "anthropic.claude-3-5-haiku-20241022-v1:0")

	if _, err := c.CreateCompletion(context.Background(), CompletionRequest{Messages: []Message{{Role: "user", Content: "hi"}}}); err != nil {
		t.Fatalf("create completion: %v", err)
	}

	var sent anthropicRequest
	if err := json.Unmarshal(fake.req.Body, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent.MaxTokens != 1024 {
		t.Fatalf("expected default max tokens 1024, got %d", sent.MaxTokens)
	}
}
