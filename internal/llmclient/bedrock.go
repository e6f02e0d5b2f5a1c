package llmclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockClient dispatches completions to an Anthropic Claude model
// hosted on Amazon Bedrock, using the messages wire format Bedrock
// expects for that model family. It is the second concrete backend
// behind Client, alongside OpenAIClient.
type BedrockClient struct {
	api     modelInvoker
	modelID string
}

// modelInvoker is the subset of bedrockruntime.Client this package
// calls, narrowed for testability.
type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// NewBedrockClient loads AWS config from the environment/shared config
// files and builds a BedrockClient for modelID (e.g.
// "anthropic.claude-3-5-sonnet-20241022-v2:0").
func NewBedrockClient(ctx context.Context, region, modelID string) (*BedrockClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("llmclient: load aws config: %w", err)
	}
	return &BedrockClient{api: bedrockruntime.NewFromConfig(cfg), modelID: modelID}, nil
}

// NewBedrockClientWithAPI wraps an existing modelInvoker, for testing
// against a fake.
func NewBedrockClientWithAPI(api modelInvoker, modelID string) *BedrockClient {
	return &BedrockClient{api: api, modelID: modelID}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string              `json:"anthropic_version"`
	MaxTokens        int                 `json:"max_tokens"`
	Temperature      float64             `json:"temperature,omitempty"`
	Messages         []anthropicMessage  `json:"messages"`
	System           string              `json:"system,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// CreateCompletion implements Client.
func (c *BedrockClient) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	modelID := c.modelID
	if req.Model != "" {
		modelID = req.Model
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	var system string
	var messages []anthropicMessage
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		messages = append(messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Temperature:      req.Temperature,
		Messages:         messages,
		System:           system,
	})
	if err != nil {
		return nil, &Error{Provider: "bedrock", Message: "encode request", Err: err}
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, &Error{Provider: "bedrock", Message: "invoke model", Err: err}
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return nil, &Error{Provider: "bedrock", Message: "decode response", Err: err}
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &CompletionResponse{
		Content:      text,
		FinishReason: parsed.StopReason,
		Usage: Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}, nil
}

// Name implements Client.
func (c *BedrockClient) Name() string { return "bedrock" }
