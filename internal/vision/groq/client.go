package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"chartlens-backend/internal/vision"
)

const (
	// DefaultModel is Groq's recommended vision model for chart reading.
	DefaultModel = "meta-llama/llama-4-scout-17b-16e-instruct"

	maxTokens = 2048

	// The client omits a zero temperature from the request body, so the
	// smallest value it still serializes stands in for 0.
	nearZeroTemperature = 1e-8
)

// Client calls Groq's OpenAI-compatible chat completions endpoint with a
// vision-capable model.
type Client struct {
	api   *openai.Client
	model string
}

// Options configures the Groq client.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
}

// New creates a Groq vision client. A nil client is returned without error
// when no API key is configured; callers should treat that as not configured.
func New(opts Options) *Client {
	if opts.APIKey == "" {
		return nil
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}
}

// Analyze sends the chart image and analysis prompt to the vision model and
// returns the raw JSON object the model produced.
func (c *Client) Analyze(ctx context.Context, in vision.AnalyzeInput) (json.RawMessage, error) {
	if c == nil || c.api == nil {
		return nil, vision.ErrNotConfigured
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: vision.PromptFor(in.Language),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: in.ImageDataURI,
						},
					},
				},
			},
		},
		Temperature: nearZeroTemperature,
		MaxTokens:   maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, vision.ErrEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, vision.ErrEmptyResponse
	}
	if !json.Valid([]byte(content)) {
		return nil, vision.ErrBadResponse
	}
	return json.RawMessage(content), nil
}

var _ vision.Client = (*Client)(nil)
