package api

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	oaioption "github.com/openai/openai-go/option"
)

// OpenAIClient runs completions against the OpenAI chat completions API.
type OpenAIClient struct {
	inner   openai.Client
	model   string
	retry   RetryConfig
	tracker *TokenTracker
}

// OpenAIConfig contains configuration for creating a new OpenAIClient.
type OpenAIConfig struct {
	// Model is the default model, used when a Request names none.
	Model string
	// APIKey is the OpenAI API key. If empty, uses OPENAI_API_KEY env var.
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for compatible gateways.
	BaseURL string
	// Retry controls transient failure retries.
	Retry RetryConfig
}

// NewOpenAIClient creates a new OpenAI API client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}

	opts := []oaioption.RequestOption{
		oaioption.WithAPIKey(apiKey),
		oaioption.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, oaioption.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}

	return &OpenAIClient{
		inner:   openai.NewClient(opts...),
		model:   model,
		retry:   cfg.Retry,
		tracker: NewTokenTracker(),
	}, nil
}

// Model returns the configured default model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Tracker returns the token tracker for this client.
func (c *OpenAIClient) Tracker() *TokenTracker {
	return c.tracker
}

// Complete sends a single system + user message exchange.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) Completion {
	model := req.Model
	if model == "" {
		model = c.model
	}

	var resp *openai.ChatCompletion
	err := withRetry(ctx, c.retry, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.inner.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(req.System),
				openai.UserMessage(req.Message),
			},
			MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
		})
		return callErr
	})
	if err != nil {
		return failed(req, fmt.Errorf("openai call failed: %w", err))
	}

	c.tracker.Add(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	var text strings.Builder
	for _, choice := range resp.Choices {
		text.WriteString(choice.Message.Content)
	}

	return succeeded(req, model, text.String(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
}
