package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/stupiduntilnot/docchat/internal/model"
)

// Client adapts the OpenAI-compatible chat completions and models APIs to
// model.Provider and model.Catalog.
type Client struct {
	client oai.Client
}

// NewClient creates an OpenAI client. An empty baseURL uses the public API.
// Requests are never retried.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{client: oai.NewClient(opts...)}
}

// Complete sends the prompt as a single user message. The returned content
// is the first choice verbatim, possibly empty.
func (c *Client) Complete(ctx context.Context, req model.CompletionRequest) (model.CompletionResponse, error) {
	params := oai.ChatCompletionNewParams{
		Model: oai.ChatModel(req.ModelID),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.UserMessage(req.Prompt),
		},
		Temperature: oai.Float(req.Params.Temperature),
	}
	if req.Params.MaxTokens > 0 {
		params.MaxTokens = oai.Int(int64(req.Params.MaxTokens))
	}
	if req.Params.TopP > 0 {
		params.TopP = oai.Float(req.Params.TopP)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("openai completion model=%s: %w", req.ModelID, err)
	}

	result := model.CompletionResponse{
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}
	if len(resp.Choices) > 0 {
		result.Content = resp.Choices[0].Message.Content
	}
	return result, nil
}

// List returns the models visible to the configured API key.
func (c *Client) List(ctx context.Context) ([]model.Descriptor, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai list models: %w", err)
	}
	models := make([]model.Descriptor, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, model.Descriptor{ID: m.ID, Provider: m.OwnedBy})
	}
	return models, nil
}
