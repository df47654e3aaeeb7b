package model

import "context"

// Descriptor describes one model offered by the hosting backend.
type Descriptor struct {
	ID       string `json:"id"`
	Provider string `json:"provider,omitempty"`
}

// Params are the generation parameters sent with every completion.
type Params struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// DefaultParams mirrors the parameters the service has always used.
func DefaultParams() Params {
	return Params{
		MaxTokens:   1024,
		Temperature: 0,
		TopP:        0.9,
	}
}

// CompletionRequest is a single-prompt, non-streaming completion.
type CompletionRequest struct {
	ModelID string
	Prompt  string
	Params  Params
}

// CompletionResponse is the common response model for model providers.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Provider is the text-completion capability of the model backend.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Catalog lists the models the backend currently supports.
type Catalog interface {
	List(ctx context.Context) ([]Descriptor, error)
}

// ContainsID reports whether id is an exact match for one of models.
func ContainsID(models []Descriptor, id string) bool {
	for _, m := range models {
		if m.ID == id {
			return true
		}
	}
	return false
}
