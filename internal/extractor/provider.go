package extractor

import "context"

// Provider sends a single prompt to a language model and returns its text.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Completion, error)

	// ModelID is the model the provider is configured to call.
	ModelID() string
}

// Request is a single-turn completion request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completion is the model's reply.
type Completion struct {
	Text  string
	Model string
	Usage Usage
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}
