package extractor

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider calls the Gemini generateContent API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider builds a client for the Gemini API. baseURL overrides
// the endpoint when set.
func NewGeminiProvider(ctx context.Context, apiKey, model, baseURL string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("extractor: gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("extractor: create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	temp := float32(req.Temperature)
	config := &genai.GenerateContentConfig{
		MaxOutputTokens:  int32(req.MaxTokens),
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}}
	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		// genai returns APIError by value.
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{Provider: "gemini", StatusCode: apiErr.Code, Err: err}
		}
		return nil, &ProviderError{Provider: "gemini", Err: err}
	}

	text := result.Text()
	if text == "" {
		return nil, invalidOutput("gemini returned no text content")
	}
	c := &Completion{Text: text, Model: p.model}
	if result.UsageMetadata != nil {
		c.Usage = Usage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
		}
	}
	return c, nil
}

func (p *GeminiProvider) ModelID() string { return p.model }
