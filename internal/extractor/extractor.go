// Package extractor turns a free-text pathology report into a raw feature
// mapping by asking a language model for a JSON object.
package extractor

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/Skufu/GoCyto/internal/features"
)

// Service is what callers depend on: the plain extractor or a cached one.
type Service interface {
	Extract(ctx context.Context, report string) (features.Raw, error)
	Model() string
}

var (
	// Greedy and dot-all: from the first '{' to the last '}'.
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
	// Reasoning models may think aloud before answering.
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

// Extractor calls a Provider once per report. It does not retry: provider
// errors are returned to the caller unchanged.
type Extractor struct {
	provider  Provider
	timeout   time.Duration
	maxTokens int
	logger    *zap.Logger
}

// Option tweaks an Extractor.
type Option func(*Extractor)

func WithTimeout(d time.Duration) Option { return func(e *Extractor) { e.timeout = d } }

func WithLogger(l *zap.Logger) Option { return func(e *Extractor) { e.logger = l } }

func New(p Provider, opts ...Option) *Extractor {
	e := &Extractor{
		provider:  p,
		timeout:   DefaultTimeout,
		maxTokens: DefaultMaxTokens,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) Model() string { return e.provider.ModelID() }

// Extract returns the mapping the model produced for report. Keys are not
// folded here; synonym handling belongs to the normalizer.
func (e *Extractor) Extract(ctx context.Context, report string) (features.Raw, error) {
	if strings.TrimSpace(report) == "" {
		return nil, ErrEmptyReport
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	c, err := e.provider.Complete(ctx, Request{
		Prompt:      BuildPrompt(report),
		MaxTokens:   e.maxTokens,
		Temperature: 0,
	})
	if err != nil {
		e.logger.Warn("extraction call failed",
			zap.String("model", e.provider.ModelID()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	e.logger.Debug("extraction call completed",
		zap.String("model", c.Model),
		zap.Int("input_tokens", c.Usage.InputTokens),
		zap.Int("output_tokens", c.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return ParseOutput(c.Text)
}

// ParseOutput pulls the JSON object out of raw model text and validates it.
func ParseOutput(text string) (features.Raw, error) {
	text = thinkBlockRe.ReplaceAllString(text, "")
	match := jsonObjectRe.FindString(text)
	if match == "" {
		return nil, ErrNoJSONObject
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(match))
	if err != nil {
		return nil, invalidOutput("invalid JSON: %v", err)
	}
	schema, err := compiledSchema()
	if err != nil {
		return nil, invalidOutput("compile output schema: %v", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, invalidOutput("schema validation failed: %v", err)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, invalidOutput("model output is not an object")
	}
	return features.Raw(obj), nil
}
