package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Skufu/GoCyto/internal/features"
)

// Provider names accepted in Config.Provider.
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
	ProviderNone      = "none"
)

// Defaults for a single extraction call.
const (
	DefaultMaxTokens = 2048
	DefaultTimeout   = 30 * time.Second
)

var defaultModels = map[string]string{
	ProviderGroq:      "qwen/qwen3-32b",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-haiku-4-5",
	ProviderGemini:    "gemini-2.0-flash",
	ProviderMock:      "mock",
}

// Config selects and configures the provider behind the extractor.
type Config struct {
	Provider string
	APIKey   string
	Model    string // provider default when empty
	BaseURL  string // optional override for OpenAI-compatible services
	Timeout  time.Duration
}

// Enabled reports whether an extractor should be built at all.
func (c Config) Enabled() bool {
	return c.Provider != "" && c.Provider != ProviderNone
}

// Validate checks the provider name and that it has credentials.
func (c Config) Validate() error {
	switch c.Provider {
	case "", ProviderNone, ProviderMock:
		return nil
	case ProviderGroq, ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		if c.APIKey == "" {
			return fmt.Errorf("extractor: %s provider requires an API key", c.Provider)
		}
		return nil
	default:
		return fmt.Errorf("extractor: unknown provider %q", c.Provider)
	}
}

func (c Config) model() string {
	if c.Model != "" {
		return c.Model
	}
	return defaultModels[c.Provider]
}

// NewProvider builds the provider named by cfg.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ProviderGroq:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = GroqBaseURL
		}
		return NewOpenAIProvider(ProviderGroq, cfg.APIKey, cfg.model(), baseURL)
	case ProviderOpenAI:
		return NewOpenAIProvider(ProviderOpenAI, cfg.APIKey, cfg.model(), cfg.BaseURL)
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg.APIKey, cfg.model(), cfg.BaseURL)
	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.model(), cfg.BaseURL)
	case ProviderMock:
		m := NewMockProvider()
		m.Fallback = nullReport()
		return m, nil
	default:
		return nil, fmt.Errorf("extractor: provider %q is disabled", cfg.Provider)
	}
}

// nullReport is a reply listing every feature as absent.
func nullReport() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, name := range features.Names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: null", name)
	}
	b.WriteByte('}')
	return b.String()
}
