// Package config reads process settings from the environment, loading a
// .env file first when one exists.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skufu/GoCyto/internal/diagnosis"
	"github.com/Skufu/GoCyto/internal/extractor"
	"github.com/Skufu/GoCyto/internal/registry"
)

type Config struct {
	Port      string
	GinMode   string
	LogLevel  string
	LogFormat string

	EnableDB       bool
	DatabaseURL    string
	MigrateOnStart bool

	Models         []registry.Source
	ONNXRuntimeLib string

	Extractor          extractor.Config
	RedisURL           string
	ExtractionCacheTTL time.Duration

	StaticRoot   string
	MaxBodyBytes int64
}

// Load reads the environment. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "release"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		EnableDB:       getBool("ENABLE_DB", false),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrateOnStart: getBool("MIGRATE_ON_START", false),
		Models: []registry.Source{
			{
				Variant:    diagnosis.VariantSoftmax,
				ModelPath:  getEnv("SOFTMAX_MODEL_PATH", "models/softmax.json"),
				ScalerPath: os.Getenv("SOFTMAX_SCALER_PATH"),
			},
			{
				Variant:    diagnosis.VariantMLP,
				ModelPath:  getEnv("MLP_MODEL_PATH", "models/mlp.json"),
				ScalerPath: os.Getenv("MLP_SCALER_PATH"),
			},
		},
		ONNXRuntimeLib: os.Getenv("ONNXRUNTIME_LIB"),
		RedisURL:       os.Getenv("REDIS_URL"),
		StaticRoot:     os.Getenv("STATIC_ROOT"),
	}

	var err error
	if cfg.ExtractionCacheTTL, err = getDuration("EXTRACTION_CACHE_TTL", extractor.DefaultCacheTTL); err != nil {
		return nil, err
	}
	if cfg.MaxBodyBytes, err = getInt64("MAX_BODY_BYTES", 1<<20); err != nil {
		return nil, err
	}
	if cfg.Extractor, err = LoadExtractor(); err != nil {
		return nil, err
	}

	if cfg.EnableDB && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}
	if cfg.MigrateOnStart && !cfg.EnableDB {
		return nil, fmt.Errorf("MIGRATE_ON_START requires ENABLE_DB=true")
	}
	if err := cfg.Extractor.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apiKeyVars names the credential variable of each hosted provider.
var apiKeyVars = map[string]string{
	extractor.ProviderGroq:      "GROQ_API_KEY",
	extractor.ProviderOpenAI:    "OPENAI_API_KEY",
	extractor.ProviderAnthropic: "ANTHROPIC_API_KEY",
	extractor.ProviderGemini:    "GEMINI_API_KEY",
}

// LoadExtractor reads the extractor settings. The provider defaults to Groq
// when its key is present and to none otherwise.
func LoadExtractor() (extractor.Config, error) {
	provider := strings.ToLower(os.Getenv("EXTRACTOR_PROVIDER"))
	if provider == "" {
		provider = extractor.ProviderNone
		if os.Getenv("GROQ_API_KEY") != "" {
			provider = extractor.ProviderGroq
		}
	}

	timeout, err := getDuration("EXTRACTION_TIMEOUT", extractor.DefaultTimeout)
	if err != nil {
		return extractor.Config{}, err
	}
	cfg := extractor.Config{
		Provider: provider,
		Model:    os.Getenv("EXTRACTOR_MODEL"),
		BaseURL:  os.Getenv("EXTRACTOR_BASE_URL"),
		Timeout:  timeout,
	}
	if v, ok := apiKeyVars[provider]; ok {
		cfg.APIKey = os.Getenv(v)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return strings.EqualFold(val, "true") || val == "1"
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, val)
	}
	return n, nil
}
