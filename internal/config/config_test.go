package config

import (
	"testing"
	"time"

	"github.com/Skufu/GoCyto/internal/diagnosis"
	"github.com/Skufu/GoCyto/internal/extractor"
)

// clearEnv blanks every variable Load reads so a developer's shell or .env
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "GIN_MODE", "LOG_LEVEL", "LOG_FORMAT", "ENABLE_DB", "DATABASE_URL", "MIGRATE_ON_START",
		"SOFTMAX_MODEL_PATH", "SOFTMAX_SCALER_PATH", "MLP_MODEL_PATH", "MLP_SCALER_PATH", "ONNXRUNTIME_LIB",
		"EXTRACTOR_PROVIDER", "GROQ_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY",
		"EXTRACTOR_MODEL", "EXTRACTOR_BASE_URL", "EXTRACTION_TIMEOUT", "REDIS_URL", "EXTRACTION_CACHE_TTL",
		"STATIC_ROOT", "MAX_BODY_BYTES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENABLE_DB", "true")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("expected 1MB body limit, got %d", cfg.MaxBodyBytes)
	}
	if cfg.Extractor.Enabled() {
		t.Fatalf("expected no extractor without credentials, got %q", cfg.Extractor.Provider)
	}
	if len(cfg.Models) != 2 || cfg.Models[0].Variant != diagnosis.VariantSoftmax || cfg.Models[1].Variant != diagnosis.VariantMLP {
		t.Fatalf("unexpected model sources: %+v", cfg.Models)
	}
	if cfg.Extractor.Timeout != extractor.DefaultTimeout {
		t.Fatalf("expected default extraction timeout, got %s", cfg.Extractor.Timeout)
	}
}

func TestLoadPicksGroqWhenKeyPresent(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk_test")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Extractor.Provider != extractor.ProviderGroq || cfg.Extractor.APIKey != "gsk_test" {
		t.Fatalf("expected groq extractor, got %+v", cfg.Extractor)
	}
}

func TestLoadProviderNeedsItsOwnKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXTRACTOR_PROVIDER", "anthropic")
	t.Setenv("GROQ_API_KEY", "gsk_test")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for anthropic without ANTHROPIC_API_KEY")
	}
}

func TestLoadParsesDurations(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXTRACTION_TIMEOUT", "5s")
	t.Setenv("EXTRACTION_CACHE_TTL", "1h")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Extractor.Timeout != 5*time.Second || cfg.ExtractionCacheTTL != time.Hour {
		t.Fatalf("unexpected durations: %s %s", cfg.Extractor.Timeout, cfg.ExtractionCacheTTL)
	}

	t.Setenv("EXTRACTION_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

func TestLoadRejectsBadBodyLimit(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_BODY_BYTES", "-4")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative body limit")
	}
}

func TestLoadMigrateNeedsDB(t *testing.T) {
	clearEnv(t)
	t.Setenv("MIGRATE_ON_START", "true")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when migrating without a database")
	}
}
