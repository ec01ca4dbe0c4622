package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/GoCyto/internal/config"
	"github.com/Skufu/GoCyto/internal/diagnosis"
	"github.com/Skufu/GoCyto/internal/extractor"
	"github.com/Skufu/GoCyto/internal/registry"
)

func fixture(name string) string {
	return filepath.Join("..", "..", "testdata", "models", name)
}

func testConfig() *config.Config {
	return &config.Config{
		Models: []registry.Source{
			{Variant: diagnosis.VariantSoftmax, ModelPath: fixture("softmax.json")},
			{Variant: diagnosis.VariantMLP, ModelPath: fixture("mlp.json")},
		},
		Extractor:    extractor.Config{Provider: extractor.ProviderNone},
		StaticRoot:   ".",
		MaxBodyBytes: 1 << 20,
	}
}

func post(router http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestNewAppServesPredictions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, err := newApp(context.Background(), testConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	sample, err := os.ReadFile(fixture("malignant_sample.json"))
	if err != nil {
		t.Fatal(err)
	}
	w := post(a.router, "/predict3", string(sample))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"risk_level_en":"High"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}

	w = post(a.router, "/extract_and_predict", `{"report_description": "masse"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with extraction disabled, got %d", w.Code)
	}
}

func TestNewAppWithMockExtractor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.Extractor = extractor.Config{Provider: extractor.ProviderMock, Timeout: time.Second}

	a, err := newApp(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	w := post(a.router, "/extract_and_predict_mlp", `{"report_description": "Rapport sans mesure"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"features_extracted":0`) || !strings.Contains(body, `"total_features":30`) {
		t.Fatalf("unexpected extraction summary: %s", body)
	}
}

func TestNewAppFailsOnMissingModel(t *testing.T) {
	cfg := testConfig()
	cfg.Models[1].ModelPath = filepath.Join(t.TempDir(), "missing.json")
	if _, err := newApp(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for a missing model file")
	}
}

func TestWriteTimeoutCoversExtraction(t *testing.T) {
	cfg := testConfig()
	if got := writeTimeout(cfg); got != 15*time.Second {
		t.Fatalf("expected 15s without extraction, got %s", got)
	}
	cfg.Extractor = extractor.Config{Provider: extractor.ProviderMock, Timeout: 30 * time.Second}
	if got := writeTimeout(cfg); got != 35*time.Second {
		t.Fatalf("expected 35s with extraction, got %s", got)
	}
}
