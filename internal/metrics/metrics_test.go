package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObservePrediction("mlp", "Malignant")
	m.ObservePrediction("mlp", "Malignant")
	m.ObserveRisk("High")
	m.ObserveExtraction("ok", 300*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "/predict3", 200, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.predictions.WithLabelValues("mlp", "Malignant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.riskLevels.WithLabelValues("High")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/predict3", "200")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveRisk("Low")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `gocyto_risk_levels_total{level="Low"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
