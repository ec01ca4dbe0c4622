// Package server exposes scoring, extraction and consultation storage over
// HTTP with gin.
package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/GoCyto/internal/diagnosis"
	"github.com/Skufu/GoCyto/internal/extractor"
	"github.com/Skufu/GoCyto/internal/metrics"
	"github.com/Skufu/GoCyto/internal/store"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// ConsultationStore is the persistence the consultation routes need.
type ConsultationStore interface {
	HealthChecker
	SaveConsultation(ctx context.Context, in store.ConsultationInput) (*store.Consultation, error)
	ListPatients(ctx context.Context) ([]store.PatientSummary, error)
}

// Deps wires the router. Extractor and Store are optional: their routes
// answer 503 when nil.
type Deps struct {
	Scorer       *diagnosis.Scorer
	Extractor    extractor.Service
	Store        ConsultationStore
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	StaticRoot   string
	MaxBodyBytes int64
}

type handler struct {
	Deps
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 1 << 20
	}
	h := &handler{Deps: d}

	router := gin.New()
	router.Use(
		requestID(),
		requestLogger(d.Logger),
		gin.Recovery(),
		observe(d.Metrics),
		limitBodySize(d.MaxBodyBytes),
		cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
			ExposeHeaders: []string{requestIDHeader},
			MaxAge:        12 * time.Hour,
		}),
	)

	if d.StaticRoot != "" && fileExists(filepath.Join(d.StaticRoot, "index.html")) {
		router.Static("/static", d.StaticRoot)
		router.StaticFile("/", filepath.Join(d.StaticRoot, "index.html"))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", h.readyz)
	router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	router.POST("/predict2", h.predict(diagnosis.VariantSoftmax))
	router.POST("/predict3", h.predict(diagnosis.VariantMLP))
	router.POST("/extract_and_predict", h.extractAndPredict(diagnosis.VariantSoftmax))
	router.POST("/extract_and_predict_mlp", h.extractAndPredict(diagnosis.VariantMLP))

	router.POST("/save_consultation", h.saveConsultation)
	router.GET("/get_patients", h.getPatients)

	return router
}

func (h *handler) readyz(c *gin.Context) {
	if h.Store == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.Store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"db":     "unhealthy: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok"})
}

// DetectStaticRoot looks for index.html in the working directory and its
// two parents.
func DetectStaticRoot() string {
	startDir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for _, dir := range []string{startDir, filepath.Dir(startDir), filepath.Dir(filepath.Dir(startDir))} {
		if fileExists(filepath.Join(dir, "index.html")) {
			return dir
		}
	}
	return startDir
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
