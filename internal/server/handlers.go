package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/GoCyto/internal/diagnosis"
	"github.com/Skufu/GoCyto/internal/features"
	"github.com/Skufu/GoCyto/internal/store"
)

// modelLabels are the display names the frontend shows for each model.
var modelLabels = map[diagnosis.Variant]string{
	diagnosis.VariantSoftmax: "Softmax (DSO2)",
	diagnosis.VariantMLP:     "MLP (DSO3)",
}

type softmaxPrediction struct {
	Prediction   int     `json:"prediction"`
	Probability0 float64 `json:"probability_class0"`
	Probability1 float64 `json:"probability_class1"`
}

type riskPrediction struct {
	Prediction float64 `json:"prediction"`
	diagnosis.RiskTier
	Probability0 float64 `json:"probability_class0"`
	Probability1 float64 `json:"probability_class1"`
}

type extractionSummary struct {
	FeaturesExtracted int          `json:"features_extracted"`
	TotalFeatures     int          `json:"total_features"`
	Features          features.Raw `json:"features"`
}

type reportPrediction struct {
	Class     int      `json:"class"`
	Diagnosis string   `json:"diagnosis"`
	RiskScore *float64 `json:"risk_score,omitempty"`
	*diagnosis.RiskTier
	Probability0 float64 `json:"probability_class0"`
	Probability1 float64 `json:"probability_class1"`
	Confidence   float64 `json:"confidence"`
}

type reportResponse struct {
	Status     string            `json:"status"`
	Model      string            `json:"model"`
	Extraction extractionSummary `json:"extraction"`
	Prediction reportPrediction  `json:"prediction"`
}

type reportRequest struct {
	ReportDescription string `json:"report_description"`
}

// predict scores a feature mapping posted as the request body.
func (h *handler) predict(variant diagnosis.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			abortWithError(c, err)
			return
		}
		raw, err := features.ParseRaw(body)
		if err != nil {
			abortWithError(c, err)
			return
		}
		res, ok := h.score(c, raw, variant)
		if !ok {
			return
		}

		if variant == diagnosis.VariantMLP {
			c.JSON(http.StatusOK, riskPrediction{
				Prediction:   res.RiskScore(),
				RiskTier:     *res.Risk,
				Probability0: res.Probability0,
				Probability1: res.Probability1,
			})
			return
		}
		c.JSON(http.StatusOK, softmaxPrediction{
			Prediction:   res.Class,
			Probability0: res.Probability0,
			Probability1: res.Probability1,
		})
	}
}

// extractAndPredict runs the report through the extractor and scores the
// mapping it returns.
func (h *handler) extractAndPredict(variant diagnosis.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.Extractor == nil {
			abortUnavailable(c, "feature extraction")
			return
		}
		var req reportRequest
		if err := bindJSON(c, &req, features.ErrSchema); err != nil {
			abortWithError(c, err)
			return
		}

		start := time.Now()
		raw, err := h.Extractor.Extract(c.Request.Context(), req.ReportDescription)
		h.Metrics.ObserveExtraction(extractionOutcome(err), time.Since(start))
		if err != nil {
			abortWithError(c, err)
			return
		}

		res, ok := h.score(c, raw, variant)
		if !ok {
			return
		}
		pred := reportPrediction{
			Class:        res.Class,
			Diagnosis:    res.Diagnosis,
			Probability0: res.Probability0,
			Probability1: res.Probability1,
			Confidence:   res.Confidence,
		}
		if res.Risk != nil {
			score := res.RiskScore()
			pred.RiskScore = &score
			pred.RiskTier = res.Risk
		}
		c.JSON(http.StatusOK, reportResponse{
			Status: "success",
			Model:  modelLabels[variant],
			Extraction: extractionSummary{
				FeaturesExtracted: features.CountPresent(raw),
				TotalFeatures:     len(raw),
				Features:          raw,
			},
			Prediction: pred,
		})
	}
}

// score normalizes and scores raw, writing the error response on failure.
func (h *handler) score(c *gin.Context, raw features.Raw, variant diagnosis.Variant) (diagnosis.Result, bool) {
	res, _, err := h.Scorer.ScoreRaw(raw, variant)
	if err != nil {
		abortWithError(c, err)
		return diagnosis.Result{}, false
	}
	if missing := features.Missing(raw); len(missing) > 0 {
		h.Logger.Warn("scoring with zero-filled features",
			zap.String("model", string(variant)),
			zap.Int("missing", len(missing)),
			zap.Strings("features", missing),
			zap.String("request_id", c.GetString(requestIDHeader)))
	}
	h.Metrics.ObservePrediction(string(variant), res.Diagnosis)
	if res.Risk != nil {
		h.Metrics.ObserveRisk(string(res.Risk.Level))
	}
	return res, true
}

// bindJSON decodes the body into dst. Decoding failures are reported as
// kind, except an oversized body which keeps its own error.
func bindJSON(c *gin.Context, dst any, kind error) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: %v", kind, err)
}

func extractionOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	_, code := classify(err)
	return code
}

func (h *handler) saveConsultation(c *gin.Context) {
	if h.Store == nil {
		abortUnavailable(c, "consultation storage")
		return
	}
	var in store.ConsultationInput
	if err := bindJSON(c, &in, store.ErrInvalidInput); err != nil {
		abortWithError(c, err)
		return
	}
	saved, err := h.Store.SaveConsultation(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Consultation saved successfully",
		"id":         saved.ID,
		"created_at": saved.CreatedAt,
	})
}

func (h *handler) getPatients(c *gin.Context) {
	if h.Store == nil {
		abortUnavailable(c, "consultation storage")
		return
	}
	patients, err := h.Store.ListPatients(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "patients": patients})
}
