package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/GoCyto/internal/diagnosis"
	"github.com/Skufu/GoCyto/internal/extractor"
	"github.com/Skufu/GoCyto/internal/features"
	"github.com/Skufu/GoCyto/internal/store"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify maps a domain error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	var upstream *extractor.ProviderError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, features.ErrSchema):
		return http.StatusBadRequest, "invalid_schema"
	case errors.Is(err, features.ErrFeatureMismatch):
		return http.StatusBadRequest, "feature_mismatch"
	case errors.Is(err, extractor.ErrEmptyReport):
		return http.StatusBadRequest, "empty_report"
	case errors.Is(err, extractor.ErrExtraction):
		return http.StatusUnprocessableEntity, "extraction_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream_timeout"
	case errors.As(err, &upstream):
		return http.StatusBadGateway, "upstream_unavailable"
	case errors.Is(err, store.ErrInvalidInput), errors.Is(err, store.ErrUnknownDoctor):
		return http.StatusBadRequest, "invalid_consultation"
	case errors.Is(err, diagnosis.ErrUnknownModel):
		return http.StatusServiceUnavailable, "model_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// abortWithError writes the error body. Server-side failures hide their
// detail from the caller and keep it in the request log.
func abortWithError(c *gin.Context, err error) {
	status, code := classify(err)
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: code, Message: msg})
}

func abortUnavailable(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{
		Error:   "unavailable",
		Message: what + " is not available",
	})
}
