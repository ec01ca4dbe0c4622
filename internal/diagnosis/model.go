// Package diagnosis turns a normalized feature vector into a diagnostic
// result using one of the two fitted classifiers.
package diagnosis

import (
	"errors"
	"fmt"

	"github.com/Skufu/GoCyto/internal/features"
)

// Variant names a scoring model.
type Variant string

const (
	VariantSoftmax Variant = "softmax"
	VariantMLP     Variant = "mlp"
)

// ParseVariant accepts the variant names and the legacy dataset tags
// ("dso2" for softmax, "dso3" for the MLP).
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "softmax", "dso2":
		return VariantSoftmax, nil
	case "mlp", "dso3":
		return VariantMLP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, s)
	}
}

var (
	ErrUnknownModel = errors.New("diagnosis: unknown model variant")
	ErrModelOutput  = errors.New("diagnosis: model produced an unusable probability vector")
	ErrInvalidModel = errors.New("diagnosis: invalid model parameters")
)

// Classifier maps a standardized feature row to class probabilities.
type Classifier interface {
	Proba(x []float64) ([]float64, error)
}

// Model pairs a classifier with the scaler it was fitted behind. Keeping
// both in one value means a vector can only be scaled with its own model's
// transform.
type Model struct {
	Variant    Variant
	Version    string
	Scaler     Scaler
	Classifier Classifier
}

// NewModel validates the scaler width against the feature schema.
func NewModel(variant Variant, version string, scaler Scaler, clf Classifier) (*Model, error) {
	if clf == nil {
		return nil, fmt.Errorf("%w: %s has no classifier", ErrInvalidModel, variant)
	}
	if err := scaler.Validate(features.Count); err != nil {
		return nil, fmt.Errorf("%s: %w", variant, err)
	}
	return &Model{Variant: variant, Version: version, Scaler: scaler, Classifier: clf}, nil
}
