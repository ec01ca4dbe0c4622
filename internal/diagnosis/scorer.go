package diagnosis

import (
	"fmt"
	"math"

	"github.com/Skufu/GoCyto/internal/features"
)

const (
	ClassBenign    = 0
	ClassMalignant = 1
)

// Result is the outcome of scoring one vector.
type Result struct {
	Model        Variant   `json:"model"`
	ModelVersion string    `json:"model_version,omitempty"`
	Class        int       `json:"class"`
	Diagnosis    string    `json:"diagnosis"`
	Probability0 float64   `json:"probability_class0"`
	Probability1 float64   `json:"probability_class1"`
	Confidence   float64   `json:"confidence"`
	Risk         *RiskTier `json:"risk,omitempty"`
}

// RiskScore is the malignant-class probability.
func (r Result) RiskScore() float64 { return r.Probability1 }

// Diagnosis labels a class.
func Diagnosis(class int) string {
	if class == ClassBenign {
		return "Benign"
	}
	return "Malignant"
}

// Score scales v with the model's own transform, runs the classifier and,
// for the MLP, attaches the risk tier.
func Score(v features.Vector, m *Model) (Result, error) {
	x := m.Scaler.Transform(v.Array())
	p, err := m.Classifier.Proba(x)
	if err != nil {
		return Result{}, fmt.Errorf("diagnosis: %s: %w", m.Variant, err)
	}
	if err := checkProba(p); err != nil {
		return Result{}, fmt.Errorf("%s: %w", m.Variant, err)
	}

	class := ClassBenign
	if p[1] > p[0] {
		class = ClassMalignant
	}

	res := Result{
		Model:        m.Variant,
		ModelVersion: m.Version,
		Class:        class,
		Diagnosis:    Diagnosis(class),
		Probability0: p[0],
		Probability1: p[1],
		Confidence:   math.Max(p[0], p[1]) * 100,
	}
	if m.Variant == VariantMLP {
		tier := TierFor(p[1])
		res.Risk = &tier
	}
	return res, nil
}

func checkProba(p []float64) error {
	if len(p) != 2 {
		return fmt.Errorf("%w: %d classes", ErrModelOutput, len(p))
	}
	for _, v := range p {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: %v", ErrModelOutput, p)
		}
	}
	return nil
}

// ModelSource hands out loaded models by variant.
type ModelSource interface {
	Model(v Variant) (*Model, bool)
}

// Scorer scores vectors against the models of a ModelSource. It holds no
// mutable state and is safe for concurrent use.
type Scorer struct {
	models ModelSource
}

func NewScorer(models ModelSource) *Scorer {
	return &Scorer{models: models}
}

// Score scores v with the model registered for variant.
func (s *Scorer) Score(v features.Vector, variant Variant) (Result, error) {
	m, ok := s.models.Model(variant)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q is not loaded", ErrUnknownModel, variant)
	}
	return Score(v, m)
}

// ScoreRaw normalizes raw and scores it. Normalization errors are returned
// unchanged so callers can tell a schema problem from a scoring one.
func (s *Scorer) ScoreRaw(raw features.Raw, variant Variant) (Result, features.Vector, error) {
	v, err := features.Normalize(raw)
	if err != nil {
		return Result{}, features.Vector{}, err
	}
	res, err := s.Score(v, variant)
	return res, v, err
}
