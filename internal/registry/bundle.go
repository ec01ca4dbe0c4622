package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Skufu/GoCyto/internal/diagnosis"
	"github.com/Skufu/GoCyto/internal/features"
)

// bundle is the JSON artifact format: scaler and classifier parameters in
// one versioned file.
type bundle struct {
	Version  string            `json:"version"`
	Variant  diagnosis.Variant `json:"variant"`
	Features []string          `json:"features,omitempty"`
	Scaler   *diagnosis.Scaler `json:"scaler,omitempty"`
	Softmax  *softmaxParams    `json:"softmax,omitempty"`
	MLP      *mlpParams        `json:"mlp,omitempty"`
}

type softmaxParams struct {
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

type mlpParams struct {
	Activation    diagnosis.Activation `json:"activation"`
	OutActivation diagnosis.Activation `json:"out_activation"`
	Layers        []diagnosis.Layer    `json:"layers"`
}

// scalerFile is a standalone scaler artifact.
type scalerFile struct {
	Features []string  `json:"features,omitempty"`
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// checkFeatureOrder rejects artifacts fitted on a different column order.
// Artifacts that do not list their features are trusted.
func checkFeatureOrder(path string, names []string) error {
	if names == nil || features.MatchesSchema(names) {
		return nil
	}
	return fmt.Errorf("registry: %s: feature order does not match the schema", path)
}

func loadScaler(path string) (diagnosis.Scaler, error) {
	var f scalerFile
	if err := readJSON(path, &f); err != nil {
		return diagnosis.Scaler{}, fmt.Errorf("registry: scaler %s: %w", path, err)
	}
	if err := checkFeatureOrder(path, f.Features); err != nil {
		return diagnosis.Scaler{}, err
	}
	return diagnosis.Scaler{Mean: f.Mean, Scale: f.Scale}, nil
}

// resolveScaler prefers an explicit scaler file over a bundled one.
func resolveScaler(src Source, bundled *diagnosis.Scaler) (diagnosis.Scaler, error) {
	if src.ScalerPath != "" {
		return loadScaler(src.ScalerPath)
	}
	if bundled == nil {
		return diagnosis.Scaler{}, fmt.Errorf("registry: %s: no scaler in %s and no scaler path configured",
			src.Variant, src.ModelPath)
	}
	return *bundled, nil
}

func loadBundle(src Source) (*diagnosis.Model, error) {
	var b bundle
	if err := readJSON(src.ModelPath, &b); err != nil {
		return nil, fmt.Errorf("registry: %s: %w", src.ModelPath, err)
	}
	if b.Variant != "" && b.Variant != src.Variant {
		return nil, fmt.Errorf("registry: %s holds a %s model, configured as %s",
			src.ModelPath, b.Variant, src.Variant)
	}
	if err := checkFeatureOrder(src.ModelPath, b.Features); err != nil {
		return nil, err
	}
	scaler, err := resolveScaler(src, b.Scaler)
	if err != nil {
		return nil, err
	}

	var clf diagnosis.Classifier
	switch src.Variant {
	case diagnosis.VariantSoftmax:
		if b.Softmax == nil {
			return nil, fmt.Errorf("registry: %s: missing softmax parameters", src.ModelPath)
		}
		clf, err = diagnosis.NewSoftmax(b.Softmax.Weights, b.Softmax.Bias)
	case diagnosis.VariantMLP:
		if b.MLP == nil {
			return nil, fmt.Errorf("registry: %s: missing mlp parameters", src.ModelPath)
		}
		clf, err = diagnosis.NewMLP(b.MLP.Layers, b.MLP.Activation, b.MLP.OutActivation)
	default:
		return nil, fmt.Errorf("registry: %w: %q", diagnosis.ErrUnknownModel, src.Variant)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", src.ModelPath, err)
	}

	m, err := diagnosis.NewModel(src.Variant, b.Version, scaler, clf)
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", src.ModelPath, err)
	}
	return m, nil
}
