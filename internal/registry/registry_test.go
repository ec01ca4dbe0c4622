package registry

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/GoCyto/internal/diagnosis"
	"github.com/Skufu/GoCyto/internal/features"
)

func fixture(name string) string {
	return filepath.Join("..", "..", "testdata", "models", name)
}

func loadFixtures(t *testing.T) *Registry {
	t.Helper()
	reg, err := Load([]Source{
		{Variant: diagnosis.VariantSoftmax, ModelPath: fixture("softmax.json")},
		{Variant: diagnosis.VariantMLP, ModelPath: fixture("mlp.json")},
	}, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return reg
}

func sample(t *testing.T, name string) features.Raw {
	t.Helper()
	data, err := os.ReadFile(fixture(name))
	require.NoError(t, err)
	raw, err := features.ParseRaw(data)
	require.NoError(t, err)
	return raw
}

func TestLoadFixtures(t *testing.T) {
	reg := loadFixtures(t)
	assert.Equal(t, []diagnosis.Variant{diagnosis.VariantMLP, diagnosis.VariantSoftmax}, reg.Variants())
	assert.Equal(t, map[diagnosis.Variant]string{
		diagnosis.VariantSoftmax: "fixture-softmax-1",
		diagnosis.VariantMLP:     "fixture-mlp-1",
	}, reg.Versions())

	_, ok := reg.Model("svm")
	assert.False(t, ok)
}

func TestMalignantSampleScoresHighOnBothModels(t *testing.T) {
	scorer := diagnosis.NewScorer(loadFixtures(t))
	raw := sample(t, "malignant_sample.json")

	soft, _, err := scorer.ScoreRaw(raw, diagnosis.VariantSoftmax)
	require.NoError(t, err)
	assert.Equal(t, diagnosis.ClassMalignant, soft.Class)
	assert.Greater(t, soft.Confidence, 90.0)

	mlp, _, err := scorer.ScoreRaw(raw, diagnosis.VariantMLP)
	require.NoError(t, err)
	assert.Equal(t, diagnosis.ClassMalignant, mlp.Class)
	assert.Greater(t, mlp.Confidence, 90.0)
	require.NotNil(t, mlp.Risk)
	assert.Equal(t, diagnosis.RiskHigh, mlp.Risk.Level)
}

func TestBenignSampleScoresLow(t *testing.T) {
	scorer := diagnosis.NewScorer(loadFixtures(t))
	raw := sample(t, "benign_sample.json")

	soft, _, err := scorer.ScoreRaw(raw, diagnosis.VariantSoftmax)
	require.NoError(t, err)
	assert.Equal(t, diagnosis.ClassBenign, soft.Class)
	assert.InDelta(t, 0.0528, soft.Probability1, 0.001)

	mlp, _, err := scorer.ScoreRaw(raw, diagnosis.VariantMLP)
	require.NoError(t, err)
	assert.Equal(t, diagnosis.ClassBenign, mlp.Class)
	assert.InDelta(t, 0.1509, mlp.Probability1, 0.001)
	assert.Equal(t, diagnosis.RiskLow, mlp.Risk.Level)
}

func TestEmptyInputStillScores(t *testing.T) {
	scorer := diagnosis.NewScorer(loadFixtures(t))

	res, vec, err := scorer.ScoreRaw(features.Raw{}, diagnosis.VariantMLP)
	require.NoError(t, err)
	assert.Equal(t, make([]float64, features.Count), vec.Array())
	assert.InDelta(t, 1.0, res.Probability0+res.Probability1, 1e-9)
	assert.Equal(t, diagnosis.ClassBenign, res.Class)
}

func TestExtremeInputsStillScore(t *testing.T) {
	reg := loadFixtures(t)
	scorer := diagnosis.NewScorer(reg)

	for _, x := range []float64{1.7e308, -1.7e308} {
		raw := features.Raw{}
		for _, name := range features.Names {
			raw[name] = x
		}
		for _, variant := range reg.Variants() {
			res, _, err := scorer.ScoreRaw(raw, variant)
			require.NoError(t, err, "%s x=%v", variant, x)
			assert.InDelta(t, 1.0, res.Probability0+res.Probability1, 1e-6)
		}
	}
}

func TestBundleRejectsVariantMismatch(t *testing.T) {
	_, err := Load([]Source{{Variant: diagnosis.VariantMLP, ModelPath: fixture("softmax.json")}}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configured as mlp")
}

func TestBundleRejectsFeatureOrderMismatch(t *testing.T) {
	data, err := os.ReadFile(fixture("softmax.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	names := doc["features"].([]any)
	names[0], names[1] = names[1], names[0]

	path := filepath.Join(t.TempDir(), "swapped.json")
	writeJSON(t, path, doc)

	_, _, err = LoadModel(Source{Variant: diagnosis.VariantSoftmax, ModelPath: path}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature order")
}

func TestExplicitScalerOverridesBundle(t *testing.T) {
	dir := t.TempDir()
	scaler := map[string]any{"mean": make([]float64, features.Count), "scale": ones(features.Count)}
	scalerPath := filepath.Join(dir, "identity.json")
	writeJSON(t, scalerPath, scaler)

	m, _, err := LoadModel(Source{
		Variant:    diagnosis.VariantSoftmax,
		ModelPath:  fixture("softmax.json"),
		ScalerPath: scalerPath,
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, ones(features.Count), m.Scaler.Scale)
}

func TestLoadRejectsBadSources(t *testing.T) {
	cases := map[string]Source{
		"unknown extension": {Variant: diagnosis.VariantSoftmax, ModelPath: "model.pkl"},
		"missing file":      {Variant: diagnosis.VariantSoftmax, ModelPath: fixture("nope.json")},
		"onnx for softmax":  {Variant: diagnosis.VariantSoftmax, ModelPath: "model.onnx", ScalerPath: fixture("scaler.json")},
		"onnx missing file": {Variant: diagnosis.VariantMLP, ModelPath: fixture("nope.onnx"), ScalerPath: fixture("scaler.json")},
		"onnx no scaler":    {Variant: diagnosis.VariantMLP, ModelPath: fixture("mlp.onnx")},
		"safetensors mlp":   {Variant: diagnosis.VariantMLP, ModelPath: "model.safetensors"},
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]Source{src}, Options{})
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsDuplicateVariant(t *testing.T) {
	src := Source{Variant: diagnosis.VariantSoftmax, ModelPath: fixture("softmax.json")}
	_, err := Load([]Source{src, src}, Options{})
	assert.ErrorContains(t, err, "configured twice")
}

func TestSafetensorsSoftmaxMatchesBundle(t *testing.T) {
	var b bundle
	require.NoError(t, readJSON(fixture("softmax.json"), &b))

	path := filepath.Join(t.TempDir(), "softmax.safetensors")
	writeLinearSafetensors(t, path, b.Softmax.Weights, b.Softmax.Bias)

	st, _, err := LoadModel(Source{
		Variant:    diagnosis.VariantSoftmax,
		ModelPath:  path,
		ScalerPath: fixture("scaler.json"),
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "fixture-softmax-1", st.Version)

	js, _, err := LoadModel(Source{Variant: diagnosis.VariantSoftmax, ModelPath: fixture("softmax.json")}, Options{})
	require.NoError(t, err)

	vec, err := features.Normalize(sample(t, "benign_sample.json"))
	require.NoError(t, err)
	want, err := diagnosis.Score(vec, js)
	require.NoError(t, err)
	got, err := diagnosis.Score(vec, st)
	require.NoError(t, err)
	assert.Equal(t, want.Class, got.Class)
	assert.InDelta(t, want.Probability1, got.Probability1, 1e-5)
}

func TestSafetensorsRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.safetensors")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))
	_, err := readSafetensors(path)
	assert.ErrorContains(t, err, "too small")
}

func TestSafetensorsRejectsBadDtype(t *testing.T) {
	header := map[string]any{
		"linear.weight": map[string]any{"dtype": "I64", "shape": []int{1}, "data_offsets": []int{0, 8}},
	}
	path := filepath.Join(t.TempDir(), "int.safetensors")
	writeSafetensors(t, path, header, make([]byte, 8))

	st, err := readSafetensors(path)
	require.NoError(t, err)
	_, _, err = st.tensor("linear.weight")
	assert.ErrorContains(t, err, "dtype I64")
}

func TestSafetensorsRejectsMalformedRanges(t *testing.T) {
	cases := map[string]map[string]any{
		"negative dimension": {"dtype": "F32", "shape": []int{-1}, "data_offsets": []int{8, 4}},
		"start after end":    {"dtype": "F32", "shape": []int{0}, "data_offsets": []int{8, 4}},
		"negative start":     {"dtype": "F32", "shape": []int{1}, "data_offsets": []int{-4, 0}},
		"past the body":      {"dtype": "F32", "shape": []int{4}, "data_offsets": []int{0, 16}},
	}
	for name, meta := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.safetensors")
			writeSafetensors(t, path, map[string]any{"linear.weight": meta}, make([]byte, 8))

			st, err := readSafetensors(path)
			require.NoError(t, err)
			assert.NotPanics(t, func() {
				_, _, err = st.tensor("linear.weight")
			})
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsThreeClassSoftmax(t *testing.T) {
	var b bundle
	require.NoError(t, readJSON(fixture("softmax.json"), &b))
	w := append(b.Softmax.Weights, b.Softmax.Weights[0])
	bias := append(b.Softmax.Bias, 0)

	path := filepath.Join(t.TempDir(), "three.safetensors")
	writeLinearSafetensors(t, path, w, bias)

	_, _, err := LoadModel(Source{
		Variant:    diagnosis.VariantSoftmax,
		ModelPath:  path,
		ScalerPath: fixture("scaler.json"),
	}, Options{})
	assert.ErrorIs(t, err, diagnosis.ErrInvalidModel)
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// writeLinearSafetensors lays out a torch nn.Linear state dict as F32.
func writeLinearSafetensors(t *testing.T, path string, w [][]float64, b []float64) {
	t.Helper()
	var body bytes.Buffer
	for _, row := range w {
		for _, v := range row {
			require.NoError(t, binary.Write(&body, binary.LittleEndian, math.Float32bits(float32(v))))
		}
	}
	wEnd := body.Len()
	for _, v := range b {
		require.NoError(t, binary.Write(&body, binary.LittleEndian, math.Float32bits(float32(v))))
	}
	header := map[string]any{
		"__metadata__": map[string]string{"version": "fixture-softmax-1"},
		"linear.weight": map[string]any{
			"dtype": "F32", "shape": []int{len(w), len(w[0])}, "data_offsets": []int{0, wEnd},
		},
		"linear.bias": map[string]any{
			"dtype": "F32", "shape": []int{len(b)}, "data_offsets": []int{wEnd, body.Len()},
		},
	}
	writeSafetensors(t, path, header, body.Bytes())
}

func writeSafetensors(t *testing.T, path string, header map[string]any, body []byte) {
	t.Helper()
	hdr, err := json.Marshal(header)
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, binary.Write(&out, binary.LittleEndian, uint64(len(hdr))))
	out.Write(hdr)
	out.Write(body)
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))
}
