package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(name string) string {
	return filepath.Join("..", "..", "testdata", "models", name)
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range newRootCmd().Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"score", "extract", "migrate"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestScoreSoftmax(t *testing.T) {
	out, err := execute(t, "", "score", "--model", "softmax",
		"--model-path", fixture("softmax.json"), fixture("malignant_sample.json"))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "softmax", got["model"])
	assert.Equal(t, 1.0, got["class"])
	assert.Equal(t, "Malignant", got["diagnosis"])
	assert.NotContains(t, got, "risk")
	assert.NotContains(t, got, "missing_features")
}

func TestScoreMLPFromStdin(t *testing.T) {
	out, err := execute(t, `{"mean radius": 11.0, "patient": "P-7"}`, "score", "-m", "dso3",
		"--model-path", fixture("mlp.json"), "-")
	require.NoError(t, err)

	var got struct {
		Model   string         `json:"model"`
		Risk    map[string]any `json:"risk"`
		Missing []string       `json:"missing_features"`
		Extras  map[string]any `json:"extra_fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "mlp", got.Model)
	require.NotNil(t, got.Risk)
	assert.Contains(t, []any{"Low", "Medium", "High"}, got.Risk["risk_level_en"])
	assert.Len(t, got.Missing, 29)
	assert.NotContains(t, got.Missing, "radius_mean")
	assert.Equal(t, map[string]any{"patient": "P-7"}, got.Extras)
}

func TestScoreErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		in   string
	}{
		{"unknown model", []string{"score", "-m", "svm", "--model-path", fixture("softmax.json"), "-"}, "{}"},
		{"missing artifact", []string{"score", "--model-path", filepath.Join(t.TempDir(), "none.json"), "-"}, "{}"},
		{"not an object", []string{"score", "--model-path", fixture("softmax.json"), "-"}, "[]"},
		{"boolean feature", []string{"score", "--model-path", fixture("softmax.json"), "-"}, `{"area_mean": false}`},
		{"no argument", []string{"score"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.in, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestExtractWithMockProvider(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "features.json")
	_, err := execute(t, "Masse de 2 cm, contours irréguliers.", "extract", "--provider", "mock", "-o", outFile, "-")
	require.NoError(t, err)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var got extractOutput
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "mock", got.Model)
	assert.Equal(t, 0, got.Extracted)
	assert.Len(t, got.Features, 30)
}

func TestExtractRequiresProvider(t *testing.T) {
	t.Setenv("EXTRACTOR_PROVIDER", "none")
	_, err := execute(t, "rapport", "extract", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no extractor configured")
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := execute(t, "", "migrate", "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
