package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Skufu/GoCyto/internal/diagnosis"
	"github.com/Skufu/GoCyto/internal/features"
	"github.com/Skufu/GoCyto/internal/registry"
)

// scoreOutput is a result plus the normalization report.
type scoreOutput struct {
	diagnosis.Result
	Missing []string       `json:"missing_features,omitempty"`
	Extras  map[string]any `json:"extra_fields,omitempty"`
}

func newScoreCmd() *cobra.Command {
	var (
		model      string
		modelPath  string
		scalerPath string
		onnxLib    string
	)

	cmd := &cobra.Command{
		Use:   "score <features.json|->",
		Short: "Score a feature mapping with one model",
		Long:  "Normalize a JSON feature mapping and score it with the softmax or MLP model. Missing features are zero-filled and listed in the output.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			variant, err := diagnosis.ParseVariant(model)
			if err != nil {
				return err
			}
			if modelPath == "" {
				modelPath = defaultModelPath(variant)
			}

			m, closer, err := registry.LoadModel(registry.Source{
				Variant:    variant,
				ModelPath:  modelPath,
				ScalerPath: scalerPath,
			}, registry.Options{ONNXRuntimeLib: onnxLib})
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}

			data, err := readInput(cmd, args[0])
			if err != nil {
				return fmt.Errorf("read features: %w", err)
			}
			raw, err := features.ParseRaw(data)
			if err != nil {
				return err
			}
			res, v, err := diagnosis.NewScorer(registry.New(m)).ScoreRaw(raw, variant)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), scoreOutput{
				Result:  res,
				Missing: features.Missing(raw),
				Extras:  v.Extras(),
			})
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", string(diagnosis.VariantSoftmax), "model to score with (softmax/mlp)")
	cmd.Flags().StringVar(&modelPath, "model-path", "", "model artifact (.json, .safetensors or .onnx)")
	cmd.Flags().StringVar(&scalerPath, "scaler-path", "", "scaler JSON, required for .safetensors and .onnx artifacts")
	cmd.Flags().StringVar(&onnxLib, "onnx-lib", "", "path to the ONNX Runtime shared library")

	return cmd
}

func defaultModelPath(v diagnosis.Variant) string {
	return fmt.Sprintf("models/%s.json", v)
}
