package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Skufu/GoCyto/internal/config"
	"github.com/Skufu/GoCyto/internal/extractor"
	"github.com/Skufu/GoCyto/internal/features"
	"github.com/Skufu/GoCyto/internal/logging"
)

type extractOutput struct {
	Model     string       `json:"model"`
	Extracted int          `json:"features_extracted"`
	Features  features.Raw `json:"features"`
}

func newExtractCmd() *cobra.Command {
	var (
		provider string
		model    string
		out      string
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "extract <report.txt|->",
		Short: "Extract cytology features from a free-text report",
		Long:  "Send a report to the configured language model and print the feature mapping it returns. Provider credentials are read from the environment.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadExtractor()
			if err != nil {
				return err
			}
			if provider != "" {
				cfg.Provider = strings.ToLower(provider)
				cfg.APIKey = os.Getenv(strings.ToUpper(cfg.Provider) + "_API_KEY")
			}
			if model != "" {
				cfg.Model = model
			}
			if !cfg.Enabled() {
				return fmt.Errorf("no extractor configured: set EXTRACTOR_PROVIDER or --provider")
			}

			level := "warn"
			if verbose {
				level = "debug"
			}
			logger, err := logging.New(level, "console")
			if err != nil {
				return err
			}
			defer logger.Sync()

			p, err := extractor.NewProvider(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			ex := extractor.New(p, extractor.WithTimeout(cfg.Timeout), extractor.WithLogger(logger))

			report, err := readInput(cmd, args[0])
			if err != nil {
				return fmt.Errorf("read report: %w", err)
			}
			raw, err := ex.Extract(cmd.Context(), string(report))
			if err != nil {
				return err
			}
			logger.Debug("report extracted", zap.Int("present", features.CountPresent(raw)))

			result := extractOutput{Model: ex.Model(), Extracted: features.CountPresent(raw), Features: raw}
			if out == "" {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := writeJSON(f, result); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "extraction provider (groq/openai/anthropic/gemini/mock)")
	cmd.Flags().StringVar(&model, "llm-model", "", "provider model name (provider default when empty)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the result to a file instead of stdout")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log provider calls")

	return cmd
}
