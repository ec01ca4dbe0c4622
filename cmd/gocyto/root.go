package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gocyto",
		Short:         "Breast cytology decision support tools",
		Long:          "Score fine-needle aspirate features, extract them from free-text reports and manage the consultation database.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newScoreCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newMigrateCmd())

	return cmd
}

// readInput reads a file argument, or stdin when it is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
