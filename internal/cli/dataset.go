package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/compiletutor/internal/prompt"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Build fine-tuning data for local models",
}

var datasetGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write {input, output} pairs built from the common-error catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("count")
		outPath, _ := cmd.Flags().GetString("output")
		seed, _ := cmd.Flags().GetUint64("seed")
		if n <= 0 {
			return fmt.Errorf("--count must be positive")
		}
		if !cmd.Flags().Changed("seed") {
			seed = uint64(time.Now().UnixNano())
		}

		samples := prompt.GenerateDataset(n, seed)

		if outPath == "" || outPath == "-" {
			return prompt.WriteDataset(cmd.OutOrStdout(), samples)
		}
		if err := prompt.SaveDataset(outPath, samples); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d samples to %s\n", len(samples), outPath)
		return nil
	},
}

func init() {
	datasetGenerateCmd.Flags().IntP("count", "n", 50, "Number of samples")
	datasetGenerateCmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	datasetGenerateCmd.Flags().Uint64("seed", 0, "Random seed for a reproducible dataset")
	datasetCmd.AddCommand(datasetGenerateCmd)
}
