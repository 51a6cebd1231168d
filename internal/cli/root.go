package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var (
	configPath     string
	verbose        bool
	backendKindArg string
)

var rootCmd = &cobra.Command{
	Use:   "tutor",
	Short: "tutor — explains C/C++ compiler errors without handing out the fix",
	Long: `tutor compiles and runs a C or C++ file, then asks a language model to explain
what happened: why a compile error occurs, what a crash means, or why a
working program works. Answers give at most a few small hints and never a
full corrected program. Follow-up questions continue the same conversation.

Configuration is read from ./tutor.yaml or ~/.tutor/config.yaml. API keys may
live in a .env file in the working directory.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which is cancelled on interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print progress to stderr")
	rootCmd.PersistentFlags().StringVar(&backendKindArg, "backend", "", "backend kind: remote, subprocess or embedded (overrides config)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(datasetCmd)
	rootCmd.AddCommand(templatesCmd)
}
