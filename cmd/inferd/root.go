package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var logLevelFlag string

var rootCmd = &cobra.Command{
	Use:   "inferd",
	Short: "Local LLM inference daemon",
	Long: `inferd serves text generation from local model files over HTTP.

The daemon scans a models directory, loads models on demand inside a
memory budget and streams completions as NDJSON. The generate and
models subcommands are thin clients for a running daemon.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn or error")
}

// Execute runs the CLI. Errors are printed here because the command
// tree silences cobra's own reporting.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
