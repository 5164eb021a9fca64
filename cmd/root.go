// Package cmd wires the assistant's CLI: the HTTP server, the workbook
// importer and version info.
package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/munipolis/vasefirma-ai/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "vasefirma-ai",
	Short: "AI assistant backend for the Vaše Firma employee app",
	Long: `vasefirma-ai answers employee questions about the Vaše Firma app from
company documentation. It serves the chat widget's JSON API and ships the
documentation workbook into the vector index.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	// A local .env is a convenience for development; absence is fine.
	_ = godotenv.Load()
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG in the environment enables
// debug level; LOG_JSON switches to JSON output for log collectors.
func newLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if os.Getenv("LOG_JSON") != "" {
		cfg.JSON = true
	}
	return log.New(cfg)
}
