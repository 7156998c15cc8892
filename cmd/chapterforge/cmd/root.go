// Package cmd implements the chapterforge command-line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mlcook/chapterforge/internal/config"
	"github.com/mlcook/chapterforge/internal/observability"
	"github.com/mlcook/chapterforge/internal/version"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     version.ApplicationName,
	Short:   "Turn long-form audio into chapter-ready prose",
	Version: version.Short(),
	Long: `chapterforge is a durable pipeline that converts recorded talks into
edited, chapter-ready documents.

Each ingested URL becomes a job that moves through a fixed sequence of
stages: audio download, segment extraction, remote transcription,
paragraph formatting, metadata extraction, editing, evaluation, and
final chapter assembly. Every stage transition is recorded in the
database, so the process can be stopped and resumed at any point.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, /etc/chapterforge, $HOME/.chapterforge)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: json, text (overrides config)")
}

// loadConfig reads the configuration and applies CLI flag overrides.
// Priority: CLI flag > env var > config file > default.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

// newLogger builds the process logger from config and installs it as the
// slog default.
func newLogger(cfg *config.Config) *slog.Logger {
	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)
	return logger
}
