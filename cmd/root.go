// Package cmd wires the placemate CLI: serve, migrate, and version.
package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/campushq/placemate/internal/config"
	"github.com/campushq/placemate/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "placemate",
	Short: "PlaceMate - placement cell chat assistant service",
	Long: `PlaceMate serves a retrieval-augmented chat assistant for a college
placement cell. Admins upload placement documents, students and faculty
ask questions over HTTP, and structured queries like eligibility checks
are answered directly from placement records.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfigAndLogger loads configuration and installs the default logger.
func loadConfigAndLogger() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level: parseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	slog.SetDefault(logger)

	return cfg, logger, nil
}

// parseLevel maps a config string to a slog level, defaulting to info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
