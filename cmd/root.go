package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Rishwanth-M/finboard/internal/config"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "finboard.yaml", "Path to YAML config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")
}

var rootCmd = &cobra.Command{
	Use:           "finboard",
	Short:         "Finboard: a dashboard over arbitrary JSON APIs",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if logLevel != "" {
			loaded.LogLevel = logLevel
		}
		level, err := config.ParseLevel(loaded.LogLevel)
		if err != nil {
			return err
		}

		cfg = loaded
		// Logs go to stderr so stdout stays clean for command output and MCP.
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
