// Package main is the entry point for the sitescout CLI: an HTTP task API
// plus one-shot exploration from the terminal.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sitescout/internal/config"
	"sitescout/internal/logging"
)

var (
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sitescout",
	Short: "Explore a website until a free-text goal is satisfied",
	Long: `sitescout walks a website from a start URL, scoring links against a goal
and extracting the content that best satisfies it.

Run "sitescout serve" for the task API or "sitescout explore" for a single run.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		cfg = loaded

		logger, err = logging.New(cfg.Environment, cfg.LogLevel)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (yaml, toml or json); environment variables take precedence")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
