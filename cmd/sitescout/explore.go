package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"sitescout/internal/explore"
	"sitescout/internal/logging"
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Run one exploration and print the result as JSON",
	Long: `Explore fetches --url, follows the links most likely to satisfy --goal and
prints the final payload to stdout. Progress is logged to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		startURL, _ := cmd.Flags().GetString("url")
		goal, _ := cmd.Flags().GetString("goal")
		maxPages, _ := cmd.Flags().GetInt("max-pages")
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		if strings.TrimSpace(startURL) == "" || strings.TrimSpace(goal) == "" {
			return fmt.Errorf("--url and --goal are required")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		explorer, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer explorer.Close()

		payload := explorer.controller.Explore(ctx, explore.Request{
			StartURL:  startURL,
			Goal:      goal,
			MaxPages:  maxPages,
			BatchSize: batchSize,
		}, logging.EventObserver(logger))

		out, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		if payload.Failed() {
			return fmt.Errorf("exploration failed")
		}
		return nil
	},
}

func init() {
	exploreCmd.Flags().String("url", "", "start URL")
	exploreCmd.Flags().String("goal", "", "what to look for, in plain language")
	exploreCmd.Flags().Int("max-pages", 0, "page budget (0 uses MAX_PAGES)")
	exploreCmd.Flags().Int("batch-size", 0, "pages per batch (0 uses BATCH_SIZE)")

	rootCmd.AddCommand(exploreCmd)
}
