package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sitescout/internal/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available on OpenRouter",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.OpenRouterAPIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required to list models")
		}
		client := llm.NewOpenRouterClient(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, nil)
		models, err := client.ListModels(cmd.Context())
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			out, err := json.MarshalIndent(models, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCONTEXT\tREASONING")
		for _, m := range models {
			fmt.Fprintf(w, "%s\t%d\t%v\n", m.ID, m.ContextWindow, m.SupportsReasoning)
		}
		return w.Flush()
	},
}

func init() {
	modelsCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(modelsCmd)
}
