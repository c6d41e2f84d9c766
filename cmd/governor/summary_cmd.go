package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/assemblage-lab/governor/pkg/intake"
	"github.com/assemblage-lab/governor/pkg/recurrence"
)

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize persisted risk across a corpus",
		Long: `Count the escalation statuses persisted on each corpus entry and list
the dominant logics that recur.

Examples:
  governor summary --corpus corpus.json
  governor summary --corpus corpus.json --top 10 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("corpus")
			top, _ := cmd.Flags().GetInt("top")
			asJSON, _ := cmd.Flags().GetBool("json")

			return withApp(cmd, func(ctx context.Context, a *app) error {
				corpus, err := intake.ReadCorpus(path)
				if err != nil {
					return fmt.Errorf("read corpus: %w", err)
				}
				stats := recurrence.Summarize(corpus)
				patterns := recurrence.TopPatterns(corpus, top)

				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(out, map[string]any{
						"stats":    stats,
						"patterns": patterns,
					})
				}

				_, _ = fmt.Fprintf(out, "Documents:       %d\n", stats.Total)
				_, _ = fmt.Fprintf(out, "High:            %d\n", stats.High)
				_, _ = fmt.Fprintf(out, "Medium:          %d\n", stats.Medium)
				_, _ = fmt.Fprintf(out, "Low:             %d\n", stats.Low)
				_, _ = fmt.Fprintf(out, "Requires action: %d\n", stats.RequiresAction)
				if len(patterns) == 0 {
					return nil
				}
				_, _ = fmt.Fprintln(out, "\nRecurring logics:")
				for _, p := range patterns {
					_, _ = fmt.Fprintf(out, "  %dx %s (%s)\n", p.Count, p.Logic, strings.Join(p.Sources, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().String("corpus", "", "Corpus snapshot JSON (REQUIRED)")
	cmd.Flags().Int("top", 5, "Number of recurring logics to list")
	cmd.Flags().Bool("json", false, "Print as JSON")
	_ = cmd.MarkFlagRequired("corpus")
	return cmd
}
