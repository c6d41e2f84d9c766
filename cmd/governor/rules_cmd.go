package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the active constitution",
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				c, err := a.constitution()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(out, map[string]any{
						"version": c.Version(),
						"rules":   c.Rules(),
					})
				}

				_, _ = fmt.Fprintf(out, "Constitution v%s (%d rules)\n\n", c.Version(), c.Len())
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "ID\tLEVEL\tCODE\tSOURCE\tDESCRIPTION")
				for _, r := range c.Rules() {
					source := "-"
					if r.Meta != nil {
						source = fmt.Sprintf("%s/v%d", r.Meta.Source, r.Meta.Version)
					}
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Consequence.Level, r.Consequence.Code, source, r.Description)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().Bool("json", false, "Print the constitution as JSON")
	return cmd
}
