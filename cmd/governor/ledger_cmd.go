package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/assemblage-lab/governor/pkg/store/ledger"
)

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the reassembly action ledger",
	}
	cmd.AddCommand(ledgerListCmd(), ledgerVerifyCmd(), ledgerDocsCmd())
	return cmd
}

func ledgerListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded actions for --document-id",
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				l, err := a.openLedger(ctx)
				if err != nil {
					return err
				}
				entries, err := l.Entries(ctx, a.cfg.DocumentID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), entries)
				}

				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					_, _ = fmt.Fprintf(out, "No actions recorded for %s\n", a.cfg.DocumentID)
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "SEQ\tHASH\tACTION")
				for _, e := range entries {
					_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", e.Sequence, shortHash(e.Hash), describeAction(e.Action))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if err := ledger.Verify(entries); err != nil {
					_, _ = fmt.Fprintf(out, "Chain: BROKEN (%v)\n", err)
				} else {
					_, _ = fmt.Fprintln(out, "Chain: ok")
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("json", false, "Print entries as JSON")
	return cmd
}

func ledgerVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the hash chain of every document",
		Long: `Verify the hash chain of every document in the ledger.

Exit codes:
  0  all chains intact
  1  at least one chain is broken
  2  runtime error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				l, err := a.openLedger(ctx)
				if err != nil {
					return err
				}
				docs, err := l.Documents(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				broken := 0
				for _, id := range docs {
					entries, err := l.Entries(ctx, id)
					if err != nil {
						return err
					}
					if err := ledger.Verify(entries); err != nil {
						broken++
						_, _ = fmt.Fprintf(out, "FAIL %s: %v\n", id, err)
						continue
					}
					_, _ = fmt.Fprintf(out, "ok   %s (%d entries)\n", id, len(entries))
				}
				if broken > 0 {
					return &exitCodeError{code: exitUnresolved, err: fmt.Errorf("%d broken chain(s): %w", broken, ledger.ErrChainBroken)}
				}
				return nil
			})
		},
	}
}

func ledgerDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "List documents with recorded actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				l, err := a.openLedger(ctx)
				if err != nil {
					return err
				}
				docs, err := l.Documents(ctx)
				if err != nil {
					return err
				}
				for _, id := range docs {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
}
