package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/assemblage-lab/governor/pkg/contracts"
	"github.com/assemblage-lab/governor/pkg/intake"
)

func actCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "act",
		Short: "Record a reassembly action for a document",
		Long: `Append a reviewer action to the document's ledger. Actions are never
edited or removed once recorded.

With --doc the document is evaluated first and the updated effective status
is printed; otherwise only the ledger entry is printed.

Examples:
  governor act mitigate --strategy MITIGATION_SCOPE --rationale "Limited to pilot regions"
  governor act justify --argument "Normative framing is intended"
  governor act defer --reason EPISTEMIC_GAP --rationale "No local data yet"
  governor act reevaluate --previous 0.8 --new 0.4
  governor act record --file action.json`,
	}

	for _, sub := range []*cobra.Command{mitigateCmd(), justifyCmd(), deferCmd(), reevaluateCmd(), recordCmd()} {
		addDocumentFlags(sub, false)
		cmd.AddCommand(sub)
	}
	return cmd
}

func mitigateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mitigate",
		Short: "Resolve the escalation with a mitigation strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, _ := cmd.Flags().GetString("strategy")
			rationale, _ := cmd.Flags().GetString("rationale")
			return recordAction(cmd, contracts.NewMitigation(strings.ToUpper(strategy), rationale, time.Now()))
		},
	}
	cmd.Flags().String("strategy", contracts.StrategyCustom, "MITIGATION_CONTEXT, MITIGATION_SCOPE, MITIGATION_ACTORS or MITIGATION_CUSTOM")
	cmd.Flags().String("rationale", "", "What was changed")
	return cmd
}

func justifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "justify",
		Short: "Resolve the escalation by arguing the finding is valid nuance",
		RunE: func(cmd *cobra.Command, args []string) error {
			argument, _ := cmd.Flags().GetString("argument")
			if strings.TrimSpace(argument) == "" {
				return fmt.Errorf("--argument is required")
			}
			return recordAction(cmd, contracts.NewJustification(argument, time.Now()))
		},
	}
	cmd.Flags().String("argument", "", "Why the flagged content stands (REQUIRED)")
	return cmd
}

func deferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defer",
		Short: "Defer the escalation as a printed limitation",
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			rationale, _ := cmd.Flags().GetString("rationale")
			return recordAction(cmd, contracts.NewDeferral(contracts.DeferralReason(strings.ToUpper(reason)), rationale, time.Now()))
		},
	}
	cmd.Flags().String("reason", "", "STRUCTURAL_LIMIT, SCOPE_LIMIT or EPISTEMIC_GAP (REQUIRED)")
	cmd.Flags().String("rationale", "", "Limitation text printed with the document")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func reevaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reevaluate",
		Short: "Record a score change without changing the status",
		RunE: func(cmd *cobra.Command, args []string) error {
			prev, _ := cmd.Flags().GetFloat64("previous")
			next, _ := cmd.Flags().GetFloat64("new")
			rationale, _ := cmd.Flags().GetString("rationale")
			return recordAction(cmd, contracts.NewReEvaluation(prev, next, rationale, time.Now()))
		},
	}
	cmd.Flags().Float64("previous", 0, "Score before re-evaluation (REQUIRED)")
	cmd.Flags().Float64("new", 0, "Score after re-evaluation (REQUIRED)")
	cmd.Flags().String("rationale", "", "Optional note")
	_ = cmd.MarkFlagRequired("previous")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}

func recordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record an action from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			action, err := intake.Action(raw)
			if err != nil {
				return err
			}
			return recordAction(cmd, action)
		},
	}
	cmd.Flags().String("file", "", "Reassembly action JSON (REQUIRED)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func recordAction(cmd *cobra.Command, action contracts.ReassemblyAction) error {
	if err := action.Validate(); err != nil {
		return err
	}
	docPath, _ := cmd.Flags().GetString("doc")

	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()

		if docPath != "" {
			store, _, err := evaluateDocument(ctx, cmd, a)
			if err != nil {
				return err
			}
			if err := store.AddReassemblyAction(ctx, action); err != nil {
				return err
			}
			status, _ := store.Status()
			printStatus(out, status)
			return nil
		}

		l, err := a.openLedger(ctx)
		if err != nil {
			return err
		}
		entry, err := l.Append(ctx, a.cfg.DocumentID, action)
		if err != nil {
			return err
		}
		a.logger.InfoContext(ctx, "reassembly action recorded", "document_id", entry.DocumentID, "sequence", entry.Sequence, "type", action.Type)
		_, _ = fmt.Fprintf(out, "Recorded #%d for %s: %s\n", entry.Sequence, entry.DocumentID, describeAction(entry.Action))
		_, _ = fmt.Fprintf(out, "Hash: %s\n", entry.Hash)
		return nil
	})
}
