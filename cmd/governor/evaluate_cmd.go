package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/assemblage-lab/governor/pkg/contracts"
	"github.com/assemblage-lab/governor/pkg/escalation"
	"github.com/assemblage-lab/governor/pkg/intake"
)

// addDocumentFlags registers the inputs of one evaluation.
func addDocumentFlags(cmd *cobra.Command, required bool) {
	usage := "Analyzed document JSON (\"-\" for stdin)"
	if required {
		usage += " (REQUIRED)"
	}
	cmd.Flags().String("doc", "", usage)
	cmd.Flags().String("corpus", "", "Corpus snapshot JSON used for recurrence")
	cmd.Flags().String("exclude-id", "", "Corpus entry excluded from recurrence (default: --document-id)")
	cmd.Flags().Bool("offline", false, "Skip the Pattern Sentinel even when configured")
	if required {
		_ = cmd.MarkFlagRequired("doc")
	}
}

// evaluateDocument runs the pipeline for the --doc input and returns the
// store holding the effective status.
func evaluateDocument(ctx context.Context, cmd *cobra.Command, a *app) (*escalation.Store, contracts.EscalationStatus, error) {
	docPath, _ := cmd.Flags().GetString("doc")
	corpusPath, _ := cmd.Flags().GetString("corpus")
	excludeID, _ := cmd.Flags().GetString("exclude-id")
	offline, _ := cmd.Flags().GetBool("offline")

	doc, err := intake.ReadDocument(docPath)
	if err != nil {
		return nil, contracts.EscalationStatus{}, fmt.Errorf("read document: %w", err)
	}
	corpus, err := intake.ReadCorpus(corpusPath)
	if err != nil {
		return nil, contracts.EscalationStatus{}, fmt.Errorf("read corpus: %w", err)
	}
	if excludeID == "" {
		excludeID = a.cfg.DocumentID
	}

	store, err := a.store(ctx, offline)
	if err != nil {
		return nil, contracts.EscalationStatus{}, err
	}
	status := store.Evaluate(ctx, doc, corpus, escalation.WithExcludeID(excludeID))
	return store, status, nil
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Compute the effective escalation status of a document",
		Long: `Evaluate a document against the constitution and corpus, merge any
reassembly actions recorded for --document-id, and print the effective status.

Examples:
  governor evaluate --doc analysis.json --corpus corpus.json
  governor evaluate --doc - --json --strict < analysis.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			strict, _ := cmd.Flags().GetBool("strict")

			return withApp(cmd, func(ctx context.Context, a *app) error {
				store, status, err := evaluateDocument(ctx, cmd, a)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					if err := writeJSON(out, status); err != nil {
						return err
					}
				} else {
					printStatus(out, status)
				}

				if strict && store.HasUnresolvedRisks() {
					return &exitCodeError{code: exitUnresolved, err: errUnresolved}
				}
				return nil
			})
		},
	}
	addDocumentFlags(cmd, true)
	cmd.Flags().Bool("json", false, "Print the status as JSON")
	cmd.Flags().Bool("strict", false, "Exit 1 while an escalation is unresolved")
	return cmd
}
