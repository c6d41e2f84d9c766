package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/assemblage-lab/governor/pkg/artifacts"
)

func (a *app) artifactStore(ctx context.Context) (artifacts.Store, error) {
	ac := a.cfg.Artifacts
	return artifacts.NewStore(ctx, artifacts.Config{
		Type:     artifacts.StoreType(ac.Type),
		Dir:      ac.Dir,
		Bucket:   ac.Bucket,
		Prefix:   ac.Prefix,
		Region:   ac.Region,
		Endpoint: ac.Endpoint,
	})
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the effective status as a content-addressed artifact",
		Long: `Evaluate the document, then store the effective status as canonical
JSON in the configured artifact store and print its content hash.

Examples:
  governor export --doc analysis.json --corpus corpus.json
  governor export show sha256:...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				_, status, err := evaluateDocument(ctx, cmd, a)
				if err != nil {
					return err
				}
				c, err := a.constitution()
				if err != nil {
					return err
				}
				store, err := a.artifactStore(ctx)
				if err != nil {
					return err
				}

				hash, err := artifacts.ExportStatus(ctx, store, artifacts.StatusEnvelope{
					DocumentID:          a.cfg.DocumentID,
					ConstitutionVersion: c.Version(),
					ExportedAt:          time.Now(),
					Status:              status,
				})
				if err != nil {
					return err
				}
				a.logger.InfoContext(ctx, "status exported", "document_id", a.cfg.DocumentID, "hash", hash, "store", a.cfg.Artifacts.Type)
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), hash)
				return nil
			})
		},
	}
	addDocumentFlags(cmd, true)
	cmd.AddCommand(exportShowCmd())
	return cmd
}

func exportShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <hash>",
		Short: "Load and verify an exported status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				store, err := a.artifactStore(ctx)
				if err != nil {
					return err
				}
				env, err := artifacts.LoadStatus(ctx, store, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), env)
			})
		},
	}
}
