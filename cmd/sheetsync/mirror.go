package main

import (
	"fmt"

	"github.com/dvloznov/sheetsync/internal/domain"
	"github.com/dvloznov/sheetsync/internal/notionsync"
	"github.com/spf13/cobra"
)

func newMirrorCmd(root *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Mirror the current sheet contents into the Notion database",
		Long: `Read the sheet as it is now and make the Notion database match it:
pages for transactions no longer in the sheet are archived and missing
transactions get a new page. No Plaid calls are made.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			if !cfg.MirrorEnabled() {
				return fmt.Errorf("mirror: NOTION_TOKEN and NOTION_DATABASE_ID are required")
			}
			ctx := cmd.Context()

			id, err := spreadsheetID(ctx, cfg)
			if err != nil {
				return err
			}
			sheet, err := newSheetClient(ctx, cfg, id)
			if err != nil {
				return err
			}
			rows, err := sheet.ReadRows(ctx)
			if err != nil {
				return err
			}
			records, _, err := domain.RecordsFromRows(rows)
			if err != nil {
				return err
			}

			mirror := notionsync.NewMirror(notionsync.NewNotionClient(cfg.Notion.Token), cfg.Notion.DatabaseID, dryRun)
			stats, err := mirror.MirrorTransactions(ctx, records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Notion: %d created, %d archived, %d unchanged, %d failed, %d untouched without id\n",
				stats.Created, stats.Archived, stats.Skipped, stats.Failed, stats.Unmanaged)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log changes without applying them")
	return cmd
}
