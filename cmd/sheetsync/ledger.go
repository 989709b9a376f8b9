package main

import (
	"fmt"
	"text/tabwriter"

	infraBQ "github.com/dvloznov/sheetsync/internal/infra/bigquery"
	"github.com/spf13/cobra"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	var appliedBy string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the BigQuery sync-run ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			if !cfg.LedgerEnabled() {
				return fmt.Errorf("migrate: BIGQUERY_PROJECT_ID is required")
			}
			ctx := cmd.Context()

			repo, err := infraBQ.NewSyncRunRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
			if err != nil {
				return err
			}
			defer repo.Close()

			n, err := repo.Migrate(ctx, appliedBy)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) to %s.%s\n", n, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
			return nil
		},
	}
	cmd.Flags().StringVar(&appliedBy, "applied-by", "sheetsync-migrate", "name recorded with each applied migration")
	return cmd
}

func newRunsCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent sync runs from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			if !cfg.LedgerEnabled() {
				return fmt.Errorf("runs: BIGQUERY_PROJECT_ID is required")
			}
			ctx := cmd.Context()

			repo, err := infraBQ.NewSyncRunRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
			if err != nil {
				return err
			}
			defer repo.Close()

			runs, err := repo.ListRecentSyncRuns(ctx, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tSTATUS\tITEMS\tFAILED\tROWS\tERROR")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
					r.StartedTS.Format("2006-01-02 15:04"),
					r.Status,
					r.ItemsSynced.Int64,
					r.ItemsFailed.Int64,
					r.RowsWritten.Int64,
					r.ErrorMessage.StringVal,
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}
