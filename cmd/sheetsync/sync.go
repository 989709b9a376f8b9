package main

import (
	"errors"
	"fmt"

	"github.com/dvloznov/sheetsync/internal/logger"
	"github.com/dvloznov/sheetsync/internal/plaid"
	"github.com/dvloznov/sheetsync/internal/syncer"
	"github.com/spf13/cobra"
)

func newSyncCmd(root *rootOptions) *cobra.Command {
	var (
		days   int
		env    string
		order  string
		dryRun bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch transactions and write the merged table to the sheet",
		Long: `Fetch transactions for every linked item over the lookback window,
merge them with the rows already in the sheet and write the result back.

Items that fail to fetch are reported and skipped; their pending rows are kept.

Example:
  sheetsync sync
  sheetsync sync --days 90 --order pending-last
  sheetsync sync --env production --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			log := logger.FromContext(ctx)

			// --env only changes this run; the configured environment stays.
			env, err = resolveEnv(env, cfg)
			if err != nil {
				return err
			}
			if days <= 0 {
				days = cfg.Sync.NumDays
			}
			if order == "" {
				order = cfg.Sync.Order
			}

			deps, err := buildSync(ctx, cfg, syncParams{env: env, numDays: days, order: order, dryRun: dryRun})
			if err != nil {
				return err
			}
			defer deps.closers.Close()

			sess, closer, err := openSession(ctx, cfg, deps.spreadsheetID)
			if err != nil {
				return err
			}
			defer closer.Close()
			throttle := &syncer.Throttle{Store: sess, Interval: cfg.Sync.MinInterval}

			if !force && !dryRun {
				if err := throttle.Allow(ctx); err != nil {
					if errors.Is(err, syncer.ErrThrottled) {
						return fmt.Errorf("%w (use --force to sync anyway)", err)
					}
					return err
				}
			}

			items, err := deps.loadItems(ctx)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				log.Warn().Str("env", env).Msg("no linked items for environment")
			}

			result, err := deps.syncer.Sync(ctx, items)
			if err != nil {
				return err
			}
			if !dryRun {
				if err := throttle.Record(ctx); err != nil {
					log.Warn().Err(err).Msg("could not record last sync")
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Synced %d item(s), %d row(s), %d blank row(s) [%s..%s]\n",
				result.ItemsSynced, result.RowsWritten, result.Padding, result.Start, result.End)
			for _, f := range result.Failures {
				hint := ""
				if plaid.IsItemLoginRequired(f.Err) {
					hint = " (re-link required)"
				}
				fmt.Fprintf(out, "  failed %s%s: %v\n", f.ItemID, hint, f.Err)
			}
			if dryRun {
				fmt.Fprintln(out, "Dry run: nothing was written")
				return nil
			}
			if url, err := deps.sheet.SpreadsheetURL(ctx); err == nil {
				fmt.Fprintln(out, url)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "lookback window in days (default SYNC_NUM_DAYS)")
	cmd.Flags().StringVar(&env, "env", "", "Plaid environment for this run (default PLAID_ENV)")
	cmd.Flags().StringVar(&order, "order", "", "pending-first or pending-last (default SYNC_ORDER)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and merge without writing")
	cmd.Flags().BoolVar(&force, "force", false, "ignore the minimum interval between syncs")
	return cmd
}
