package main

import (
	"github.com/dvloznov/sheetsync/internal/config"
	"github.com/dvloznov/sheetsync/internal/logger"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sheetsync",
		Short: "Sync bank transactions from Plaid into Google Sheets",
		Long: `sheetsync fetches transactions for every linked Plaid item, reconciles
them with the rows already in the spreadsheet and writes the merged table back.

Pending transactions are replaced once their item reports fresh data, rows
already in the sheet are never duplicated, and the table is kept sorted.

Example:
  sheetsync sync --days 30
  sheetsync sync --env development --dry-run
  sheetsync serve`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "env file to load (default .env when present)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newSyncCmd(opts),
		newItemsCmd(opts),
		newServeCmd(opts),
		newMigrateCmd(opts),
		newRunsCmd(opts),
		newMirrorCmd(opts),
		newSheetCmd(opts),
	)
	return cmd
}

// load reads the configuration and attaches the configured logger to the
// command context.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.debug {
		cfg.Log.Level = "debug"
	}

	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	cmd.SetContext(logger.WithContext(cmd.Context(), log))
	return cfg, nil
}
