package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/sheetsync/internal/blob"
	"github.com/dvloznov/sheetsync/internal/config"
	infraBQ "github.com/dvloznov/sheetsync/internal/infra/bigquery"
	"github.com/dvloznov/sheetsync/internal/links"
	"github.com/dvloznov/sheetsync/internal/logger"
	"github.com/dvloznov/sheetsync/internal/notionsync"
	"github.com/dvloznov/sheetsync/internal/plaid"
	"github.com/dvloznov/sheetsync/internal/reconcile"
	"github.com/dvloznov/sheetsync/internal/session"
	"github.com/dvloznov/sheetsync/internal/sheets"
	"github.com/dvloznov/sheetsync/internal/syncer"
)

// closers releases resources in reverse order of acquisition.
type closers []io.Closer

func (c *closers) add(cl io.Closer) { *c = append(*c, cl) }

func (c closers) Close() error {
	var first error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// spreadsheetID returns the configured id, or reads it from the sheet config blob.
func spreadsheetID(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Sheets.SpreadsheetID != "" {
		return cfg.Sheets.SpreadsheetID, nil
	}
	store, err := blob.NewStore(cfg.Sheets.ConfigFile)
	if err != nil {
		return "", fmt.Errorf("spreadsheetID: %w", err)
	}
	sc, err := links.LoadSheetConfig(ctx, store)
	if err != nil {
		return "", fmt.Errorf("spreadsheetID: %w", err)
	}
	return sc.SpreadsheetID, nil
}

// resolveEnv returns the Plaid environment named by flag, or the configured
// one when flag is empty.
func resolveEnv(flag string, cfg *config.Config) (string, error) {
	if flag == "" {
		return cfg.Plaid.Env, nil
	}
	if !config.ValidEnvironment(flag) {
		return "", fmt.Errorf("unknown Plaid environment %q (want one of %s)", flag, strings.Join(config.Environments, ", "))
	}
	return strings.ToLower(flag), nil
}

func newSheetClient(ctx context.Context, cfg *config.Config, id string) (*sheets.Client, error) {
	return sheets.NewClient(ctx, sheets.Config{
		SpreadsheetID:   id,
		SheetName:       cfg.Sheets.SheetName,
		SheetID:         cfg.Sheets.SheetID,
		CredentialsFile: cfg.Sheets.CredentialsFile,
	})
}

func newPlaidClient(cfg *config.Config, env string) *plaid.Client {
	return plaid.NewClient(plaid.ClientConfig{
		Environment:  env,
		ClientID:     cfg.Plaid.ClientID,
		Secret:       cfg.Plaid.SecretFor(env),
		CountryCodes: cfg.Plaid.CountryCodes,
		Timeout:      cfg.Plaid.Timeout,
		BaseURL:      cfg.Plaid.BaseURL,
	})
}

// itemLoader reads the token file on every call and keeps env's items.
func itemLoader(cfg *config.Config, env string) (syncer.ItemLoader, error) {
	store, err := blob.NewStore(cfg.Sync.TokensFile)
	if err != nil {
		return nil, fmt.Errorf("itemLoader: %w", err)
	}
	return func(ctx context.Context) ([]links.LinkedItem, error) {
		items, err := links.LoadLinkedItems(ctx, store)
		if err != nil {
			return nil, err
		}
		return links.FilterByEnvironment(items, env), nil
	}, nil
}

// syncDeps is everything a sync needs, built from configuration.
type syncDeps struct {
	spreadsheetID string
	sheet         *sheets.Client
	syncer        *syncer.Syncer
	loadItems     syncer.ItemLoader
	closers       closers
}

type syncParams struct {
	env     string
	numDays int
	order   string
	dryRun  bool
}

func buildSync(ctx context.Context, cfg *config.Config, p syncParams) (*syncDeps, error) {
	log := logger.FromContext(ctx)
	deps := &syncDeps{}

	order, err := reconcile.ParseSortPolicy(p.order)
	if err != nil {
		return nil, err
	}

	deps.spreadsheetID, err = spreadsheetID(ctx, cfg)
	if err != nil {
		return nil, err
	}
	deps.sheet, err = newSheetClient(ctx, cfg, deps.spreadsheetID)
	if err != nil {
		return nil, err
	}
	deps.loadItems, err = itemLoader(cfg, p.env)
	if err != nil {
		return nil, err
	}

	deps.syncer = syncer.New(newPlaidClient(cfg, p.env), deps.sheet, syncer.Options{
		NumDays:       p.numDays,
		Order:         order,
		DryRun:        p.dryRun,
		SpreadsheetID: deps.spreadsheetID,
	})

	if cfg.LedgerEnabled() {
		repo, err := infraBQ.NewSyncRunRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
		if err != nil {
			// The ledger is optional; a sync still runs without it.
			log.Warn().Err(err).Msg("sync-run ledger disabled")
		} else {
			deps.closers.add(repo)
			deps.syncer.WithLedger(repo)
		}
	}

	if cfg.MirrorEnabled() {
		mirror := notionsync.NewMirror(notionsync.NewNotionClient(cfg.Notion.Token), cfg.Notion.DatabaseID, p.dryRun)
		deps.syncer.WithMirror(mirror)
	}

	return deps, nil
}

// openSession opens the configured session store scoped to identity.
func openSession(ctx context.Context, cfg *config.Config, identity string) (session.Store, io.Closer, error) {
	store, err := session.New(cfg.Session.Backend, cfg.Session.BoltPath)
	if err != nil {
		return nil, nil, err
	}
	closer, ok := store.(io.Closer)
	if !ok {
		closer = nopCloser{}
	}
	if err := store.RegisterIdentity(ctx, identity); err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return store, closer, nil
}
