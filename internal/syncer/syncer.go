// Package syncer runs one sync cycle: read the sheet, fetch every linked
// item, reconcile, and write the merged table back.
package syncer

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sheetsync/internal/domain"
	"github.com/dvloznov/sheetsync/internal/links"
	"github.com/dvloznov/sheetsync/internal/logger"
	"github.com/dvloznov/sheetsync/internal/normalize"
	"github.com/dvloznov/sheetsync/internal/notionsync"
	"github.com/dvloznov/sheetsync/internal/plaid"
	"github.com/dvloznov/sheetsync/internal/reconcile"
	"github.com/dvloznov/sheetsync/internal/sheets"
)

// DefaultNumDays is the lookback window when none is configured.
const DefaultNumDays = 30

// TransactionSource fetches raw transactions and institution metadata.
type TransactionSource interface {
	GetTransactions(ctx context.Context, accessToken string, start, end civil.Date) (*plaid.TransactionsResponse, error)
	GetInstitution(ctx context.Context, institutionID string) (*plaid.Institution, error)
}

// RunRecorder keeps a ledger of sync runs.
type RunRecorder interface {
	StartSyncRun(ctx context.Context, spreadsheetID string) (string, error)
	MarkSyncRunSucceeded(ctx context.Context, syncRunID string, stats domain.SyncStats) error
	MarkSyncRunFailed(ctx context.Context, syncRunID string, runErr error)
}

// Mirror receives the merged records after a successful write.
type Mirror interface {
	MirrorTransactions(ctx context.Context, records []domain.TransactionRecord) (notionsync.MirrorStats, error)
}

// Options tunes one sync.
type Options struct {
	// NumDays is the lookback window; values <= 0 use DefaultNumDays.
	NumDays int
	Order   reconcile.SortPolicy
	// DryRun fetches and reconciles but writes nothing.
	DryRun bool
	// SpreadsheetID is recorded in the ledger.
	SpreadsheetID string
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// Syncer wires a transaction source to a tabular store.
type Syncer struct {
	source TransactionSource
	store  sheets.TabularStore
	ledger RunRecorder
	mirror Mirror
	opts   Options
}

// New creates a Syncer. Ledger and mirror are attached with WithLedger and
// WithMirror.
func New(source TransactionSource, store sheets.TabularStore, opts Options) *Syncer {
	if opts.NumDays <= 0 {
		opts.NumDays = DefaultNumDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer{source: source, store: store, opts: opts}
}

// WithLedger records every non dry-run sync through r.
func (s *Syncer) WithLedger(r RunRecorder) *Syncer {
	s.ledger = r
	return s
}

// WithMirror mirrors the merged records after each successful write.
func (s *Syncer) WithMirror(m Mirror) *Syncer {
	s.mirror = m
	return s
}

// Options returns the options in effect.
func (s *Syncer) Options() Options {
	return s.opts
}

// ItemFailure is an item whose transactions could not be fetched or normalized.
type ItemFailure struct {
	ItemID string
	Err    error
}

// Result summarizes a sync.
type Result struct {
	RunID       string
	Start, End  civil.Date
	ItemsSynced int
	Failures    []ItemFailure
	// Records is the merged table content, in sheet order.
	Records     []domain.TransactionRecord
	RowsWritten int
	Padding     int
	DryRun      bool
}

// Stats converts the result to the ledger form.
func (r *Result) Stats() domain.SyncStats {
	return domain.SyncStats{
		ItemsSynced: r.ItemsSynced,
		ItemsFailed: len(r.Failures),
		RowsWritten: r.RowsWritten,
		Padding:     r.Padding,
	}
}

// Window returns the inclusive date range [today-numDays, today].
func Window(now time.Time, numDays int) (civil.Date, civil.Date) {
	end := civil.DateOf(now)
	return end.AddDays(-numDays), end
}

// Sync runs one cycle over items. Per-item failures are logged and reported
// in Result.Failures. Reading or parsing the sheet aborts before anything is
// written; write and formatting errors are returned.
func (s *Syncer) Sync(ctx context.Context, items []links.LinkedItem) (*Result, error) {
	log := logger.FromContext(ctx)

	start, end := Window(s.opts.Now(), s.opts.NumDays)
	result := &Result{Start: start, End: end, DryRun: s.opts.DryRun}

	if s.ledger != nil && !s.opts.DryRun {
		runID, err := s.ledger.StartSyncRun(ctx, s.opts.SpreadsheetID)
		if err != nil {
			log.Warn().Err(err).Msg("could not record sync run start")
		} else {
			result.RunID = runID
			log = log.With().Str("run_id", runID).Logger()
			ctx = logger.WithContext(ctx, log)
		}
	}

	if err := s.run(ctx, items, result); err != nil {
		if result.RunID != "" {
			s.ledger.MarkSyncRunFailed(ctx, result.RunID, err)
		}
		return result, err
	}

	if result.RunID != "" {
		if err := s.ledger.MarkSyncRunSucceeded(ctx, result.RunID, result.Stats()); err != nil {
			log.Warn().Err(err).Msg("could not record sync run result")
		}
	}
	return result, nil
}

func (s *Syncer) run(ctx context.Context, items []links.LinkedItem, result *Result) error {
	log := logger.FromContext(ctx)

	log.Info().
		Str("start", result.Start.String()).
		Str("end", result.End.String()).
		Int("items", len(items)).
		Str("order", s.opts.Order.String()).
		Bool("dry_run", s.opts.DryRun).
		Msg("Starting sync")

	rows, err := s.store.ReadRows(ctx)
	if err != nil {
		return fmt.Errorf("Sync: reading sheet: %w", err)
	}
	existing, err := reconcile.TableFromRows(rows)
	if err != nil {
		return fmt.Errorf("Sync: parsing sheet: %w", err)
	}
	log.Info().
		Int("existing", len(existing.Records)).
		Int("blank", existing.Padding).
		Msg("Read existing rows")

	var incoming []domain.TransactionRecord
	for _, item := range items {
		records, err := s.fetchItem(ctx, item, result.Start, result.End)
		if err != nil {
			log.Warn().
				Err(err).
				Str("item_id", item.ItemID).
				Msg("Skipping item")
			result.Failures = append(result.Failures, ItemFailure{ItemID: item.ItemID, Err: err})
			continue
		}
		log.Info().
			Str("item_id", item.ItemID).
			Int("transactions", len(records)).
			Msg("Fetched item")
		incoming = append(incoming, records...)
		result.ItemsSynced++
	}

	merged := reconcile.Merge(existing, incoming, s.opts.Order)
	result.Records = merged.Records
	result.RowsWritten = len(merged.Records)
	result.Padding = merged.Padding

	if s.opts.DryRun {
		log.Info().
			Int("rows", result.RowsWritten).
			Int("padding", result.Padding).
			Msg("[DRY RUN] Would write rows")
		return nil
	}

	if err := s.store.WriteRows(ctx, merged.Values()); err != nil {
		return fmt.Errorf("Sync: writing sheet: %w", err)
	}
	if err := s.store.ApplyFormatting(ctx, merged.Header()); err != nil {
		return fmt.Errorf("Sync: formatting sheet: %w", err)
	}
	log.Info().
		Int("rows", result.RowsWritten).
		Int("padding", result.Padding).
		Int("failed_items", len(result.Failures)).
		Msg("Sync completed")

	if s.mirror != nil {
		if _, err := s.mirror.MirrorTransactions(ctx, merged.Records); err != nil {
			log.Warn().Err(err).Msg("Notion mirror failed")
		}
	}
	return nil
}

// fetchItem fetches and normalizes one item's transactions over [start, end].
func (s *Syncer) fetchItem(ctx context.Context, item links.LinkedItem, start, end civil.Date) ([]domain.TransactionRecord, error) {
	resp, err := s.source.GetTransactions(ctx, item.AccessToken, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching transactions: %w", err)
	}

	meta := normalize.ItemMetadata{
		ItemID:        resp.Item.ItemID,
		InstitutionID: resp.Item.InstitutionID,
	}
	if meta.ItemID == "" {
		meta.ItemID = item.ItemID
	}
	if meta.InstitutionID != "" {
		inst, err := s.source.GetInstitution(ctx, meta.InstitutionID)
		if err != nil {
			return nil, fmt.Errorf("looking up institution %s: %w", meta.InstitutionID, err)
		}
		meta.InstitutionName = inst.Name
	}

	accounts := make([]normalize.Account, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		accounts = append(accounts, normalize.Account{AccountID: a.AccountID, Name: a.Name})
	}

	records, err := normalize.Normalize(resp.Transactions, normalize.NewAccountLookup(accounts), meta)
	if err != nil {
		return nil, err
	}
	return records, nil
}
