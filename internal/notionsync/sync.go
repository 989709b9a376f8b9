package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/sheetsync/internal/domain"
	"github.com/dvloznov/sheetsync/internal/logger"
	"github.com/jomei/notionapi"
)

// queryPageSize is the Notion maximum for database queries.
const queryPageSize = 100

// MirrorStats summarizes one mirror pass.
type MirrorStats struct {
	Created  int
	Archived int
	Skipped  int
	Failed   int
	// Unmanaged counts pages without a transaction id; they are left alone.
	Unmanaged int
}

// Mirror keeps a Notion database in step with the merged sheet contents.
type Mirror struct {
	service    NotionService
	databaseID string
	dryRun     bool
}

// NewMirror creates a Mirror writing to the given database.
func NewMirror(service NotionService, databaseID string, dryRun bool) *Mirror {
	return &Mirror{
		service:    service,
		databaseID: databaseID,
		dryRun:     dryRun,
	}
}

// MirrorTransactions makes the database hold one page per record:
// pages whose transaction id is not in records (superseded pendings, pages
// from older runs) are archived, records without a page are created.
// Per-page failures are logged and counted, not returned.
func (m *Mirror) MirrorTransactions(ctx context.Context, records []domain.TransactionRecord) (MirrorStats, error) {
	log := logger.FromContext(ctx)
	var stats MirrorStats

	log.Info().
		Int("records", len(records)).
		Bool("dry_run", m.dryRun).
		Msg("Starting Notion mirror")

	valid := make(map[string]bool, len(records))
	for i := range records {
		valid[records[i].TransactionID] = true
	}

	pages, err := queryAllNotionPages(ctx, m.service, m.databaseID)
	if err != nil {
		return stats, fmt.Errorf("MirrorTransactions: %w", err)
	}

	existing := make(map[string]bool, len(pages))
	for _, page := range pages {
		txID := extractTransactionID(page)
		if txID == "" {
			stats.Unmanaged++
			continue
		}

		if valid[txID] && !existing[txID] {
			existing[txID] = true
			continue
		}

		// Stale or duplicate page.
		if m.dryRun {
			log.Info().
				Str("transaction_id", txID).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive Notion page")
			stats.Archived++
			continue
		}
		if err := m.service.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("transaction_id", txID).
				Str("page_id", string(page.ID)).
				Msg("Failed to archive Notion page")
			stats.Failed++
			continue
		}
		stats.Archived++
	}

	for i := range records {
		rec := &records[i]
		if existing[rec.TransactionID] {
			stats.Skipped++
			continue
		}
		// Guards against duplicate ids within records.
		existing[rec.TransactionID] = true

		if m.dryRun {
			log.Info().
				Str("transaction_id", rec.TransactionID).
				Msg("[DRY RUN] Would create Notion page")
			stats.Created++
			continue
		}

		page, err := m.service.CreatePage(ctx, m.databaseID, RecordToNotionProperties(rec))
		if err != nil {
			log.Warn().
				Err(err).
				Str("transaction_id", rec.TransactionID).
				Msg("Failed to create Notion page")
			stats.Failed++
			continue
		}
		log.Debug().
			Str("transaction_id", rec.TransactionID).
			Str("page_id", string(page.ID)).
			Msg("Created Notion page")
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("archived", stats.Archived).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("Notion mirror completed")

	return stats, nil
}

// queryAllNotionPages returns every page of the database, following cursors.
func queryAllNotionPages(ctx context.Context, service NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: queryPageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := service.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
