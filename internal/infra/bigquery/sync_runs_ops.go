package bigquery

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sheetsync/internal/domain"
	"github.com/dvloznov/sheetsync/internal/logger"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const maxErrorMessageLen = 2000

// runQuery runs a DML statement and waits for it to finish.
func runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func startSyncRunSQL(datasetID string) string {
	return fmt.Sprintf(`
		INSERT %s.%s (
			sync_run_id,
			spreadsheet_id,
			started_ts,
			status
		)
		VALUES (
			@sync_run_id,
			@spreadsheet_id,
			@started_ts,
			@status
		)
	`, datasetID, syncRunsTable)
}

func markSucceededSQL(datasetID string) string {
	return fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = "",
		    items_synced = @items_synced,
		    items_failed = @items_failed,
		    rows_written = @rows_written,
		    padding = @padding
		WHERE sync_run_id = @sync_run_id
	`, datasetID, syncRunsTable)
}

func markFailedSQL(datasetID string) string {
	return fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE sync_run_id = @sync_run_id
	`, datasetID, syncRunsTable)
}

func listRecentSQL(projectID, datasetID string) string {
	return fmt.Sprintf(`
		SELECT
			sync_run_id,
			spreadsheet_id,
			started_ts,
			finished_ts,
			status,
			error_message,
			items_synced,
			items_failed,
			rows_written,
			padding
		FROM `+"`%s.%s.%s`"+`
		ORDER BY started_ts DESC
		LIMIT @limit
	`, projectID, datasetID, syncRunsTable)
}

// truncateError bounds the stored error text to maxErrorMessageLen bytes
// without splitting a UTF-8 sequence.
func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) <= maxErrorMessageLen {
		return msg
	}
	cut := maxErrorMessageLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

// StartSyncRunWithClient inserts a RUNNING row and returns its generated id.
func StartSyncRunWithClient(ctx context.Context, client *bigquery.Client, datasetID, spreadsheetID string) (string, error) {
	syncRunID := uuid.NewString()

	q := client.Query(startSyncRunSQL(datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "sync_run_id", Value: syncRunID},
		{Name: "spreadsheet_id", Value: spreadsheetID},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: domain.SyncRunRunning},
	}

	if err := runQuery(ctx, q); err != nil {
		return "", fmt.Errorf("StartSyncRun: %w", err)
	}
	return syncRunID, nil
}

// MarkSyncRunSucceededWithClient sets status=SUCCESS, finished_ts and the run stats.
func MarkSyncRunSucceededWithClient(ctx context.Context, client *bigquery.Client, datasetID, syncRunID string, stats domain.SyncStats) error {
	q := client.Query(markSucceededSQL(datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: domain.SyncRunSucceeded},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "items_synced", Value: stats.ItemsSynced},
		{Name: "items_failed", Value: stats.ItemsFailed},
		{Name: "rows_written", Value: stats.RowsWritten},
		{Name: "padding", Value: stats.Padding},
		{Name: "sync_run_id", Value: syncRunID},
	}

	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("MarkSyncRunSucceeded: %w", err)
	}
	return nil
}

// MarkSyncRunFailedWithClient sets status=FAILED, finished_ts and error_message.
// Failures are logged, not returned.
func MarkSyncRunFailedWithClient(ctx context.Context, client *bigquery.Client, datasetID, syncRunID string, runErr error) {
	log := logger.FromContext(ctx)

	q := client.Query(markFailedSQL(datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: domain.SyncRunFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: truncateError(runErr)},
		{Name: "sync_run_id", Value: syncRunID},
	}

	if err := runQuery(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("sync_run_id", syncRunID).
			Msg("MarkSyncRunFailed: update failed")
	}
}

// ListRecentSyncRunsWithClient returns the latest runs, newest first.
func ListRecentSyncRunsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, limit int) ([]*SyncRunRow, error) {
	if limit <= 0 {
		limit = 20
	}

	q := client.Query(listRecentSQL(projectID, datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecentSyncRuns: reading query: %w", err)
	}

	var runs []*SyncRunRow
	for {
		var row SyncRunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecentSyncRuns: iterating: %w", err)
		}
		runs = append(runs, &row)
	}
	return runs, nil
}
