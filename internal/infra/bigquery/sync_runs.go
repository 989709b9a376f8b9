package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

const syncRunsTable = "sync_runs"

type SyncRunRow struct {
	SyncRunID     string `bigquery:"sync_run_id"`    // REQUIRED
	SpreadsheetID string `bigquery:"spreadsheet_id"` // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string              `bigquery:"status"`        // REQUIRED
	ErrorMessage bigquery.NullString `bigquery:"error_message"` // NULLABLE

	ItemsSynced bigquery.NullInt64 `bigquery:"items_synced"` // NULLABLE
	ItemsFailed bigquery.NullInt64 `bigquery:"items_failed"` // NULLABLE
	RowsWritten bigquery.NullInt64 `bigquery:"rows_written"` // NULLABLE
	Padding     bigquery.NullInt64 `bigquery:"padding"`      // NULLABLE
}
