package domain

// Sync run statuses recorded in the ledger.
const (
	SyncRunRunning   = "RUNNING"
	SyncRunSucceeded = "SUCCESS"
	SyncRunFailed    = "FAILED"
)

// SyncStats summarizes one completed sync.
type SyncStats struct {
	ItemsSynced int `json:"items_synced"`
	ItemsFailed int `json:"items_failed"`
	RowsWritten int `json:"rows_written"`
	Padding     int `json:"padding"`
}
