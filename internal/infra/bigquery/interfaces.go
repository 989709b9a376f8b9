package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sheetsync/internal/domain"
)

// SyncRunRepository records sync runs in BigQuery. It holds a shared client
// to avoid creating a new connection for each operation.
type SyncRunRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewSyncRunRepository creates a repository with a shared BigQuery client.
func NewSyncRunRepository(ctx context.Context, projectID, datasetID string) (*SyncRunRepository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewSyncRunRepository: project id is required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewSyncRunRepository: creating client: %w", err)
	}
	return &SyncRunRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *SyncRunRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// StartSyncRun delegates to StartSyncRunWithClient with the shared client.
func (r *SyncRunRepository) StartSyncRun(ctx context.Context, spreadsheetID string) (string, error) {
	return StartSyncRunWithClient(ctx, r.client, r.datasetID, spreadsheetID)
}

// MarkSyncRunSucceeded delegates to MarkSyncRunSucceededWithClient with the shared client.
func (r *SyncRunRepository) MarkSyncRunSucceeded(ctx context.Context, syncRunID string, stats domain.SyncStats) error {
	return MarkSyncRunSucceededWithClient(ctx, r.client, r.datasetID, syncRunID, stats)
}

// MarkSyncRunFailed delegates to MarkSyncRunFailedWithClient with the shared client.
func (r *SyncRunRepository) MarkSyncRunFailed(ctx context.Context, syncRunID string, runErr error) {
	MarkSyncRunFailedWithClient(ctx, r.client, r.datasetID, syncRunID, runErr)
}

// ListRecentSyncRuns delegates to ListRecentSyncRunsWithClient with the shared client.
func (r *SyncRunRepository) ListRecentSyncRuns(ctx context.Context, limit int) ([]*SyncRunRow, error) {
	return ListRecentSyncRunsWithClient(ctx, r.client, r.projectID, r.datasetID, limit)
}

// Migrate applies pending schema migrations.
func (r *SyncRunRepository) Migrate(ctx context.Context, appliedBy string) (int, error) {
	return MigrateWithClient(ctx, r.client, r.projectID, r.datasetID, appliedBy)
}

// EnsureTable creates the ledger tables when they do not exist yet.
func (r *SyncRunRepository) EnsureTable(ctx context.Context) error {
	if _, err := r.Migrate(ctx, "sheetsync"); err != nil {
		return fmt.Errorf("EnsureTable: %w", err)
	}
	return nil
}
