package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sheetsync/internal/domain"
	"github.com/dvloznov/sheetsync/internal/links"
	"github.com/dvloznov/sheetsync/internal/notionsync"
	"github.com/dvloznov/sheetsync/internal/plaid"
	"github.com/dvloznov/sheetsync/internal/reconcile"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)

type fakeSource struct {
	responses    map[string]*plaid.TransactionsResponse
	errs         map[string]error
	institutions map[string]string
	instErr      error
	start, end   civil.Date
}

func (f *fakeSource) GetTransactions(ctx context.Context, accessToken string, start, end civil.Date) (*plaid.TransactionsResponse, error) {
	f.start, f.end = start, end
	if err := f.errs[accessToken]; err != nil {
		return nil, err
	}
	resp, ok := f.responses[accessToken]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return resp, nil
}

func (f *fakeSource) GetInstitution(ctx context.Context, institutionID string) (*plaid.Institution, error) {
	if f.instErr != nil {
		return nil, f.instErr
	}
	return &plaid.Institution{InstitutionID: institutionID, Name: f.institutions[institutionID]}, nil
}

type fakeStore struct {
	rows      [][]string
	readErr   error
	writeErr  error
	formatErr error
	written   [][]string
	header    []string
	writes    int
}

func (f *fakeStore) ReadRows(ctx context.Context) ([][]string, error) {
	return f.rows, f.readErr
}

func (f *fakeStore) WriteRows(ctx context.Context, rows [][]string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes++
	f.written = rows
	return nil
}

func (f *fakeStore) ApplyFormatting(ctx context.Context, header []string) error {
	f.header = header
	return f.formatErr
}

type fakeLedger struct {
	started   int
	succeeded *domain.SyncStats
	failed    error
	startErr  error
}

func (f *fakeLedger) StartSyncRun(ctx context.Context, spreadsheetID string) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started++
	return "run-1", nil
}

func (f *fakeLedger) MarkSyncRunSucceeded(ctx context.Context, syncRunID string, stats domain.SyncStats) error {
	f.succeeded = &stats
	return nil
}

func (f *fakeLedger) MarkSyncRunFailed(ctx context.Context, syncRunID string, runErr error) {
	f.failed = runErr
}

type fakeMirror struct {
	records []domain.TransactionRecord
	err     error
}

func (f *fakeMirror) MirrorTransactions(ctx context.Context, records []domain.TransactionRecord) (notionsync.MirrorStats, error) {
	f.records = records
	return notionsync.MirrorStats{Created: len(records)}, f.err
}

func rawTx(id, account string, pending bool, datetime, name string) map[string]interface{} {
	return map[string]interface{}{
		"transaction_id": id,
		"account_id":     account,
		"date":           datetime[:10],
		"datetime":       datetime,
		"amount":         12.5,
		"pending":        pending,
		"name":           name,
	}
}

func response(itemID string, txs ...map[string]interface{}) *plaid.TransactionsResponse {
	return &plaid.TransactionsResponse{
		Accounts:     []plaid.Account{{AccountID: "acc-" + itemID, Name: "Checking " + itemID}},
		Transactions: txs,
		Item:         plaid.Item{ItemID: itemID, InstitutionID: "ins_1"},
	}
}

func sheetRows(records ...domain.TransactionRecord) [][]string {
	rows := [][]string{domain.Header()}
	for i := range records {
		rows = append(rows, records[i].Row())
	}
	return rows
}

func existingRecord(id, item string, pending bool, dt time.Time) domain.TransactionRecord {
	return domain.TransactionRecord{
		TransactionID: id,
		ItemID:        item,
		Pending:       pending,
		Date:          civil.DateOf(dt),
		Datetime:      dt,
		Name:          "existing " + id,
		Amount:        decimal.NewFromInt(3),
	}
}

func TestWindow(t *testing.T) {
	start, end := Window(fixedNow, 30)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.February, Day: 9}, start)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 10}, end)
}

func TestSync_MergesAndWrites(t *testing.T) {
	source := &fakeSource{
		responses: map[string]*plaid.TransactionsResponse{
			"access-sandbox-a": response("A",
				rawTx("t2", "acc-A", false, "2024-03-09T10:00:00Z", "settled"),
				rawTx("t1", "acc-A", false, "2024-03-08T10:00:00Z", "older"),
			),
		},
		institutions: map[string]string{"ins_1": "First Platypus Bank"},
	}
	store := &fakeStore{rows: sheetRows(
		existingRecord("p1", "A", true, time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)),
		existingRecord("t1", "A", false, time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC)),
		existingRecord("x1", "B", true, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)),
	)}
	mirror := &fakeMirror{}

	s := New(source, store, Options{NumDays: 30, Order: reconcile.PendingFirst, Now: func() time.Time { return fixedNow }}).
		WithMirror(mirror)

	result, err := s.Sync(context.Background(), []links.LinkedItem{{ItemID: "A", AccessToken: "access-sandbox-a"}})
	require.NoError(t, err)

	assert.Equal(t, civil.Date{Year: 2024, Month: time.February, Day: 9}, source.start)
	assert.Equal(t, 1, result.ItemsSynced)
	assert.Empty(t, result.Failures)

	// p1 is superseded by item A's fresh batch; x1 belongs to another item.
	var ids []string
	for _, r := range result.Records {
		ids = append(ids, r.TransactionID)
	}
	assert.Equal(t, []string{"x1", "t2", "t1"}, ids)
	assert.Equal(t, "existing t1", result.Records[2].Name)
	assert.Equal(t, "First Platypus Bank", result.Records[1].InstitutionName)
	assert.Equal(t, "Checking A", result.Records[1].AccountName)

	assert.Equal(t, 3, result.RowsWritten)
	assert.Equal(t, 0, result.Padding)
	require.Len(t, store.written, 4)
	assert.Equal(t, domain.Header(), store.written[0])
	assert.Equal(t, domain.Header(), store.header)
	assert.Len(t, mirror.records, 3)
}

func TestSync_ShrinkingTableIsPadded(t *testing.T) {
	source := &fakeSource{
		responses: map[string]*plaid.TransactionsResponse{
			"tok": response("A", rawTx("t9", "acc-A", false, "2024-03-09T10:00:00Z", "settled")),
		},
	}
	store := &fakeStore{rows: sheetRows(
		existingRecord("p1", "A", true, time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)),
		existingRecord("p2", "A", true, time.Date(2024, 3, 9, 9, 0, 0, 0, time.UTC)),
	)}

	s := New(source, store, Options{Now: func() time.Time { return fixedNow }})
	result, err := s.Sync(context.Background(), []links.LinkedItem{{ItemID: "A", AccessToken: "tok"}})
	require.NoError(t, err)

	assert.Equal(t, 1, result.RowsWritten)
	assert.Equal(t, 1, result.Padding)
	require.Len(t, store.written, 3)
	assert.Equal(t, domain.BlankRow(), store.written[2])
}

func TestSync_ItemFailureIsSkipped(t *testing.T) {
	source := &fakeSource{
		responses: map[string]*plaid.TransactionsResponse{
			"good": response("A", rawTx("t1", "acc-A", false, "2024-03-09T10:00:00Z", "ok")),
		},
		errs: map[string]error{
			"bad": &plaid.APIError{StatusCode: 400, ErrorType: "ITEM_ERROR", ErrorCode: "ITEM_LOGIN_REQUIRED"},
		},
	}
	pendingB := existingRecord("pb", "B", true, time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC))
	store := &fakeStore{rows: sheetRows(pendingB)}

	s := New(source, store, Options{Now: func() time.Time { return fixedNow }})
	result, err := s.Sync(context.Background(), []links.LinkedItem{
		{ItemID: "B", AccessToken: "bad"},
		{ItemID: "A", AccessToken: "good"},
	})
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "B", result.Failures[0].ItemID)
	assert.True(t, plaid.IsItemLoginRequired(result.Failures[0].Err))
	assert.Equal(t, 1, result.ItemsSynced)

	// A failed item supersedes nothing, so its pending row stays.
	var ids []string
	for _, r := range result.Records {
		ids = append(ids, r.TransactionID)
	}
	assert.ElementsMatch(t, []string{"pb", "t1"}, ids)
	assert.Equal(t, 1, store.writes)
}

func TestSync_NormalizeFailureSkipsItem(t *testing.T) {
	source := &fakeSource{
		responses: map[string]*plaid.TransactionsResponse{
			"tok": response("A", rawTx("t1", "acc-unknown", false, "2024-03-09T10:00:00Z", "orphan")),
		},
	}
	store := &fakeStore{}

	s := New(source, store, Options{Now: func() time.Time { return fixedNow }})
	result, err := s.Sync(context.Background(), []links.LinkedItem{{ItemID: "A", AccessToken: "tok"}})
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 0, result.ItemsSynced)
	assert.Empty(t, result.Records)
}

func TestSync_InstitutionLookupFailureSkipsItem(t *testing.T) {
	source := &fakeSource{
		responses: map[string]*plaid.TransactionsResponse{
			"tok": response("A", rawTx("t1", "acc-A", false, "2024-03-09T10:00:00Z", "x")),
		},
		instErr: errors.New("institution not found"),
	}
	s := New(source, &fakeStore{}, Options{Now: func() time.Time { return fixedNow }})

	result, err := s.Sync(context.Background(), []links.LinkedItem{{ItemID: "A", AccessToken: "tok"}})
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Err.Error(), "ins_1")
}

func TestSync_ReadFailureAborts(t *testing.T) {
	store := &fakeStore{readErr: errors.New("403 forbidden")}
	ledger := &fakeLedger{}
	s := New(&fakeSource{}, store, Options{Now: func() time.Time { return fixedNow }}).WithLedger(ledger)

	_, err := s.Sync(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading sheet")
	assert.Equal(t, 0, store.writes)
	assert.Error(t, ledger.failed)
	assert.Nil(t, ledger.succeeded)
}

func TestSync_ParseFailureAborts(t *testing.T) {
	store := &fakeStore{rows: [][]string{{"name", "amount"}, {"x", "1"}}}
	s := New(&fakeSource{}, store, Options{Now: func() time.Time { return fixedNow }})

	_, err := s.Sync(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing sheet")
	assert.Equal(t, 0, store.writes)
}

func TestSync_WriteAndFormatErrorsAreReturned(t *testing.T) {
	s := New(&fakeSource{}, &fakeStore{writeErr: errors.New("quota")}, Options{Now: func() time.Time { return fixedNow }})
	_, err := s.Sync(context.Background(), nil)
	assert.ErrorContains(t, err, "writing sheet")

	s = New(&fakeSource{}, &fakeStore{formatErr: errors.New("bad request")}, Options{Now: func() time.Time { return fixedNow }})
	_, err = s.Sync(context.Background(), nil)
	assert.ErrorContains(t, err, "formatting sheet")
}

func TestSync_DryRunWritesNothing(t *testing.T) {
	source := &fakeSource{
		responses: map[string]*plaid.TransactionsResponse{
			"tok": response("A", rawTx("t1", "acc-A", false, "2024-03-09T10:00:00Z", "x")),
		},
	}
	store := &fakeStore{}
	ledger := &fakeLedger{}
	mirror := &fakeMirror{}
	s := New(source, store, Options{DryRun: true, Now: func() time.Time { return fixedNow }}).
		WithLedger(ledger).
		WithMirror(mirror)

	result, err := s.Sync(context.Background(), []links.LinkedItem{{ItemID: "A", AccessToken: "tok"}})
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Len(t, result.Records, 1)
	assert.Equal(t, 0, store.writes)
	assert.Nil(t, store.header)
	assert.Nil(t, mirror.records)
	assert.Equal(t, 0, ledger.started)
}

func TestSync_RecordsLedger(t *testing.T) {
	source := &fakeSource{
		responses: map[string]*plaid.TransactionsResponse{
			"tok": response("A", rawTx("t1", "acc-A", false, "2024-03-09T10:00:00Z", "x")),
		},
		errs: map[string]error{"bad": errors.New("timeout")},
	}
	ledger := &fakeLedger{}
	s := New(source, &fakeStore{}, Options{Now: func() time.Time { return fixedNow }}).WithLedger(ledger)

	result, err := s.Sync(context.Background(), []links.LinkedItem{
		{ItemID: "A", AccessToken: "tok"},
		{ItemID: "B", AccessToken: "bad"},
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", result.RunID)
	require.NotNil(t, ledger.succeeded)
	assert.Equal(t, domain.SyncStats{ItemsSynced: 1, ItemsFailed: 1, RowsWritten: 1}, *ledger.succeeded)
}

func TestSync_LedgerAndMirrorFailuresDoNotFailSync(t *testing.T) {
	ledger := &fakeLedger{startErr: errors.New("bigquery down")}
	mirror := &fakeMirror{err: errors.New("notion down")}
	store := &fakeStore{}
	s := New(&fakeSource{}, store, Options{Now: func() time.Time { return fixedNow }}).
		WithLedger(ledger).
		WithMirror(mirror)

	result, err := s.Sync(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.RunID)
	assert.Equal(t, 1, store.writes)
}
