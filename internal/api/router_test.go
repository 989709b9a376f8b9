package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sheetsync/internal/domain"
	"github.com/dvloznov/sheetsync/internal/jobs"
	"github.com/dvloznov/sheetsync/internal/jobs/inmemory"
	"github.com/dvloznov/sheetsync/internal/logger"
	"github.com/dvloznov/sheetsync/internal/syncer"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGate struct{ err error }

func (g *fakeGate) Allow(ctx context.Context) error { return g.err }

type fakeSheet struct {
	rows [][]string
	err  error
}

func (f *fakeSheet) ReadRows(ctx context.Context) ([][]string, error) { return f.rows, f.err }

func (f *fakeSheet) WriteRows(ctx context.Context, rows [][]string) error { return nil }

func (f *fakeSheet) ApplyFormatting(ctx context.Context, header []string) error { return nil }

type testServer struct {
	handler http.Handler
	store   *inmemory.Store
	queue   *inmemory.Queue
}

func newTestServer(t *testing.T, gate *fakeGate, sheet *fakeSheet) *testServer {
	t.Helper()
	store := inmemory.NewStore()
	// Never started, so published jobs stay pending.
	queue := inmemory.NewQueue(inmemory.Options{BufferSize: 4}, store)
	t.Cleanup(func() { _ = queue.Close() })

	deps := Deps{Publisher: queue, JobStore: store, Sheet: sheet}
	if gate != nil {
		deps.Gate = gate
	}
	return &testServer{
		handler: NewRouter(deps, logger.NewWithWriter(&strings.Builder{})),
		store:   store,
		queue:   queue,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, &fakeSheet{})

	rec := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestEnqueueSync(t *testing.T) {
	s := newTestServer(t, &fakeGate{}, &fakeSheet{})

	rec := s.do(t, http.MethodPost, "/api/sync", `{"num_days": 7}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job jobs.SyncJob
	decode(t, rec, &job)
	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, 7, job.NumDays)
	assert.Equal(t, jobs.JobStatusPending, job.Status)

	stored, err := s.store.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, 7, stored.NumDays)
}

func TestEnqueueSync_EmptyBody(t *testing.T) {
	s := newTestServer(t, nil, &fakeSheet{})

	rec := s.do(t, http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestEnqueueSync_BadRequests(t *testing.T) {
	s := newTestServer(t, nil, &fakeSheet{})

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/sync", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/sync", `{"num_days": -1}`).Code)
}

func TestEnqueueSync_Throttled(t *testing.T) {
	gate := &fakeGate{err: fmt.Errorf("%w: next sync allowed after later", syncer.ErrThrottled)}
	s := newTestServer(t, gate, &fakeSheet{})

	rec := s.do(t, http.MethodPost, "/api/sync", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "throttled")

	// Dry runs write nothing and skip the throttle.
	rec = s.do(t, http.MethodPost, "/api/sync", `{"dry_run": true}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestEnqueueSync_GateError(t *testing.T) {
	s := newTestServer(t, &fakeGate{err: errors.New("bolt closed")}, &fakeSheet{})

	rec := s.do(t, http.MethodPost, "/api/sync", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestEnqueueSync_ConflictWhileQueued(t *testing.T) {
	s := newTestServer(t, nil, &fakeSheet{})

	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/sync", `{}`).Code)

	rec := s.do(t, http.MethodPost, "/api/sync", `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func newStartedServer(t *testing.T, handler jobs.JobHandler) (http.Handler, *inmemory.Store) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(inmemory.Options{BufferSize: 32}, store)
	require.NoError(t, queue.Start(ctx, handler))
	t.Cleanup(func() {
		cancel()
		_ = queue.Close()
	})

	router := NewRouter(Deps{Publisher: queue, JobStore: store, Sheet: &fakeSheet{}}, logger.NewWithWriter(&strings.Builder{}))
	return router, store
}

func postSync(handler http.Handler) int {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{}`)))
	return rec.Code
}

func TestEnqueueSync_WithRunningWorker(t *testing.T) {
	handler, store := newStartedServer(t, func(ctx context.Context, job *jobs.SyncJob) error {
		job.RunID = "run"
		job.Stats = &domain.SyncStats{RowsWritten: 1}
		return nil
	})

	accepted := 0
	for i := 0; i < 20; i++ {
		code := postSync(handler)
		require.Contains(t, []int{http.StatusAccepted, http.StatusConflict}, code)
		if code == http.StatusAccepted {
			accepted++
		}
	}
	require.Positive(t, accepted)

	require.Eventually(t, func() bool {
		done, err := store.ListJobs(context.Background(), jobs.JobFilter{Status: jobs.JobStatusCompleted})
		return err == nil && len(done) == accepted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEnqueueSync_ConcurrentRequestsQueueOneJob(t *testing.T) {
	release := make(chan struct{})
	handler, _ := newStartedServer(t, func(ctx context.Context, job *jobs.SyncJob) error {
		<-release
		return nil
	})
	defer close(release)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code := postSync(handler)
			mu.Lock()
			codes[code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, codes[http.StatusAccepted])
	assert.Equal(t, 7, codes[http.StatusConflict])
}

func TestJobsEndpoints(t *testing.T) {
	s := newTestServer(t, nil, &fakeSheet{})
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.store.SaveJob(ctx, &jobs.SyncJob{JobID: "old", Status: jobs.JobStatusCompleted, CreatedAt: base}))
	require.NoError(t, s.store.SaveJob(ctx, &jobs.SyncJob{JobID: "new", Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Hour), Error: "boom"}))

	rec := s.do(t, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Jobs  []jobs.SyncJob `json:"jobs"`
		Count int            `json:"count"`
	}
	decode(t, rec, &list)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "new", list.Jobs[0].JobID)

	rec = s.do(t, http.MethodGet, "/api/jobs?status=completed&limit=5", "")
	decode(t, rec, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "old", list.Jobs[0].JobID)

	rec = s.do(t, http.MethodGet, "/api/jobs/new", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var job jobs.SyncJob
	decode(t, rec, &job)
	assert.Equal(t, "boom", job.Error)

	rec = s.do(t, http.MethodGet, "/api/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTransactions(t *testing.T) {
	records := []domain.TransactionRecord{
		{TransactionID: "t1", ItemID: "A", Pending: true, Name: "coffee", Amount: decimal.RequireFromString("4.5"), Date: civil.Date{Year: 2024, Month: 3, Day: 2}},
		{TransactionID: "t2", ItemID: "B", Name: "rent", Amount: decimal.RequireFromString("1200"), Date: civil.Date{Year: 2024, Month: 3, Day: 1}},
	}
	rows := [][]string{domain.Header()}
	for i := range records {
		rows = append(rows, records[i].Row())
	}
	rows = append(rows, domain.BlankRow())

	s := newTestServer(t, nil, &fakeSheet{rows: rows})

	var body struct {
		Transactions []domain.TransactionRecord `json:"transactions"`
		Count        int                        `json:"count"`
		BlankRows    int                        `json:"blank_rows"`
	}

	rec := s.do(t, http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, 1, body.BlankRows)
	assert.True(t, body.Transactions[1].Amount.Equal(decimal.NewFromInt(1200)))

	rec = s.do(t, http.MethodGet, "/api/transactions?item_id=B", "")
	decode(t, rec, &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "t2", body.Transactions[0].TransactionID)

	rec = s.do(t, http.MethodGet, "/api/transactions?pending=true", "")
	decode(t, rec, &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "t1", body.Transactions[0].TransactionID)

	rec = s.do(t, http.MethodGet, "/api/transactions?pending=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTransactions_ReadError(t *testing.T) {
	s := newTestServer(t, nil, &fakeSheet{err: errors.New("403")})

	rec := s.do(t, http.MethodGet, "/api/transactions", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRecovery(t *testing.T) {
	s := newTestServer(t, nil, nil)

	// A nil sheet panics inside the handler.
	rec := s.do(t, http.MethodGet, "/api/transactions", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
