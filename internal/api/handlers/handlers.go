package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dvloznov/sheetsync/internal/api/middleware"
	"github.com/dvloznov/sheetsync/internal/domain"
	"github.com/dvloznov/sheetsync/internal/jobs"
	"github.com/dvloznov/sheetsync/internal/sheets"
	"github.com/dvloznov/sheetsync/internal/syncer"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// SyncGate decides whether a new sync may be queued.
type SyncGate interface {
	Allow(ctx context.Context) error
}

// SyncHandler queues sync jobs.
type SyncHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	gate      SyncGate
	log       zerolog.Logger

	// mu makes the active-job check and the publish one step.
	mu sync.Mutex
}

// NewSyncHandler creates a new sync handler. gate may be nil.
func NewSyncHandler(publisher jobs.Publisher, store jobs.JobStore, gate SyncGate, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		publisher: publisher,
		store:     store,
		gate:      gate,
		log:       log,
	}
}

type syncRequest struct {
	NumDays int  `json:"num_days"`
	DryRun  bool `json:"dry_run"`
}

// EnqueueSync handles POST /api/sync
func (h *SyncHandler) EnqueueSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.NumDays < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "num_days must be positive")
		return
	}

	if h.gate != nil && !req.DryRun {
		if err := h.gate.Allow(ctx); err != nil {
			if errors.Is(err, syncer.ErrThrottled) {
				middleware.WriteError(w, http.StatusTooManyRequests, err.Error())
				return
			}
			h.log.Error().Err(err).Msg("Failed to check sync throttle")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to check sync throttle")
			return
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, status := range []jobs.JobStatus{jobs.JobStatusPending, jobs.JobStatusRunning, jobs.JobStatusRetrying} {
		active, err := h.store.ListJobs(ctx, jobs.JobFilter{Status: status, Limit: 1})
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to list jobs")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue sync job")
			return
		}
		if len(active) > 0 {
			middleware.WriteJSON(w, http.StatusConflict, map[string]interface{}{
				"error": "A sync job is already queued",
				"job":   active[0],
			})
			return
		}
	}

	job := &jobs.SyncJob{
		NumDays: req.NumDays,
		DryRun:  req.DryRun,
	}
	if err := h.publisher.PublishSync(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue sync job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue sync job")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// TransactionsHandler serves the current sheet contents.
type TransactionsHandler struct {
	store sheets.TabularStore
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store sheets.TabularStore, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		store: store,
		log:   log,
	}
}

// ListTransactions handles GET /api/transactions
// Optional filters: item_id, pending (true|false).
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var pending *bool
	if p := query.Get("pending"); p != "" {
		v, err := strconv.ParseBool(p)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid pending value")
			return
		}
		pending = &v
	}
	itemID := query.Get("item_id")

	rows, err := h.store.ReadRows(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read sheet")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to read sheet")
		return
	}
	records, blank, err := domain.RecordsFromRows(rows)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to parse sheet")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to parse sheet")
		return
	}

	out := []domain.TransactionRecord{}
	for _, rec := range records {
		if itemID != "" && rec.ItemID != itemID {
			continue
		}
		if pending != nil && rec.Pending != *pending {
			continue
		}
		out = append(out, rec)
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": out,
		"count":        len(out),
		"blank_rows":   blank,
	})
}

// Health handles GET /healthz
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
