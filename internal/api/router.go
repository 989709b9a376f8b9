// Package api exposes sync jobs and the current sheet over HTTP.
package api

import (
	"net/http"

	"github.com/dvloznov/sheetsync/internal/api/handlers"
	"github.com/dvloznov/sheetsync/internal/api/middleware"
	"github.com/dvloznov/sheetsync/internal/jobs"
	"github.com/dvloznov/sheetsync/internal/sheets"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Publisher jobs.Publisher
	JobStore  jobs.JobStore
	Sheet     sheets.TabularStore
	// Gate throttles POST /api/sync; nil disables throttling.
	Gate handlers.SyncGate
}

// NewRouter builds the HTTP handler.
func NewRouter(deps Deps, log zerolog.Logger) http.Handler {
	syncHandler := handlers.NewSyncHandler(deps.Publisher, deps.JobStore, deps.Gate, log)
	jobsHandler := handlers.NewJobsHandler(deps.JobStore, log)
	transactionsHandler := handlers.NewTransactionsHandler(deps.Sheet, log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	r.Get("/healthz", handlers.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/sync", syncHandler.EnqueueSync)
		r.Get("/jobs", jobsHandler.ListJobs)
		r.Get("/jobs/{id}", jobsHandler.GetJob)
		r.Get("/transactions", transactionsHandler.ListTransactions)
	})

	return r
}
