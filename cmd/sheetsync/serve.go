package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/sheetsync/internal/api"
	"github.com/dvloznov/sheetsync/internal/jobs/inmemory"
	"github.com/dvloznov/sheetsync/internal/logger"
	"github.com/dvloznov/sheetsync/internal/syncer"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		port    int
		workers int
		retries int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the sync worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if port <= 0 {
				port = cfg.HTTP.Port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log := logger.FromContext(ctx)

			deps, err := buildSync(ctx, cfg, syncParams{
				env:     cfg.Plaid.Env,
				numDays: cfg.Sync.NumDays,
				order:   cfg.Sync.Order,
			})
			if err != nil {
				return err
			}
			defer deps.closers.Close()

			sess, closer, err := openSession(ctx, cfg, deps.spreadsheetID)
			if err != nil {
				return err
			}
			defer closer.Close()
			throttle := &syncer.Throttle{Store: sess, Interval: cfg.Sync.MinInterval}

			jobStore := inmemory.NewStore()
			queue := inmemory.NewQueue(inmemory.Options{Workers: workers, MaxRetries: retries}, jobStore)

			workerCtx, cancelWorker := context.WithCancel(ctx)
			defer cancelWorker()
			if err := queue.Start(workerCtx, syncer.JobHandler(deps.syncer, deps.loadItems, throttle)); err != nil {
				return err
			}

			server := &http.Server{
				Addr: fmt.Sprintf(":%d", port),
				Handler: api.NewRouter(api.Deps{
					Publisher: queue,
					JobStore:  jobStore,
					Sheet:     deps.sheet,
					Gate:      throttle,
				}, log),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Int("port", port).Str("spreadsheet_id", deps.spreadsheetID).Msg("Starting API server")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
			case <-ctx.Done():
			}

			log.Info().Msg("Shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Server forced to shutdown")
			}
			cancelWorker()
			if err := queue.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Error stopping job queue")
			}

			log.Info().Msg("Server exited")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (default HTTP_PORT)")
	cmd.Flags().IntVar(&workers, "workers", 1, "concurrent sync workers")
	cmd.Flags().IntVar(&retries, "retries", 0, "retries for a failed sync job")
	return cmd
}
