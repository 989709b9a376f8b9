package syncer

import (
	"context"
	"fmt"

	"github.com/dvloznov/sheetsync/internal/jobs"
	"github.com/dvloznov/sheetsync/internal/links"
	"github.com/dvloznov/sheetsync/internal/logger"
)

// ItemLoader returns the linked items to sync.
type ItemLoader func(ctx context.Context) ([]links.LinkedItem, error)

// JobHandler runs queued sync jobs on s. Items are loaded per job so newly
// linked items are picked up without a restart. When throttle is set, a non
// dry-run job is checked against it before running and recorded after a
// successful sync.
func JobHandler(s *Syncer, load ItemLoader, throttle *Throttle) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.SyncJob) error {
		log := logger.FromContext(ctx)
		dryRun := s.opts.DryRun || job.DryRun

		// Jobs queued back to back all passed the gate at enqueue time.
		if throttle != nil && !dryRun {
			if err := throttle.Allow(ctx); err != nil {
				return err
			}
		}

		items, err := load(ctx)
		if err != nil {
			return fmt.Errorf("loading linked items: %w", err)
		}

		run := *s
		if job.NumDays > 0 {
			run.opts.NumDays = job.NumDays
		}
		run.opts.DryRun = dryRun

		result, err := run.Sync(ctx, items)
		if result != nil {
			job.RunID = result.RunID
		}
		if err != nil {
			return err
		}
		stats := result.Stats()
		job.Stats = &stats

		if throttle != nil && !dryRun {
			if err := throttle.Record(ctx); err != nil {
				log.Warn().Err(err).Msg("could not record last sync")
			}
		}
		return nil
	}
}
