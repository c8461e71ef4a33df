package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bszub/opgsync/internal/database"
)

// MaintenanceJob keeps the run history database healthy: integrity check,
// WAL checkpoint to prevent bloat, and size reporting.
type MaintenanceJob struct {
	db  *database.DB
	log zerolog.Logger
}

func NewMaintenanceJob(db *database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:  db,
		log: log.With().Str("job", "db_maintenance").Logger(),
	}
}

func (j *MaintenanceJob) Name() string { return "db_maintenance" }

func (j *MaintenanceJob) Run() error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := j.db.QuickCheck(ctx); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}

	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		// Not fatal, the checkpoint will be retried on the next run.
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	if stats, err := j.db.GetStats(); err == nil {
		if stats.FreelistCount > 0 {
			if err := j.db.IncrementalVacuum(); err != nil {
				j.log.Warn().Err(err).Msg("Incremental vacuum failed")
			}
		}
		j.log.Info().
			Int64("size_bytes", stats.SizeBytes).
			Int64("wal_bytes", stats.WALSizeBytes).
			Int64("free_pages", stats.FreelistCount).
			Dur("duration", time.Since(start)).
			Msg("History database maintenance completed")
	}

	return nil
}
