package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bszub/opgsync/internal/database"
	syncer "github.com/bszub/opgsync/internal/sync"
)

type countingJob struct {
	name string
	runs int
	err  error
}

func (j *countingJob) Name() string { return j.name }
func (j *countingJob) Run() error {
	j.runs++
	return j.err
}

func TestSchedulerAddJob(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.AddJob("0 2 * * *", &countingJob{name: "nightly"})
	assert.NoError(t, err)

	err = s.AddJob("not a schedule", &countingJob{name: "broken"})
	assert.Error(t, err)
}

func TestSchedulerRunNow(t *testing.T) {
	s := New(zerolog.Nop())

	job := &countingJob{name: "manual"}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)

	failing := &countingJob{name: "failing", err: errors.New("boom")}
	assert.Error(t, s.RunNow(failing))
}

type fakeBatchRunner struct {
	threshold int
	year      int
	batch     syncer.BatchResult
	err       error
}

func (f *fakeBatchRunner) SyncAll(ctx context.Context, daysThreshold, year int) (syncer.BatchResult, error) {
	f.threshold = daysThreshold
	f.year = year
	return f.batch, f.err
}

func TestSyncAllJob(t *testing.T) {
	runner := &fakeBatchRunner{
		batch: syncer.BatchResult{Results: []syncer.Result{{MerchantID: 1, Outcome: syncer.OutcomeSynced}}},
	}
	job := NewSyncAllJob(runner, 3, zerolog.Nop())

	assert.Equal(t, "sync_all", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 3, runner.threshold)
	assert.Zero(t, runner.year)
}

func TestSyncAllJobPropagatesError(t *testing.T) {
	runner := &fakeBatchRunner{err: errors.New("store unreachable")}
	job := NewSyncAllJob(runner, 3, zerolog.Nop())

	assert.Error(t, job.Run())
}

func TestMaintenanceJob(t *testing.T) {
	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "history.db"),
	})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	job := NewMaintenanceJob(db, zerolog.Nop())
	assert.Equal(t, "db_maintenance", job.Name())
	assert.NoError(t, job.Run())
}
