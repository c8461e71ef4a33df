package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bszub/opgsync/internal/database"
)

func setupHistoryDB(t *testing.T) *HistoryRepository {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "history.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	return NewHistoryRepository(db, zerolog.Nop())
}

func sampleResult(merchantID int, outcome Outcome, startedAt time.Time) Result {
	return Result{
		MerchantID:   merchantID,
		APNumber:     "A12345678",
		Outcome:      outcome,
		RangeStart:   1,
		RangeEnd:     5,
		RowsWritten:  5,
		GrossRevenue: 12345,
		StartedAt:    startedAt,
		FinishedAt:   startedAt.Add(30 * time.Second),
	}
}

func TestRecordAndReadRuns(t *testing.T) {
	repo := setupHistoryDB(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 10, 2, 0, 0, 0, time.UTC)

	require.NoError(t, repo.RecordRun(ctx, sampleResult(1, OutcomeSynced, base)))
	require.NoError(t, repo.RecordRun(ctx, sampleResult(2, OutcomeFailed, base.Add(time.Hour))))
	require.NoError(t, repo.RecordRun(ctx, sampleResult(1, OutcomeUpToDate, base.Add(2*time.Hour))))

	runs, err := repo.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	// Newest first, round-tripped through the msgpack blob.
	assert.Equal(t, OutcomeUpToDate, runs[0].Outcome)
	assert.Equal(t, 1, runs[0].MerchantID)
	assert.Equal(t, int64(12345), runs[0].GrossRevenue)
	assert.True(t, runs[0].StartedAt.Equal(base.Add(2*time.Hour)))
}

func TestRecentRunsLimit(t *testing.T) {
	repo := setupHistoryDB(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 10, 2, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.RecordRun(ctx, sampleResult(i, OutcomeSynced, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := repo.RecentRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, 4, runs[0].MerchantID)
}

func TestLastRunFor(t *testing.T) {
	repo := setupHistoryDB(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 10, 2, 0, 0, 0, time.UTC)

	last, err := repo.LastRunFor(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, repo.RecordRun(ctx, sampleResult(42, OutcomeFailed, base)))
	require.NoError(t, repo.RecordRun(ctx, sampleResult(42, OutcomeSynced, base.Add(time.Hour))))

	last, err = repo.LastRunFor(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, OutcomeSynced, last.Outcome)
}
