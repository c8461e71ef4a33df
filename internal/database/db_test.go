package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(Config{Path: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())

	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'sync_runs'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.QuickCheck(context.Background()))
	assert.NoError(t, db.HealthCheck(context.Background()))
}

func TestMaintenanceHelpers(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.WALCheckpoint("TRUNCATE"))
	assert.NoError(t, db.IncrementalVacuum())

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Positive(t, stats.PageCount)
	assert.Positive(t, stats.PageSize)
}
