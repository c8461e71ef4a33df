package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bszub/opgsync/internal/database"
)

// HistoryRepository persists sync run results to the history database.
// The queryable columns cover what the API surfaces; the full Result is
// kept as a msgpack blob so new fields never need a migration.
type HistoryRepository struct {
	db  *database.DB
	log zerolog.Logger
}

func NewHistoryRepository(db *database.DB, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log.With().Str("component", "history").Logger(),
	}
}

// RecordRun stores one run result.
func (r *HistoryRepository) RecordRun(ctx context.Context, result Result) error {
	detail, err := msgpack.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode run detail: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sync_runs (merchant_id, ap_number, outcome, range_start, range_end,
			rows_written, error_message, started_at, finished_at, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.MerchantID,
		result.APNumber,
		string(result.Outcome),
		result.RangeStart,
		result.RangeEnd,
		result.RowsWritten,
		result.ErrorMessage,
		result.StartedAt.UTC().Format(time.RFC3339),
		result.FinishedAt.UTC().Format(time.RFC3339),
		detail,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (r *HistoryRepository) RecentRuns(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT detail FROM sync_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var detail []byte
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		var result Result
		if err := msgpack.Unmarshal(detail, &result); err != nil {
			r.log.Warn().Err(err).Msg("skipping undecodable run detail")
			continue
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// LastRunFor returns the most recent run for a merchant, or nil when the
// merchant has never been synced.
func (r *HistoryRepository) LastRunFor(ctx context.Context, merchantID int) (*Result, error) {
	var detail []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT detail FROM sync_runs WHERE merchant_id = ? ORDER BY started_at DESC, id DESC LIMIT 1`,
		merchantID).Scan(&detail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last run for merchant %d: %w", merchantID, err)
	}

	var result Result
	if err := msgpack.Unmarshal(detail, &result); err != nil {
		return nil, fmt.Errorf("failed to decode run detail: %w", err)
	}
	return &result, nil
}
