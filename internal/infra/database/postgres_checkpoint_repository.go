package database

import (
	"context"
	"database/sql"
	"fmt"

	"circle_notifier/internal/domain/notification"
)

// checkpointName is the single row key used in ledger_checkpoints. The table
// is key/value so further cursors can share it later if needed.
const checkpointName = "event_poller"

// PostgresCheckpointRepository persists the ingestion cursor.
type PostgresCheckpointRepository struct {
	db *sql.DB
}

func NewPostgresCheckpointRepository(db *sql.DB) *PostgresCheckpointRepository {
	return &PostgresCheckpointRepository{db: db}
}

// LoadCursor returns the persisted cursor, or notification.ErrCursorNotFound
// when the service has never checkpointed.
func (r *PostgresCheckpointRepository) LoadCursor(ctx context.Context) (int64, error) {
	query := `SELECT cursor_ts FROM ledger_checkpoints WHERE name = $1`
	var cursor int64
	err := r.db.QueryRowContext(ctx, query, checkpointName).Scan(&cursor)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, notification.ErrCursorNotFound
		}
		return 0, fmt.Errorf("error loading ledger cursor: %w", err)
	}
	return cursor, nil
}

// SaveCursor upserts the cursor. GREATEST on the update arm keeps the stored
// value monotonically non-decreasing even under a stale writer.
func (r *PostgresCheckpointRepository) SaveCursor(ctx context.Context, cursor int64) error {
	query := `INSERT INTO ledger_checkpoints (name, cursor_ts, updated_at)
              VALUES ($1, $2, NOW())
              ON CONFLICT (name)
              DO UPDATE SET cursor_ts = GREATEST(ledger_checkpoints.cursor_ts, EXCLUDED.cursor_ts), updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, checkpointName, cursor); err != nil {
		return fmt.Errorf("error saving ledger cursor: %w", err)
	}
	return nil
}
