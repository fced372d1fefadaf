package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/jackc/pgx/v5"
)

// PostgresAttemptStore persists attempt records in the login_rate_limits table
type PostgresAttemptStore struct {
	db *database.DB
}

// NewPostgresAttemptStore creates a new PostgresAttemptStore
func NewPostgresAttemptStore(db *database.DB) *PostgresAttemptStore {
	return &PostgresAttemptStore{db: db}
}

// Load returns the record for key, or nil if none exists
func (r *PostgresAttemptStore) Load(ctx context.Context, key models.AttemptKey) (*models.AttemptRecord, error) {
	query := `
		SELECT attempt_key, failure_count, locked_until, updated_at
		FROM login_rate_limits
		WHERE attempt_key = $1
	`

	var record models.AttemptRecord
	var attemptKey string
	err := r.db.Pool.QueryRow(ctx, query, string(key)).Scan(
		&attemptKey,
		&record.FailureCount,
		&record.LockedUntil,
		&record.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	record.Key = models.AttemptKey(attemptKey)
	return &record, nil
}

// RecordFailure applies one failure in a single upsert statement. The row lock taken
// by ON CONFLICT DO UPDATE serializes concurrent failures for the same key, and every
// SET expression reads the pre-update row, so no increment can be lost.
func (r *PostgresAttemptStore) RecordFailure(ctx context.Context, key models.AttemptKey, now time.Time, rule models.FailureRule) (*models.AttemptRecord, error) {
	query := `
		INSERT INTO login_rate_limits AS r (attempt_key, failure_count, locked_until, updated_at)
		VALUES ($1, 1, CASE WHEN $3::int <= 1 THEN $4::timestamptz END, $2::timestamptz)
		ON CONFLICT (attempt_key) DO UPDATE SET
			failure_count = CASE
				WHEN r.locked_until IS NOT NULL AND r.locked_until <= $2::timestamptz THEN 1
				ELSE r.failure_count + 1
			END,
			locked_until = CASE
				WHEN r.locked_until IS NOT NULL AND r.locked_until > $2::timestamptz THEN r.locked_until
				WHEN r.locked_until IS NOT NULL AND 1 >= $3::int THEN $4::timestamptz
				WHEN r.locked_until IS NULL AND r.failure_count + 1 >= $3::int THEN $4::timestamptz
				ELSE NULL
			END,
			updated_at = $2::timestamptz
		RETURNING attempt_key, failure_count, locked_until, updated_at
	`

	lockedUntil := now.Add(rule.LockoutDuration)

	var record models.AttemptRecord
	var attemptKey string
	err := r.db.Pool.QueryRow(ctx, query, string(key), now, rule.LockThreshold, lockedUntil).Scan(
		&attemptKey,
		&record.FailureCount,
		&record.LockedUntil,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	record.Key = models.AttemptKey(attemptKey)
	return &record, nil
}

// Clear deletes the record for key
func (r *PostgresAttemptStore) Clear(ctx context.Context, key models.AttemptKey) error {
	query := `DELETE FROM login_rate_limits WHERE attempt_key = $1`

	if _, err := r.db.Pool.Exec(ctx, query, string(key)); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

// Prune removes records untouched since before whose lock (if any) has also lapsed
func (r *PostgresAttemptStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM login_rate_limits
		WHERE updated_at < $1
		  AND (locked_until IS NULL OR locked_until <= $1)
	`

	tag, err := r.db.Pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}
