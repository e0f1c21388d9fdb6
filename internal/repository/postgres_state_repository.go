package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ecotrack-console/internal/models"
	appErrors "github.com/noah-isme/ecotrack-console/pkg/errors"
)

// PostgresStateRepository persists client state in a console_state table so
// several workstations can share one stored session.
type PostgresStateRepository struct {
	db *sqlx.DB
}

// NewPostgresStateRepository constructs the repository.
func NewPostgresStateRepository(db *sqlx.DB) *PostgresStateRepository {
	return &PostgresStateRepository{db: db}
}

// EnsureSchema creates the backing table when missing.
func (r *PostgresStateRepository) EnsureSchema(ctx context.Context) error {
	const query = `CREATE TABLE IF NOT EXISTS console_state (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create console_state: %w", err)
	}
	return nil
}

// Load fetches a value by key.
func (r *PostgresStateRepository) Load(ctx context.Context, key string) (string, error) {
	const query = `SELECT key, value, updated_at FROM console_state WHERE key = $1`
	var entry models.StateEntry
	if err := r.db.GetContext(ctx, &entry, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.ErrNotFound
		}
		return "", fmt.Errorf("load console state %s: %w", key, err)
	}
	return entry.Value, nil
}

// Save inserts or replaces a value.
func (r *PostgresStateRepository) Save(ctx context.Context, key, value string) error {
	const query = `INSERT INTO console_state (key, value, updated_at)
VALUES (:key, :value, :updated_at)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	entry := models.StateEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("save console state %s: %w", key, err)
	}
	return nil
}

// Delete removes a value.
func (r *PostgresStateRepository) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM console_state WHERE key = $1`
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete console state %s: %w", key, err)
	}
	return nil
}
