package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// GetInstanceID retrieves the instance ID from the database.
// If no ID exists, it generates one, stores it, and returns it.
// Uses INSERT OR IGNORE + re-SELECT to avoid TOCTOU race on concurrent startup.
func GetInstanceID(ctx context.Context, db *sql.DB) (string, error) {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('instance_id', ?)`,
		uuid.NewString(),
	)
	if err != nil {
		return "", fmt.Errorf("storing instance_id: %w", err)
	}

	// Always read back (either our insert or the existing value).
	var id string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'instance_id'`,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("querying instance_id: %w", err)
	}

	return id, nil
}
