package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"bizops-backend/internal/logger"
)

//go:embed schema.sql
var schema string

// Migrate creates any missing tables and indexes. Every statement is
// idempotent, so it is safe to run on each start.
func Migrate(ctx context.Context, db *sql.DB) error {
	logger.DatabaseCall("Migrate", "schema.sql")
	_, err := db.ExecContext(ctx, schema)
	logger.DatabaseResult("Migrate", 0, err)
	if err != nil {
		return fmt.Errorf("failed to apply schema: %w", classify(err, nil))
	}
	return nil
}
