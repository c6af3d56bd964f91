package gtfsdb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// stopTimeIndexTableDown mirrors migration 000003 so the index rebuild can
// drop and recreate the table wholesale (faster than a mass delete).
const stopTimeIndexTableDown = `DROP TABLE IF EXISTS stop_time_index;`

// StopTimeIndexTableSQL returns the DDL that creates the stop_time_index
// table without its indexes.
func StopTimeIndexTableSQL() (string, error) {
	b, err := migrationFS.ReadFile("migrations/000003_stop_time_index_table.sql")
	if err != nil {
		return "", fmt.Errorf("reading stop_time_index table DDL: %w", err)
	}
	return string(b), nil
}

// StopTimeIndexTableDownSQL returns the DDL that drops the stop_time_index
// table.
func StopTimeIndexTableDownSQL() string {
	return stopTimeIndexTableDown
}

// StopTimeIndexIndexesSQL returns the DDL that recreates the
// stop_time_index indexes.
func StopTimeIndexIndexesSQL() (string, error) {
	b, err := migrationFS.ReadFile("migrations/000004_stop_time_index_indexes.sql")
	if err != nil {
		return "", fmt.Errorf("reading stop_time_index index DDL: %w", err)
	}
	return string(b), nil
}

// applyMigrations runs all pending migrations in filename order. Applied
// migrations are tracked in schema_migrations so each runs exactly once.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (name TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		var applied int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, name).Scan(&applied)
		if err != nil {
			return fmt.Errorf("checking migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}

		ddl, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(ddl)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (name) VALUES (?)`, name); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}
