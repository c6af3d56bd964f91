package gtfsdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"waitemata.arrivals.nz/internal/logging"
)

// Client wraps the SQLite database with two access paths: DB is the pooled
// handle used by request handlers and the realtime loop, Bulk is a single
// connection with foreign keys disabled for mass ingest and index rebuilds.
type Client struct {
	Config  Config
	DB      *sql.DB
	Bulk    *sql.DB
	Queries *Queries
	logger  *slog.Logger
}

const poolPragmas = "_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-1000000"

// NewClient opens the database at the configured path, applies pending
// migrations, and returns a ready Client.
func NewClient(ctx context.Context, config Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "gtfsdb"))

	pooledDSN := fmt.Sprintf("file:%s?%s", config.DBPath, poolPragmas)
	db, err := sql.Open("sqlite3", pooledDSN)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", config.DBPath, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	bulkDSN := pooledDSN + "&_foreign_keys=off"
	bulk, err := sql.Open("sqlite3", bulkDSN)
	if err != nil {
		logging.SafeCloseWithLogging(db, logger, "database")
		return nil, fmt.Errorf("opening bulk database handle: %w", err)
	}
	// SQLite serializes writers anyway; a single connection keeps bulk
	// transactions from interleaving.
	bulk.SetMaxOpenConns(1)

	if err := applyMigrations(ctx, db); err != nil {
		logging.SafeCloseWithLogging(db, logger, "database")
		logging.SafeCloseWithLogging(bulk, logger, "bulk database")
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	client := &Client{
		Config:  config,
		DB:      db,
		Bulk:    bulk,
		Queries: New(db),
		logger:  logger,
	}

	logging.LogOperation(logger, "database ready", slog.String("path", config.DBPath))
	return client, nil
}

// Close closes both database handles.
func (c *Client) Close() {
	logging.SafeCloseWithLogging(c.Bulk, c.logger, "bulk database")
	logging.SafeCloseWithLogging(c.DB, c.logger, "database")
}
