package gtfsdb

import "waitemata.arrivals.nz/internal/appconf"

const (
	// DefaultBulkInsertBatchSize is the default number of rows per
	// multi-row INSERT. The widest table binds 13 variables per row, so a
	// 500-row batch uses 6,500 bound variables, inside the 32,766 limit of
	// the SQLite bundled with the driver.
	DefaultBulkInsertBatchSize = 500
)

// Config holds configuration options for the Client.
type Config struct {
	DBPath  string
	Env     appconf.Environment
	verbose bool

	// BulkInsertBatchSize controls how many records are written per
	// multi-row INSERT during ingest. Set to 0 to use the default.
	BulkInsertBatchSize int
}

func NewConfig(dbPath string, env appconf.Environment, verbose bool) Config {
	return Config{
		DBPath:              dbPath,
		Env:                 env,
		verbose:             verbose,
		BulkInsertBatchSize: DefaultBulkInsertBatchSize,
	}
}

// GetBulkInsertBatchSize returns the configured batch size, or the default.
func (c Config) GetBulkInsertBatchSize() int {
	if c.BulkInsertBatchSize <= 0 {
		return DefaultBulkInsertBatchSize
	}
	return c.BulkInsertBatchSize
}
