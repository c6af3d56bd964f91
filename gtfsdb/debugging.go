package gtfsdb

import (
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"strings"

	"waitemata.arrivals.nz/internal/logging"
)

func PrintSimpleSchema(db *sql.DB) error { // nolint:unused
	// Get all database objects
	rows, err := db.Query(`
		SELECT type, name, sql
		FROM sqlite_master
		WHERE type IN ('table', 'index', 'view', 'trigger')
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY type, name
	`)
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(rows,
		slog.Default().With(slog.String("component", "debugging")),
		"database_rows")

	log.Println("DATABASE SCHEMA:")
	log.Println("----------------")

	for rows.Next() {
		var objType, objName, objSQL string
		if err := rows.Scan(&objType, &objName, &objSQL); err != nil {
			return err
		}
		log.Printf("%s: %s\n", strings.ToUpper(objType), objName)
		log.Printf("%s\n\n", objSQL)
	}

	return nil
}

func (c *Client) TableCounts() (map[string]int, error) {
	rows, err := c.DB.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, fmt.Errorf("failed to query table names: %w", err)
	}
	defer logging.SafeCloseWithLogging(rows,
		slog.Default().With(slog.String("component", "debugging")),
		"database_rows")
	var tables []string

	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, tableName)
	}

	counts := make(map[string]int)

	for _, table := range tables {
		var query string

		// This prevents SQL injection by ensuring the query string is always a constant.
		switch table {
		case "gtfs_agency":
			query = "SELECT COUNT(*) FROM gtfs_agency"
		case "gtfs_routes":
			query = "SELECT COUNT(*) FROM gtfs_routes"
		case "gtfs_stops":
			query = "SELECT COUNT(*) FROM gtfs_stops"
		case "gtfs_trips":
			query = "SELECT COUNT(*) FROM gtfs_trips"
		case "gtfs_stop_times":
			query = "SELECT COUNT(*) FROM gtfs_stop_times"
		case "gtfs_calendar":
			query = "SELECT COUNT(*) FROM gtfs_calendar"
		case "gtfs_calendar_dates":
			query = "SELECT COUNT(*) FROM gtfs_calendar_dates"
		case "gtfs_shapes":
			query = "SELECT COUNT(*) FROM gtfs_shapes"
		case "gtfs_feed_info":
			query = "SELECT COUNT(*) FROM gtfs_feed_info"
		case "gtfs_services":
			query = "SELECT COUNT(*) FROM gtfs_services"
		case "stop_index":
			query = "SELECT COUNT(*) FROM stop_index"
		case "stop_time_index":
			query = "SELECT COUNT(*) FROM stop_time_index"
		case "trip_runs":
			query = "SELECT COUNT(*) FROM trip_runs"
		case "imports":
			query = "SELECT COUNT(*) FROM imports"
		case "vehicles":
			query = "SELECT COUNT(*) FROM vehicles"
		case "alerts":
			query = "SELECT COUNT(*) FROM alerts"
		case "alert_informed_entities":
			query = "SELECT COUNT(*) FROM alert_informed_entities"
		case "alert_active_periods":
			query = "SELECT COUNT(*) FROM alert_active_periods"
		case "realtime_shapes":
			query = "SELECT COUNT(*) FROM realtime_shapes"
		default:
			continue
		}

		var count int
		err := c.DB.QueryRow(query).Scan(&count)
		if err != nil {
			return nil, err
		}
		counts[table] = count
	}

	return counts, nil
}
