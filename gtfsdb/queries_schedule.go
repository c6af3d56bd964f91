package gtfsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"waitemata.arrivals.nz/internal/logging"
)

const getLastImport = `
SELECT id, file_last_modified, created_at
FROM imports
ORDER BY id DESC
LIMIT 1
`

// GetLastImport returns the most recent import generation, or ErrNotFound
// when the database has never been synced.
func (q *Queries) GetLastImport(ctx context.Context) (Import, error) {
	var i Import
	err := q.db.QueryRowContext(ctx, getLastImport).Scan(&i.ID, &i.FileLastModified, &i.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Import{}, ErrNotFound
	}
	return i, err
}

// CreateImport opens a new import generation and returns its id.
func (q *Queries) CreateImport(ctx context.Context) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `INSERT INTO imports DEFAULT VALUES RETURNING id`).Scan(&id)
	return id, err
}

// SetImportLastModified records the feed's Last-Modified header against an
// import, marking the sync as complete.
func (q *Queries) SetImportLastModified(ctx context.Context, importID int64, lastModified string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE imports SET file_last_modified = ? WHERE id = ?`, lastModified, importID)
	return err
}

const refreshServices = `
INSERT INTO gtfs_services (service_id)
SELECT service_id FROM gtfs_calendar
UNION
SELECT service_id FROM gtfs_calendar_dates
WHERE true
ON CONFLICT DO NOTHING
`

// RefreshServices folds the service ids referenced by calendar and
// calendar_dates into gtfs_services. The WHERE true keeps SQLite from
// misparsing ON CONFLICT after a compound SELECT.
func (q *Queries) RefreshServices(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, refreshServices)
	return err
}

const stopColumns = `s.id, s.stop_id, s.stop_code, s.stop_name, s.stop_desc,
s.stop_lat, s.stop_lon, s.zone_id, s.stop_url, s.location_type,
s.parent_station, s.platform_code, s.wheelchair_boarding, s.import_id`

func scanStop(row interface{ Scan(...any) error }) (Stop, error) {
	var s Stop
	err := row.Scan(&s.ID, &s.StopID, &s.StopCode, &s.StopName, &s.StopDesc,
		&s.StopLat, &s.StopLon, &s.ZoneID, &s.StopURL, &s.LocationType,
		&s.ParentStation, &s.PlatformCode, &s.WheelchairBoarding, &s.ImportID)
	return s, err
}

// GetStopByCode looks a stop up by its rider-facing code, falling back to
// the stop_id for feeds that leave stop_code empty.
func (q *Queries) GetStopByCode(ctx context.Context, code string) (Stop, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM gtfs_stops s WHERE s.stop_code = ?1 OR s.stop_id = ?1 LIMIT 1`, stopColumns)
	s, err := scanStop(q.db.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return Stop{}, ErrNotFound
	}
	return s, err
}

// GetStopByID looks a stop up by its GTFS stop_id.
func (q *Queries) GetStopByID(ctx context.Context, stopID string) (Stop, error) {
	query := fmt.Sprintf(`SELECT %s FROM gtfs_stops s WHERE s.stop_id = ?`, stopColumns)
	s, err := scanStop(q.db.QueryRowContext(ctx, query, stopID))
	if errors.Is(err, sql.ErrNoRows) {
		return Stop{}, ErrNotFound
	}
	return s, err
}

// GetStopsByIDs returns the stops for the given stop_ids, in no particular
// order. Missing ids are silently skipped.
func (q *Queries) GetStopsByIDs(ctx context.Context, stopIDs []string) ([]Stop, error) {
	if len(stopIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(stopIDs)), ",")
	query := fmt.Sprintf(`SELECT %s FROM gtfs_stops s WHERE s.stop_id IN (%s)`,
		stopColumns, placeholders)
	args := make([]any, len(stopIDs))
	for i, id := range stopIDs {
		args[i] = id
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer logging.SafeCloseWithLogging(rows, nil, "stop rows")

	var stops []Stop
	for rows.Next() {
		s, err := scanStop(rows)
		if err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// ListStopsWithCoords returns every stop that has coordinates, for the stop
// index builder.
func (q *Queries) ListStopsWithCoords(ctx context.Context) ([]Stop, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM gtfs_stops s WHERE s.stop_lat IS NOT NULL AND s.stop_lon IS NOT NULL`,
		stopColumns)
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer logging.SafeCloseWithLogging(rows, nil, "stop rows")

	var stops []Stop
	for rows.Next() {
		s, err := scanStop(rows)
		if err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// ListStopIndexEntries returns every stop bounding box, for loading the
// in-memory spatial index.
func (q *Queries) ListStopIndexEntries(ctx context.Context) ([]StopIndexEntry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT stop_id, min_lat, max_lat, min_lon, max_lon FROM stop_index`)
	if err != nil {
		return nil, err
	}
	defer logging.SafeCloseWithLogging(rows, nil, "stop index rows")

	var entries []StopIndexEntry
	for rows.Next() {
		var e StopIndexEntry
		if err := rows.Scan(&e.StopID, &e.MinLat, &e.MaxLat, &e.MinLon, &e.MaxLon); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const getRoutesForStop = `
SELECT DISTINCT r.route_id, r.route_short_name, r.route_long_name,
       r.route_type, r.route_color, r.route_text_color
FROM gtfs_stop_times st
JOIN gtfs_trips t ON t.trip_id = st.trip_id
JOIN gtfs_routes r ON r.route_id = t.route_id
WHERE st.stop_id = ?
ORDER BY r.route_short_name
`

// GetRoutesForStop returns the distinct routes with scheduled service at a
// stop.
func (q *Queries) GetRoutesForStop(ctx context.Context, stopID string) ([]StopRoute, error) {
	rows, err := q.db.QueryContext(ctx, getRoutesForStop, stopID)
	if err != nil {
		return nil, err
	}
	defer logging.SafeCloseWithLogging(rows, nil, "route rows")

	var routes []StopRoute
	for rows.Next() {
		var r StopRoute
		if err := rows.Scan(&r.RouteID, &r.RouteShortName, &r.RouteLongName,
			&r.RouteType, &r.RouteColor, &r.RouteTextColor); err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

const getArrivalsForStop = `
SELECT sti.trip_id, sti.trip_run_id, t.route_id, r.route_short_name,
       t.trip_headsign, st.stop_headsign, sti.stop_sequence,
       sti.arrival_timestamp, sti.updated_arrival_timestamp,
       tr.start_timestamp, tr.schedule_relationship, tr.vehicle_id
FROM stop_time_index sti
JOIN gtfs_stop_times st ON st.trip_id = sti.trip_id AND st.stop_sequence = sti.stop_sequence
JOIN gtfs_trips t ON t.trip_id = sti.trip_id
JOIN gtfs_routes r ON r.route_id = t.route_id
JOIN trip_runs tr ON tr.id = sti.trip_run_id
WHERE sti.stop_id = ?1
  AND COALESCE(sti.updated_arrival_timestamp, sti.arrival_timestamp) >= ?2
  AND COALESCE(sti.updated_arrival_timestamp, sti.arrival_timestamp) < ?3
ORDER BY COALESCE(sti.updated_arrival_timestamp, sti.arrival_timestamp) ASC
LIMIT 50
`

// GetArrivalsForStop returns the next arrivals at a stop within the
// [fromMs, toMs) window, ordered by effective arrival time.
func (q *Queries) GetArrivalsForStop(ctx context.Context, stopID string, fromMs, toMs int64) ([]StopArrival, error) {
	rows, err := q.db.QueryContext(ctx, getArrivalsForStop, stopID, fromMs, toMs)
	if err != nil {
		return nil, err
	}
	defer logging.SafeCloseWithLogging(rows, nil, "arrival rows")

	var arrivals []StopArrival
	for rows.Next() {
		var a StopArrival
		if err := rows.Scan(&a.TripID, &a.TripRunID, &a.RouteID, &a.RouteShortName,
			&a.TripHeadsign, &a.StopHeadsign, &a.StopSequence,
			&a.ArrivalTimestamp, &a.UpdatedArrivalTimestamp,
			&a.StartTimestamp, &a.ScheduleRelationship, &a.VehicleID); err != nil {
			return nil, err
		}
		arrivals = append(arrivals, a)
	}
	return arrivals, rows.Err()
}

// GetTrip returns a trip by id, or ErrNotFound.
func (q *Queries) GetTrip(ctx context.Context, tripID string) (Trip, error) {
	var t Trip
	err := q.db.QueryRowContext(ctx, `
SELECT trip_id, route_id, service_id, trip_headsign, trip_short_name,
       direction_id, block_id, shape_id, wheelchair_accessible, bikes_allowed, import_id
FROM gtfs_trips WHERE trip_id = ?`, tripID).Scan(
		&t.TripID, &t.RouteID, &t.ServiceID, &t.TripHeadsign, &t.TripShortName,
		&t.DirectionID, &t.BlockID, &t.ShapeID, &t.WheelchairAccessible,
		&t.BikesAllowed, &t.ImportID)
	if errors.Is(err, sql.ErrNoRows) {
		return Trip{}, ErrNotFound
	}
	return t, err
}

// ListStopTimesForTrip returns a trip's scheduled stop times ordered by
// stop sequence.
func (q *Queries) ListStopTimesForTrip(ctx context.Context, tripID string) ([]StopTime, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT trip_id, arrival_time, departure_time, stop_id, stop_sequence,
       stop_headsign, pickup_type, drop_off_type, import_id
FROM gtfs_stop_times
WHERE trip_id = ?
ORDER BY stop_sequence`, tripID)
	if err != nil {
		return nil, err
	}
	defer logging.SafeCloseWithLogging(rows, nil, "stop time rows")

	var out []StopTime
	for rows.Next() {
		var st StopTime
		if err := rows.Scan(&st.TripID, &st.ArrivalTime, &st.DepartureTime, &st.StopID,
			&st.StopSequence, &st.StopHeadsign, &st.PickupType, &st.DropOffType, &st.ImportID); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

const getTimezoneForRoute = `
SELECT a.agency_timezone
FROM gtfs_routes r
JOIN gtfs_agency a ON a.agency_id = r.agency_id
WHERE r.route_id = ?
`

// GetTimezoneForRoute returns the timezone of the agency operating a route,
// or ErrNotFound.
func (q *Queries) GetTimezoneForRoute(ctx context.Context, routeID string) (string, error) {
	var tz string
	err := q.db.QueryRowContext(ctx, getTimezoneForRoute, routeID).Scan(&tz)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return tz, err
}
