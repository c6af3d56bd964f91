package gtfsdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"waitemata.arrivals.nz/internal/logging"
)

// InsertFeedInfo writes feed_info rows. The file has no natural key, so
// rows are inserted as-is.
func (q *Queries) InsertFeedInfo(ctx context.Context, batch []FeedInfo) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO gtfs_feed_info
(feed_publisher_name, feed_publisher_url, feed_lang, feed_start_date, feed_end_date, feed_version, import_id) VALUES `)
	args := make([]any, 0, len(batch)*7)
	for i, r := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, r.FeedPublisherName, r.FeedPublisherURL, r.FeedLang,
			r.FeedStartDate, r.FeedEndDate, r.FeedVersion, r.ImportID)
	}
	res, err := q.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const upsertAgencies = `INSERT INTO gtfs_agency
(agency_id, agency_name, agency_url, agency_timezone, agency_lang, agency_phone, import_id) VALUES `

const upsertAgenciesConflict = ` ON CONFLICT (agency_id) DO UPDATE SET
agency_name = excluded.agency_name,
agency_url = excluded.agency_url,
agency_timezone = excluded.agency_timezone,
agency_lang = excluded.agency_lang,
agency_phone = excluded.agency_phone,
import_id = excluded.import_id`

// UpsertAgencies writes agency rows, replacing existing agencies in place.
func (q *Queries) UpsertAgencies(ctx context.Context, batch []Agency) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	var sb strings.Builder
	sb.WriteString(upsertAgencies)
	args := make([]any, 0, len(batch)*7)
	for i, r := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, r.AgencyID, r.AgencyName, r.AgencyURL, r.AgencyTimezone,
			r.AgencyLang, r.AgencyPhone, r.ImportID)
	}
	sb.WriteString(upsertAgenciesConflict)
	res, err := q.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertCalendars writes calendar rows keyed by service_id.
func (q *Queries) UpsertCalendars(ctx context.Context, batch []Calendar) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO gtfs_calendar
(service_id, monday, tuesday, wednesday, thursday, friday, saturday, sunday, start_date, end_date, import_id) VALUES `)
	args := make([]any, 0, len(batch)*11)
	for i, r := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, r.ServiceID, r.Monday, r.Tuesday, r.Wednesday, r.Thursday,
			r.Friday, r.Saturday, r.Sunday, r.StartDate, r.EndDate, r.ImportID)
	}
	sb.WriteString(` ON CONFLICT (service_id) DO UPDATE SET
monday = excluded.monday,
tuesday = excluded.tuesday,
wednesday = excluded.wednesday,
thursday = excluded.thursday,
friday = excluded.friday,
saturday = excluded.saturday,
sunday = excluded.sunday,
start_date = excluded.start_date,
end_date = excluded.end_date,
import_id = excluded.import_id`)
	res, err := q.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertCalendarDates writes calendar_dates rows keyed by (service_id, date).
func (q *Queries) UpsertCalendarDates(ctx context.Context, batch []CalendarDate) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO gtfs_calendar_dates (service_id, date, exception_type, import_id) VALUES `)
	args := make([]any, 0, len(batch)*4)
	for i, r := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?)")
		args = append(args, r.ServiceID, r.Date, r.ExceptionType, r.ImportID)
	}
	sb.WriteString(` ON CONFLICT (service_id, date) DO UPDATE SET
exception_type = excluded.exception_type,
import_id = excluded.import_id`)
	res, err := q.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertRoutes writes route rows keyed by route_id.
func (q *Queries) UpsertRoutes(ctx context.Context, batch []Route) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO gtfs_routes
(route_id, agency_id, route_short_name, route_long_name, route_desc, route_type, route_color, route_text_color, import_id) VALUES `)
	args := make([]any, 0, len(batch)*9)
	for i, r := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, r.RouteID, r.AgencyID, r.RouteShortName, r.RouteLongName,
			r.RouteDesc, r.RouteType, r.RouteColor, r.RouteTextColor, r.ImportID)
	}
	sb.WriteString(` ON CONFLICT (route_id) DO UPDATE SET
agency_id = excluded.agency_id,
route_short_name = excluded.route_short_name,
route_long_name = excluded.route_long_name,
route_desc = excluded.route_desc,
route_type = excluded.route_type,
route_color = excluded.route_color,
route_text_color = excluded.route_text_color,
import_id = excluded.import_id`)
	res, err := q.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertTrips writes trip rows keyed by trip_id.
func (q *Queries) UpsertTrips(ctx context.Context, batch []Trip) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO gtfs_trips
(trip_id, route_id, service_id, trip_headsign, trip_short_name, direction_id, block_id, shape_id, wheelchair_accessible, bikes_allowed, import_id) VALUES `)
	args := make([]any, 0, len(batch)*11)
	for i, r := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, r.TripID, r.RouteID, r.ServiceID, r.TripHeadsign,
			r.TripShortName, r.DirectionID, r.BlockID, r.ShapeID,
			r.WheelchairAccessible, r.BikesAllowed, r.ImportID)
	}
	sb.WriteString(` ON CONFLICT (trip_id) DO UPDATE SET
route_id = excluded.route_id,
service_id = excluded.service_id,
trip_headsign = excluded.trip_headsign,
trip_short_name = excluded.trip_short_name,
direction_id = excluded.direction_id,
block_id = excluded.block_id,
shape_id = excluded.shape_id,
wheelchair_accessible = excluded.wheelchair_accessible,
bikes_allowed = excluded.bikes_allowed,
import_id = excluded.import_id`)
	res, err := q.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertShapes writes shape point rows keyed by (shape_id, sequence).
func (q *Queries) UpsertShapes(ctx context.Context, batch []Shape) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO gtfs_shapes
(shape_id, shape_pt_lat, shape_pt_lon, shape_pt_sequence, shape_dist_traveled, import_id) VALUES `)
	args := make([]any, 0, len(batch)*6)
	for i, r := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, r.ShapeID, r.ShapePtLat, r.ShapePtLon, r.ShapePtSequence,
			r.ShapeDistTraveled, r.ImportID)
	}
	sb.WriteString(` ON CONFLICT (shape_id, shape_pt_sequence) DO UPDATE SET
shape_pt_lat = excluded.shape_pt_lat,
shape_pt_lon = excluded.shape_pt_lon,
shape_dist_traveled = excluded.shape_dist_traveled,
import_id = excluded.import_id`)
	res, err := q.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertStops writes stop rows keyed by stop_id.
func (q *Queries) UpsertStops(ctx context.Context, batch []Stop) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO gtfs_stops
(stop_id, stop_code, stop_name, stop_desc, stop_lat, stop_lon, zone_id, stop_url, location_type, parent_station, platform_code, wheelchair_boarding, import_id) VALUES `)
	args := make([]any, 0, len(batch)*13)
	for i, r := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, r.StopID, r.StopCode, r.StopName, r.StopDesc, r.StopLat,
			r.StopLon, r.ZoneID, r.StopURL, r.LocationType, r.ParentStation,
			r.PlatformCode, r.WheelchairBoarding, r.ImportID)
	}
	sb.WriteString(` ON CONFLICT (stop_id) DO UPDATE SET
stop_code = excluded.stop_code,
stop_name = excluded.stop_name,
stop_desc = excluded.stop_desc,
stop_lat = excluded.stop_lat,
stop_lon = excluded.stop_lon,
zone_id = excluded.zone_id,
stop_url = excluded.stop_url,
location_type = excluded.location_type,
parent_station = excluded.parent_station,
platform_code = excluded.platform_code,
wheelchair_boarding = excluded.wheelchair_boarding,
import_id = excluded.import_id`)
	res, err := q.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertStopTimes writes stop_time rows keyed by (trip_id, stop_sequence).
func (q *Queries) UpsertStopTimes(ctx context.Context, batch []StopTime) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO gtfs_stop_times
(trip_id, arrival_time, departure_time, stop_id, stop_sequence, stop_headsign, pickup_type, drop_off_type, import_id) VALUES `)
	args := make([]any, 0, len(batch)*9)
	for i, r := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, r.TripID, r.ArrivalTime, r.DepartureTime, r.StopID,
			r.StopSequence, r.StopHeadsign, r.PickupType, r.DropOffType, r.ImportID)
	}
	sb.WriteString(` ON CONFLICT (trip_id, stop_sequence) DO UPDATE SET
arrival_time = excluded.arrival_time,
departure_time = excluded.departure_time,
stop_id = excluded.stop_id,
stop_headsign = excluded.stop_headsign,
pickup_type = excluded.pickup_type,
drop_off_type = excluded.drop_off_type,
import_id = excluded.import_id`)
	res, err := q.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteSupersededRows removes a table's rows from imports older than
// importID. The table name is restricted to the known schedule tables.
func (q *Queries) DeleteSupersededRows(ctx context.Context, table string, importID int64) error {
	var query string
	switch table {
	case "gtfs_feed_info":
		query = `DELETE FROM gtfs_feed_info WHERE import_id < ?`
	case "gtfs_agency":
		query = `DELETE FROM gtfs_agency WHERE import_id < ?`
	case "gtfs_calendar":
		query = `DELETE FROM gtfs_calendar WHERE import_id < ?`
	case "gtfs_calendar_dates":
		query = `DELETE FROM gtfs_calendar_dates WHERE import_id < ?`
	case "gtfs_routes":
		query = `DELETE FROM gtfs_routes WHERE import_id < ?`
	case "gtfs_trips":
		query = `DELETE FROM gtfs_trips WHERE import_id < ?`
	case "gtfs_shapes":
		query = `DELETE FROM gtfs_shapes WHERE import_id < ?`
	case "gtfs_stops":
		query = `DELETE FROM gtfs_stops WHERE import_id < ?`
	case "gtfs_stop_times":
		query = `DELETE FROM gtfs_stop_times WHERE import_id < ?`
	default:
		return fmt.Errorf("unknown table %q", table)
	}
	_, err := q.db.ExecContext(ctx, query, importID)
	return err
}

// DeleteStopIndex clears the stop bounding boxes ahead of a rebuild.
func (q *Queries) DeleteStopIndex(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM stop_index`)
	return err
}

// InsertStopIndexEntries writes a batch of stop bounding boxes.
func (q *Queries) InsertStopIndexEntries(ctx context.Context, batch []StopIndexEntry) error {
	if len(batch) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO stop_index (stop_id, min_lat, max_lat, min_lon, max_lon) VALUES `)
	args := make([]any, 0, len(batch)*5)
	for i, e := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, e.StopID, e.MinLat, e.MaxLat, e.MinLon, e.MaxLon)
	}
	_, err := q.db.ExecContext(ctx, sb.String(), args...)
	return err
}

// GetLastServiceDate returns the latest date with any scheduled service,
// in YYYYMMDD form, or ErrNotFound when the schedule is empty.
func (q *Queries) GetLastServiceDate(ctx context.Context) (string, error) {
	var last sql.NullString
	err := q.db.QueryRowContext(ctx, `
SELECT MAX(d) FROM (
    SELECT date AS d FROM gtfs_calendar_dates
    UNION
    SELECT end_date AS d FROM gtfs_calendar
)`).Scan(&last)
	if err != nil {
		return "", err
	}
	if !last.Valid {
		return "", ErrNotFound
	}
	return last.String, nil
}

// StopTimeOccurrence is one scheduled stop time active on a particular
// service date, with the context the indexer needs to materialize it.
type StopTimeOccurrence struct {
	TripID         string
	StopID         string
	StopSequence   int64
	ArrivalTime    string
	DepartureTime  string
	RouteID        sql.NullString
	DirectionID    sql.NullInt64
	AgencyTimezone sql.NullString
}

var weekdayColumns = map[string]string{
	"monday":    "c.monday",
	"tuesday":   "c.tuesday",
	"wednesday": "c.wednesday",
	"thursday":  "c.thursday",
	"friday":    "c.friday",
	"saturday":  "c.saturday",
	"sunday":    "c.sunday",
}

const listOccurrencesHead = `
SELECT st.trip_id, st.stop_id, st.stop_sequence, st.arrival_time, st.departure_time,
       t.route_id, t.direction_id, a.agency_timezone
FROM gtfs_stop_times st
LEFT JOIN gtfs_trips t ON t.trip_id = st.trip_id
LEFT JOIN gtfs_routes r ON r.route_id = t.route_id
LEFT JOIN gtfs_agency a ON a.agency_id = r.agency_id
LEFT JOIN gtfs_calendar c ON c.service_id = t.service_id
LEFT JOIN gtfs_calendar_dates cd ON cd.service_id = t.service_id AND cd.date = ?1
`

// ListStopTimeOccurrencesForDate returns every stop time with service on the
// given date, ordered by trip then sequence. The weekday name selects the
// calendar column for the date.
func (q *Queries) ListStopTimeOccurrencesForDate(ctx context.Context, date, weekday string) ([]StopTimeOccurrence, error) {
	col, ok := weekdayColumns[weekday]
	if !ok {
		return nil, fmt.Errorf("unknown weekday %q", weekday)
	}
	query := listOccurrencesHead + fmt.Sprintf(`
WHERE ((c.start_date <= ?1 AND ?1 <= c.end_date AND %s = 1
        AND (cd.exception_type IS NULL OR cd.exception_type != 2))
       OR cd.exception_type = 1)
ORDER BY st.trip_id, st.stop_sequence`, col)

	rows, err := q.db.QueryContext(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer logging.SafeCloseWithLogging(rows, nil, "occurrence rows")

	var out []StopTimeOccurrence
	for rows.Next() {
		var o StopTimeOccurrence
		if err := rows.Scan(&o.TripID, &o.StopID, &o.StopSequence, &o.ArrivalTime,
			&o.DepartureTime, &o.RouteID, &o.DirectionID, &o.AgencyTimezone); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
