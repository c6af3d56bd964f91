package gtfsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"waitemata.arrivals.nz/internal/logging"
)

// FindTripRunParams are the optional filters for FindTripRunClosest. Nil
// fields are not applied.
type FindTripRunParams struct {
	TripID      *string
	RouteID     *string
	DirectionID *int64
	StartDate   *string

	// TargetMs is the reference time; the run whose start_timestamp is
	// closest to it wins.
	TargetMs int64
}

const tripRunColumns = `id, trip_id, route_id, direction_id, start_date,
start_timestamp, vehicle_id, schedule_relationship`

func scanTripRun(row interface{ Scan(...any) error }) (TripRun, error) {
	var tr TripRun
	err := row.Scan(&tr.ID, &tr.TripID, &tr.RouteID, &tr.DirectionID, &tr.StartDate,
		&tr.StartTimestamp, &tr.VehicleID, &tr.ScheduleRelationship)
	return tr, err
}

// FindTripRunClosest returns the trip run matching the given filters whose
// start time is nearest the target, or ErrNotFound.
func (q *Queries) FindTripRunClosest(ctx context.Context, params FindTripRunParams) (TripRun, error) {
	var conds []string
	var args []any
	if params.TripID != nil {
		conds = append(conds, "trip_id = ?")
		args = append(args, *params.TripID)
	}
	if params.RouteID != nil {
		conds = append(conds, "route_id = ?")
		args = append(args, *params.RouteID)
	}
	if params.DirectionID != nil {
		conds = append(conds, "direction_id = ?")
		args = append(args, *params.DirectionID)
	}
	if params.StartDate != nil {
		conds = append(conds, "start_date = ?")
		args = append(args, *params.StartDate)
	}

	query := fmt.Sprintf(`SELECT %s FROM trip_runs`, tripRunColumns)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY ABS(start_timestamp - ?) LIMIT 1"
	args = append(args, params.TargetMs)

	tr, err := scanTripRun(q.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return TripRun{}, ErrNotFound
	}
	return tr, err
}

// GetTripRunByTripAndStart returns the run for a trip at an exact start
// time, or ErrNotFound.
func (q *Queries) GetTripRunByTripAndStart(ctx context.Context, tripID string, startTimestamp int64) (TripRun, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM trip_runs WHERE trip_id = ? AND start_timestamp = ?`, tripRunColumns)
	tr, err := scanTripRun(q.db.QueryRowContext(ctx, query, tripID, startTimestamp))
	if errors.Is(err, sql.ErrNoRows) {
		return TripRun{}, ErrNotFound
	}
	return tr, err
}

const insertTripRun = `
INSERT INTO trip_runs (trip_id, route_id, direction_id, start_date, start_timestamp)
VALUES (?, ?, ?, ?, ?)
RETURNING id
`

// InsertTripRun creates a trip run and returns its id.
func (q *Queries) InsertTripRun(ctx context.Context, tr TripRun) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, insertTripRun,
		tr.TripID, tr.RouteID, tr.DirectionID, tr.StartDate, tr.StartTimestamp).Scan(&id)
	return id, err
}

const insertTripRunIgnore = `
INSERT INTO trip_runs (trip_id, route_id, direction_id, start_date, start_timestamp, schedule_relationship)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT DO NOTHING
`

// InsertTripRunIgnore creates a trip run unless one already exists for the
// same trip and start time.
func (q *Queries) InsertTripRunIgnore(ctx context.Context, tr TripRun) error {
	_, err := q.db.ExecContext(ctx, insertTripRunIgnore,
		tr.TripID, tr.RouteID, tr.DirectionID, tr.StartDate, tr.StartTimestamp,
		tr.ScheduleRelationship)
	return err
}

// SetTripRunScheduleRelationship updates a run's schedule relationship.
func (q *Queries) SetTripRunScheduleRelationship(ctx context.Context, id int64, relationship int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE trip_runs SET schedule_relationship = ? WHERE id = ?`, relationship, id)
	return err
}

// SetTripRunVehicle associates a vehicle with a run.
func (q *Queries) SetTripRunVehicle(ctx context.Context, id int64, vehicleID string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE trip_runs SET vehicle_id = ? WHERE id = ?`, vehicleID, id)
	return err
}

// DeleteAllTripRuns clears trip_runs ahead of a stop-time index rebuild.
func (q *Queries) DeleteAllTripRuns(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM trip_runs`)
	return err
}

// ListStopTimeIndexForRun returns a run's materialized stop times ordered by
// stop sequence.
func (q *Queries) ListStopTimeIndexForRun(ctx context.Context, tripRunID int64) ([]StopTimeIndexRow, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT stop_id, stop_sequence, trip_id, trip_run_id, arrival_timestamp,
       departure_timestamp, updated_arrival_timestamp
FROM stop_time_index
WHERE trip_run_id = ?
ORDER BY stop_sequence`, tripRunID)
	if err != nil {
		return nil, err
	}
	defer logging.SafeCloseWithLogging(rows, nil, "stop time index rows")

	var out []StopTimeIndexRow
	for rows.Next() {
		var r StopTimeIndexRow
		if err := rows.Scan(&r.StopID, &r.StopSequence, &r.TripID, &r.TripRunID,
			&r.ArrivalTimestamp, &r.DepartureTimestamp, &r.UpdatedArrivalTimestamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertStopTimeIndexRows writes a batch of stop-time index rows.
func (q *Queries) InsertStopTimeIndexRows(ctx context.Context, batch []StopTimeIndexRow) error {
	if len(batch) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO stop_time_index
(stop_id, stop_sequence, trip_id, trip_run_id, arrival_timestamp, departure_timestamp) VALUES `)
	args := make([]any, 0, len(batch)*6)
	for i, r := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, r.StopID, r.StopSequence, r.TripID, r.TripRunID,
			r.ArrivalTimestamp, r.DepartureTimestamp)
	}
	_, err := q.db.ExecContext(ctx, sb.String(), args...)
	return err
}

// ApplyArrivalDelay shifts the effective arrival of a run's remaining stops,
// the current stop included.
func (q *Queries) ApplyArrivalDelay(ctx context.Context, tripRunID int64, fromSequence int64, deltaMs int64) error {
	_, err := q.db.ExecContext(ctx, `
UPDATE stop_time_index
SET updated_arrival_timestamp = arrival_timestamp + ?
WHERE trip_run_id = ? AND stop_sequence >= ?`, deltaMs, tripRunID, fromSequence)
	return err
}

// ApplyDepartureDelay shifts the effective arrival of the stops after the
// current one.
func (q *Queries) ApplyDepartureDelay(ctx context.Context, tripRunID int64, fromSequence int64, deltaMs int64) error {
	_, err := q.db.ExecContext(ctx, `
UPDATE stop_time_index
SET updated_arrival_timestamp = arrival_timestamp + ?
WHERE trip_run_id = ? AND stop_sequence > ?`, deltaMs, tripRunID, fromSequence)
	return err
}

const insertVehicleIgnore = `
INSERT INTO vehicles (vehicle_id, label, license_plate, timestamp)
VALUES (?, ?, ?, ?)
ON CONFLICT DO NOTHING
`

// InsertVehicleIgnore records a vehicle seen in a trip update, keeping any
// existing position data.
func (q *Queries) InsertVehicleIgnore(ctx context.Context, vehicleID string, label, licensePlate sql.NullString, timestampMs int64) error {
	_, err := q.db.ExecContext(ctx, insertVehicleIgnore, vehicleID, label, licensePlate, timestampMs)
	return err
}

const upsertVehiclePosition = `
INSERT INTO vehicles (vehicle_id, label, license_plate, lat, lon, bearing, speed, timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (vehicle_id) DO UPDATE SET
    label = excluded.label,
    license_plate = excluded.license_plate,
    lat = excluded.lat,
    lon = excluded.lon,
    bearing = excluded.bearing,
    speed = excluded.speed,
    timestamp = excluded.timestamp
`

// UpsertVehiclePosition records a vehicle position report.
func (q *Queries) UpsertVehiclePosition(ctx context.Context, v Vehicle) error {
	_, err := q.db.ExecContext(ctx, upsertVehiclePosition,
		v.VehicleID, v.Label, v.LicensePlate, v.Lat, v.Lon, v.Bearing, v.Speed, v.Timestamp)
	return err
}

// DeleteAlert removes an alert and its informed entities ahead of a
// replacement insert. Active periods are left for the expiry sweep.
func (q *Queries) DeleteAlert(ctx context.Context, alertID string) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM alert_informed_entities WHERE alert_id = ?`, alertID); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx, `DELETE FROM alerts WHERE alert_id = ?`, alertID)
	return err
}

const insertAlert = `
INSERT INTO alerts (alert_id, cause, effect, header_text, description_text, timestamp)
VALUES (?, ?, ?, ?, ?, ?)
`

// InsertAlert writes a service alert.
func (q *Queries) InsertAlert(ctx context.Context, a Alert) error {
	_, err := q.db.ExecContext(ctx, insertAlert,
		a.AlertID, a.Cause, a.Effect, a.HeaderText, a.DescriptionText, a.Timestamp)
	return err
}

const insertAlertInformedEntity = `
INSERT INTO alert_informed_entities (alert_id, agency_id, route_id, route_type, stop_id, direction_id, trip_run_id)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

// InsertAlertInformedEntity writes one entity an alert applies to.
func (q *Queries) InsertAlertInformedEntity(ctx context.Context, e AlertInformedEntity) error {
	_, err := q.db.ExecContext(ctx, insertAlertInformedEntity,
		e.AlertID, e.AgencyID, e.RouteID, e.RouteType, e.StopID, e.DirectionID, e.TripRunID)
	return err
}

// InsertAlertActivePeriod writes one active period for an alert.
func (q *Queries) InsertAlertActivePeriod(ctx context.Context, p AlertActivePeriod) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO alert_active_periods (alert_id, start_timestamp, end_timestamp) VALUES (?, ?, ?)`,
		p.AlertID, p.StartTimestamp, p.EndTimestamp)
	return err
}

// CleanupExpiredAlerts drops active periods that have ended and any alerts
// left without a period.
func (q *Queries) CleanupExpiredAlerts(ctx context.Context, nowMs int64) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM alert_active_periods WHERE end_timestamp < ?`, nowMs); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx, `
DELETE FROM alerts
WHERE alert_id NOT IN (SELECT alert_id FROM alert_active_periods)`)
	return err
}

// ReplaceRealtimeShape replaces the stored points for a realtime shape.
func (q *Queries) ReplaceRealtimeShape(ctx context.Context, shapeID string, points []RealtimeShapePoint) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM realtime_shapes WHERE shape_id = ?`, shapeID); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO realtime_shapes (shape_id, pt_sequence, lat, lon) VALUES `)
	args := make([]any, 0, len(points)*4)
	for i, p := range points {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?)")
		args = append(args, p.ShapeID, p.PtSequence, p.Lat, p.Lon)
	}
	_, err := q.db.ExecContext(ctx, sb.String(), args...)
	return err
}

// GetMaintenanceTime returns the scheduled maintenance minute, or
// ErrNotFound when no stop-time index has been built yet.
func (q *Queries) GetMaintenanceTime(ctx context.Context) (MaintenanceTime, error) {
	var mt MaintenanceTime
	err := q.db.QueryRowContext(ctx,
		`SELECT id, minute_of_day FROM maintenance_time WHERE id = 1`).Scan(&mt.ID, &mt.MinuteOfDay)
	if errors.Is(err, sql.ErrNoRows) {
		return MaintenanceTime{}, ErrNotFound
	}
	return mt, err
}

// SetMaintenanceTime records the quietest window as the maintenance minute.
func (q *Queries) SetMaintenanceTime(ctx context.Context, minuteOfDay int64) error {
	_, err := q.db.ExecContext(ctx, `
INSERT INTO maintenance_time (id, minute_of_day) VALUES (1, ?)
ON CONFLICT (id) DO UPDATE SET minute_of_day = excluded.minute_of_day`, minuteOfDay)
	return err
}
