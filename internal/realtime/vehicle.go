package realtime

import (
	"context"
	"database/sql"
	"fmt"

	"waitemata.arrivals.nz/gtfsdb"
)

// processVehicle records a vehicle position report and links the vehicle to
// the trip run it is serving. A report without a position clears the stored
// geometry rather than keeping a stale fix.
func (s *Service) processVehicle(ctx context.Context, q *gtfsdb.Queries, entity FeedEntity) error {
	vp := entity.Vehicle
	if vp.Vehicle == nil || vp.Vehicle.ID == nil {
		return fmt.Errorf("%w: vehicle position without vehicle id", ErrInvalidEntity)
	}

	v := gtfsdb.Vehicle{
		VehicleID: *vp.Vehicle.ID,
		Timestamp: s.clock.NowUnixMilli(),
	}
	if vp.Vehicle.Label != nil {
		v.Label = sql.NullString{String: *vp.Vehicle.Label, Valid: true}
	}
	if vp.Vehicle.LicensePlate != nil {
		v.LicensePlate = sql.NullString{String: *vp.Vehicle.LicensePlate, Valid: true}
	}
	if vp.Timestamp != nil {
		v.Timestamp = vp.Timestamp.UnixMilli()
	}
	if vp.Position != nil {
		v.Lat = sql.NullFloat64{Float64: vp.Position.Latitude, Valid: true}
		v.Lon = sql.NullFloat64{Float64: vp.Position.Longitude, Valid: true}
		if vp.Position.Bearing != nil {
			v.Bearing = sql.NullFloat64{Float64: float64(*vp.Position.Bearing), Valid: true}
		}
		if vp.Position.Speed != nil {
			v.Speed = sql.NullFloat64{Float64: *vp.Position.Speed, Valid: true}
		}
	}

	if err := q.UpsertVehiclePosition(ctx, v); err != nil {
		return err
	}

	if vp.Trip != nil {
		run, err := s.findTripRun(ctx, q, vp.Trip)
		if err != nil {
			return err
		}
		if err := q.SetTripRunVehicle(ctx, run.ID, v.VehicleID); err != nil {
			return err
		}
	}
	return nil
}
