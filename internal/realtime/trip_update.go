package realtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"waitemata.arrivals.nz/gtfsdb"
	"waitemata.arrivals.nz/internal/gtfs"
	"waitemata.arrivals.nz/internal/logging"
)

// processTripUpdate applies one trip update entity: it resolves the trip
// run, records cancellations and duplications, and propagates arrival and
// departure delays to the stop-time index.
func (s *Service) processTripUpdate(ctx context.Context, q *gtfsdb.Queries, entity FeedEntity) error {
	tu := entity.TripUpdate

	var run gtfsdb.TripRun
	var err error
	switch rel := tu.Trip.ScheduleRelationship; {
	case rel != nil && (*rel == TripScheduled || *rel == TripCanceled || *rel == TripDeleted):
		run, err = s.findTripRun(ctx, q, &tu.Trip)
		if err != nil {
			return err
		}
		if err := q.SetTripRunScheduleRelationship(ctx, run.ID, *rel); err != nil {
			return err
		}
		run.ScheduleRelationship = *rel
	case rel != nil && *rel == TripDuplicated:
		run, err = s.duplicateTripRun(ctx, q, &tu.Trip)
		if err != nil {
			return err
		}
	default:
		logging.LogOperation(s.logger, "unimplemented trip schedule relationship",
			slog.String("entity_id", entity.ID))
		return nil
	}

	if tu.Vehicle != nil && tu.Vehicle.ID != nil {
		var label sql.NullString
		if tu.Vehicle.Label != nil {
			label = sql.NullString{String: *tu.Vehicle.Label, Valid: true}
		}
		var plate sql.NullString
		if tu.Vehicle.LicensePlate != nil {
			plate = sql.NullString{String: *tu.Vehicle.LicensePlate, Valid: true}
		}
		if err := q.InsertVehicleIgnore(ctx, *tu.Vehicle.ID, label, plate, s.clock.NowUnixMilli()); err != nil {
			return err
		}
		if err := q.SetTripRunVehicle(ctx, run.ID, *tu.Vehicle.ID); err != nil {
			return err
		}
	}

	if tu.StopTimeUpdate == nil {
		return nil
	}

	stopTimes, err := q.ListStopTimeIndexForRun(ctx, run.ID)
	if err != nil {
		return err
	}

	updates := make([]StopTimeUpdate, len(*tu.StopTimeUpdate))
	copy(updates, *tu.StopTimeUpdate)
	sort.SliceStable(updates, func(i, j int) bool {
		var a, b int64
		if updates[i].StopSequence != nil {
			a = *updates[i].StopSequence
		}
		if updates[j].StopSequence != nil {
			b = *updates[j].StopSequence
		}
		return a < b
	})

	for _, update := range updates {
		stopTime, err := matchStopTime(stopTimes, update)
		if err != nil {
			return err
		}

		if update.Arrival != nil {
			if delta, ok := eventDeltaMs(update.Arrival, stopTime.ArrivalTimestamp); ok {
				if err := q.ApplyArrivalDelay(ctx, run.ID, stopTime.StopSequence, delta); err != nil {
					return err
				}
			}
		}
		if update.Departure != nil {
			if delta, ok := eventDeltaMs(update.Departure, stopTime.DepartureTimestamp); ok {
				if err := q.ApplyDepartureDelay(ctx, run.ID, stopTime.StopSequence, delta); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func matchStopTime(stopTimes []gtfsdb.StopTimeIndexRow, update StopTimeUpdate) (gtfsdb.StopTimeIndexRow, error) {
	switch {
	case update.StopSequence != nil:
		for _, st := range stopTimes {
			if st.StopSequence == *update.StopSequence {
				return st, nil
			}
		}
		return gtfsdb.StopTimeIndexRow{}, fmt.Errorf("%w: sequence %d", ErrStopTimeNotFound, *update.StopSequence)
	case update.StopID != nil:
		for _, st := range stopTimes {
			if st.StopID == *update.StopID {
				return st, nil
			}
		}
		return gtfsdb.StopTimeIndexRow{}, fmt.Errorf("%w: stop %s", ErrStopTimeNotFound, *update.StopID)
	default:
		return gtfsdb.StopTimeIndexRow{}, fmt.Errorf("%w: stop time update without stop_sequence or stop_id", ErrInvalidEntity)
	}
}

// eventDeltaMs computes the shift to apply, in milliseconds. An explicit
// delay wins; otherwise the delta is derived from the predicted absolute
// time against the scheduled timestamp.
func eventDeltaMs(event *StopTimeEvent, scheduledMs int64) (int64, bool) {
	if event.Delay != nil {
		return *event.Delay * 1000, true
	}
	if event.Time != nil {
		return *event.Time*1000 - scheduledMs, true
	}
	return 0, false
}

// duplicateTripRun materializes an extra run of an existing trip at a new
// start time, copying the original trip's stop times with their relative
// offsets intact.
func (s *Service) duplicateTripRun(ctx context.Context, q *gtfsdb.Queries, desc *TripDescriptor) (gtfsdb.TripRun, error) {
	if desc.StartDate == nil {
		return gtfsdb.TripRun{}, fmt.Errorf("%w: need start_date to duplicate trip", ErrInvalidEntity)
	}
	if desc.StartTime == nil {
		return gtfsdb.TripRun{}, fmt.Errorf("%w: need start_time to duplicate trip", ErrInvalidEntity)
	}
	if desc.TripID == nil {
		return gtfsdb.TripRun{}, fmt.Errorf("%w: need trip_id to duplicate trip", ErrInvalidEntity)
	}
	tripID := *desc.TripID

	trip, err := q.GetTrip(ctx, tripID)
	if err != nil {
		if errors.Is(err, gtfsdb.ErrNotFound) {
			return gtfsdb.TripRun{}, fmt.Errorf("%w: trip %s", ErrTripRunNotFound, tripID)
		}
		return gtfsdb.TripRun{}, err
	}
	tz, err := q.GetTimezoneForRoute(ctx, trip.RouteID)
	if err != nil {
		if errors.Is(err, gtfsdb.ErrNotFound) {
			tz = "UTC"
		} else {
			return gtfsdb.TripRun{}, err
		}
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return gtfsdb.TripRun{}, fmt.Errorf("loading timezone %s: %w", tz, err)
	}

	serviceDate, err := gtfs.ParseDate(*desc.StartDate, loc)
	if err != nil {
		return gtfsdb.TripRun{}, err
	}
	newStart, err := gtfs.ParseTime(*desc.StartTime, serviceDate, loc)
	if err != nil {
		return gtfsdb.TripRun{}, err
	}
	newStartMs := newStart.UnixMilli()

	// The run may already exist from an earlier poll.
	if existing, err := q.GetTripRunByTripAndStart(ctx, tripID, newStartMs); err == nil {
		return existing, nil
	} else if !errors.Is(err, gtfsdb.ErrNotFound) {
		return gtfsdb.TripRun{}, err
	}

	newRun := gtfsdb.TripRun{
		TripID:               tripID,
		RouteID:              trip.RouteID,
		DirectionID:          trip.DirectionID,
		StartDate:            *desc.StartDate,
		StartTimestamp:       newStartMs,
		ScheduleRelationship: TripDuplicated,
	}
	if err := q.InsertTripRunIgnore(ctx, newRun); err != nil {
		return gtfsdb.TripRun{}, err
	}
	run, err := q.GetTripRunByTripAndStart(ctx, tripID, newStartMs)
	if err != nil {
		return gtfsdb.TripRun{}, err
	}

	stopTimes, err := q.ListStopTimesForTrip(ctx, tripID)
	if err != nil {
		return gtfsdb.TripRun{}, err
	}
	if len(stopTimes) == 0 {
		return gtfsdb.TripRun{}, fmt.Errorf("%w: no stop times for trip %s", ErrTripRunNotFound, tripID)
	}

	firstDeparture, err := gtfs.ParseTime(stopTimes[0].DepartureTime, serviceDate, loc)
	if err != nil {
		return gtfsdb.TripRun{}, err
	}

	rows := make([]gtfsdb.StopTimeIndexRow, 0, len(stopTimes))
	for _, st := range stopTimes {
		departure, err := gtfs.ParseTime(st.DepartureTime, serviceDate, loc)
		if err != nil {
			return gtfsdb.TripRun{}, err
		}
		delta := departure.UnixMilli() - firstDeparture.UnixMilli()
		rows = append(rows, gtfsdb.StopTimeIndexRow{
			StopID:           st.StopID,
			StopSequence:     st.StopSequence,
			TripID:           tripID,
			TripRunID:        run.ID,
			ArrivalTimestamp: newStartMs + delta,
		})
	}
	if err := q.InsertStopTimeIndexRows(ctx, rows); err != nil {
		return gtfsdb.TripRun{}, err
	}
	return run, nil
}
