package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"waitemata.arrivals.nz/gtfsdb"
	"waitemata.arrivals.nz/internal/gtfs"
)

var (
	// ErrTripRunNotFound means no materialized trip run matched a
	// realtime trip descriptor.
	ErrTripRunNotFound = errors.New("trip run not found")

	// ErrStopTimeNotFound means a stop time update referenced a stop the
	// run does not visit.
	ErrStopTimeNotFound = errors.New("stop time not found")

	// ErrInvalidEntity means a feed entity is missing a field required
	// to act on it.
	ErrInvalidEntity = errors.New("invalid entity")
)

// findTripRun resolves a trip descriptor to the materialized trip run whose
// start time is closest to the described moment. The descriptor's start
// date and time, when present, override the current date and time in the
// operating agency's timezone.
func (s *Service) findTripRun(ctx context.Context, q *gtfsdb.Queries, desc *TripDescriptor) (gtfsdb.TripRun, error) {
	var trip *gtfsdb.Trip
	if desc.TripID != nil {
		t, err := q.GetTrip(ctx, *desc.TripID)
		if err == nil {
			trip = &t
		} else if !errors.Is(err, gtfsdb.ErrNotFound) {
			return gtfsdb.TripRun{}, err
		}
	}

	routeID := desc.RouteID
	if routeID == nil && trip != nil {
		routeID = &trip.RouteID
	}
	if routeID == nil {
		return gtfsdb.TripRun{}, fmt.Errorf("%w: no route for trip descriptor", ErrInvalidEntity)
	}

	tz, err := q.GetTimezoneForRoute(ctx, *routeID)
	if err != nil {
		if errors.Is(err, gtfsdb.ErrNotFound) {
			return gtfsdb.TripRun{}, fmt.Errorf("%w: no agency timezone for route %s", ErrTripRunNotFound, *routeID)
		}
		return gtfsdb.TripRun{}, err
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return gtfsdb.TripRun{}, fmt.Errorf("loading timezone %s: %w", tz, err)
	}

	target := s.clock.Now().In(loc)
	if desc.StartDate != nil {
		date, err := gtfs.ParseDate(*desc.StartDate, loc)
		if err != nil {
			return gtfsdb.TripRun{}, err
		}
		target = time.Date(date.Year(), date.Month(), date.Day(),
			target.Hour(), target.Minute(), target.Second(), 0, loc)
	}
	if desc.StartTime != nil {
		base := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, loc)
		t, err := gtfs.ParseTime(*desc.StartTime, base, loc)
		if err != nil {
			return gtfsdb.TripRun{}, err
		}
		target = t
	}

	params := gtfsdb.FindTripRunParams{
		TripID:      desc.TripID,
		RouteID:     routeID,
		DirectionID: desc.DirectionID,
		StartDate:   desc.StartDate,
		TargetMs:    target.UnixMilli(),
	}
	run, err := q.FindTripRunClosest(ctx, params)
	if err != nil {
		if errors.Is(err, gtfsdb.ErrNotFound) {
			return gtfsdb.TripRun{}, ErrTripRunNotFound
		}
		return gtfsdb.TripRun{}, err
	}
	return run, nil
}
