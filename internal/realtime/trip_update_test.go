package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tripUpdateEntity(id string, tu *TripUpdate) FeedEntity {
	return FeedEntity{ID: id, TripUpdate: tu}
}

func TestTripUpdateCancelsRun(t *testing.T) {
	service, client, _ := newTestService(t)
	run := seedRun(t, client.Queries)
	ctx := context.Background()

	relationship := int64(TripCanceled)
	err := service.processTripUpdate(ctx, client.Queries, tripUpdateEntity("e1", &TripUpdate{
		Trip: TripDescriptor{
			TripID:               strPtr("trip-1"),
			ScheduleRelationship: &relationship,
		},
	}))
	require.NoError(t, err)

	updated, err := client.Queries.GetTripRunByTripAndStart(ctx, "trip-1", run.StartTimestamp)
	require.NoError(t, err)
	assert.Equal(t, int64(TripCanceled), updated.ScheduleRelationship)
}

func TestTripUpdateAppliesDelays(t *testing.T) {
	service, client, _ := newTestService(t)
	run := seedRun(t, client.Queries)
	ctx := context.Background()

	relationship := int64(TripScheduled)
	updates := Many[StopTimeUpdate]{
		{
			StopSequence: i64Ptr(1),
			Arrival:      &StopTimeEvent{Delay: i64Ptr(120)},
			Departure:    &StopTimeEvent{Delay: i64Ptr(150)},
		},
	}
	err := service.processTripUpdate(ctx, client.Queries, tripUpdateEntity("e1", &TripUpdate{
		Trip: TripDescriptor{
			TripID:               strPtr("trip-1"),
			ScheduleRelationship: &relationship,
		},
		StopTimeUpdate: &updates,
	}))
	require.NoError(t, err)

	rows, err := client.Queries.ListStopTimeIndexForRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// The arrival delay covers stop 1; the departure delay then overwrites
	// everything strictly after it.
	assert.Equal(t, rows[0].ArrivalTimestamp+120_000, rows[0].UpdatedArrivalTimestamp.Int64)
	assert.Equal(t, rows[1].ArrivalTimestamp+150_000, rows[1].UpdatedArrivalTimestamp.Int64)
}

func TestTripUpdateUsesAbsolutePredictedTime(t *testing.T) {
	service, client, _ := newTestService(t)
	run := seedRun(t, client.Queries)
	ctx := context.Background()

	rows, err := client.Queries.ListStopTimeIndexForRun(ctx, run.ID)
	require.NoError(t, err)
	predicted := rows[1].ArrivalTimestamp/1000 + 300

	relationship := int64(TripScheduled)
	updates := Many[StopTimeUpdate]{
		{StopSequence: i64Ptr(2), Arrival: &StopTimeEvent{Time: &predicted}},
	}
	err = service.processTripUpdate(ctx, client.Queries, tripUpdateEntity("e1", &TripUpdate{
		Trip: TripDescriptor{
			TripID:               strPtr("trip-1"),
			ScheduleRelationship: &relationship,
		},
		StopTimeUpdate: &updates,
	}))
	require.NoError(t, err)

	rows, err = client.Queries.ListStopTimeIndexForRun(ctx, run.ID)
	require.NoError(t, err)
	assert.False(t, rows[0].UpdatedArrivalTimestamp.Valid, "earlier stops are untouched")
	assert.Equal(t, rows[1].ArrivalTimestamp+300_000, rows[1].UpdatedArrivalTimestamp.Int64,
		"the delta is derived from the predicted absolute time")
}

func TestTripUpdateMatchesByStopID(t *testing.T) {
	service, client, _ := newTestService(t)
	run := seedRun(t, client.Queries)
	ctx := context.Background()

	relationship := int64(TripScheduled)
	updates := Many[StopTimeUpdate]{
		{StopID: strPtr("7065"), Arrival: &StopTimeEvent{Delay: i64Ptr(60)}},
	}
	err := service.processTripUpdate(ctx, client.Queries, tripUpdateEntity("e1", &TripUpdate{
		Trip: TripDescriptor{
			TripID:               strPtr("trip-1"),
			ScheduleRelationship: &relationship,
		},
		StopTimeUpdate: &updates,
	}))
	require.NoError(t, err)

	rows, err := client.Queries.ListStopTimeIndexForRun(ctx, run.ID)
	require.NoError(t, err)
	assert.False(t, rows[0].UpdatedArrivalTimestamp.Valid)
	assert.True(t, rows[1].UpdatedArrivalTimestamp.Valid)
}

func TestTripUpdateUnresolvedStopFailsEntity(t *testing.T) {
	service, client, _ := newTestService(t)
	seedRun(t, client.Queries)

	relationship := int64(TripScheduled)
	updates := Many[StopTimeUpdate]{
		{StopID: strPtr("nowhere"), Arrival: &StopTimeEvent{Delay: i64Ptr(60)}},
	}
	err := service.processTripUpdate(context.Background(), client.Queries, tripUpdateEntity("e1", &TripUpdate{
		Trip: TripDescriptor{
			TripID:               strPtr("trip-1"),
			ScheduleRelationship: &relationship,
		},
		StopTimeUpdate: &updates,
	}))
	assert.ErrorIs(t, err, ErrStopTimeNotFound)
}

func TestTripUpdateIgnoresUnhandledRelationships(t *testing.T) {
	service, client, _ := newTestService(t)
	seedRun(t, client.Queries)
	ctx := context.Background()

	// No schedule relationship at all.
	err := service.processTripUpdate(ctx, client.Queries, tripUpdateEntity("e1", &TripUpdate{
		Trip: TripDescriptor{TripID: strPtr("trip-1")},
	}))
	assert.NoError(t, err)

	// An added trip has no scheduled run to attach to; it is skipped, not
	// treated as an error.
	relationship := int64(TripAdded)
	err = service.processTripUpdate(ctx, client.Queries, tripUpdateEntity("e2", &TripUpdate{
		Trip: TripDescriptor{
			TripID:               strPtr("brand-new-trip"),
			ScheduleRelationship: &relationship,
		},
	}))
	assert.NoError(t, err)
}

func TestTripUpdateAttachesVehicle(t *testing.T) {
	service, client, _ := newTestService(t)
	run := seedRun(t, client.Queries)
	ctx := context.Background()

	relationship := int64(TripScheduled)
	err := service.processTripUpdate(ctx, client.Queries, tripUpdateEntity("e1", &TripUpdate{
		Trip: TripDescriptor{
			TripID:               strPtr("trip-1"),
			ScheduleRelationship: &relationship,
		},
		Vehicle: &VehicleDescriptor{ID: strPtr("bus-7"), Label: strPtr("NX1 to City")},
	}))
	require.NoError(t, err)

	updated, err := client.Queries.GetTripRunByTripAndStart(ctx, "trip-1", run.StartTimestamp)
	require.NoError(t, err)
	assert.Equal(t, "bus-7", updated.VehicleID.String)

	var label string
	require.NoError(t, client.DB.QueryRow(
		"SELECT label FROM vehicles WHERE vehicle_id = 'bus-7'").Scan(&label))
	assert.Equal(t, "NX1 to City", label)
}

func TestDuplicateTripRun(t *testing.T) {
	service, client, _ := newTestService(t)
	seedRun(t, client.Queries)
	ctx := context.Background()

	relationship := int64(TripDuplicated)
	entity := tripUpdateEntity("e1", &TripUpdate{
		Trip: TripDescriptor{
			TripID:               strPtr("trip-1"),
			StartDate:            strPtr("20260106"),
			StartTime:            strPtr("09:30:00"),
			ScheduleRelationship: &relationship,
		},
	})
	require.NoError(t, service.processTripUpdate(ctx, client.Queries, entity))

	loc, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)
	newStart := time.Date(2026, 1, 6, 9, 30, 0, 0, loc)

	run, err := client.Queries.GetTripRunByTripAndStart(ctx, "trip-1", newStart.UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, int64(TripDuplicated), run.ScheduleRelationship)

	rows, err := client.Queries.ListStopTimeIndexForRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2, "the duplicate copies the trip's stop times")
	assert.Equal(t, newStart.UnixMilli(), rows[0].ArrivalTimestamp)
	// Scheduled departures are 08:00:30 and 08:05:30: the 5-minute offset
	// between them is preserved from the new start.
	assert.Equal(t, newStart.Add(5*time.Minute).UnixMilli(), rows[1].ArrivalTimestamp)

	// Applying the same duplication again reuses the run.
	require.NoError(t, service.processTripUpdate(ctx, client.Queries, entity))
	rows, err = client.Queries.ListStopTimeIndexForRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "a repeated duplication does not double the stop times")
}

func TestDuplicateTripRunRequiresStartFields(t *testing.T) {
	service, client, _ := newTestService(t)
	seedRun(t, client.Queries)

	relationship := int64(TripDuplicated)
	err := service.processTripUpdate(context.Background(), client.Queries, tripUpdateEntity("e1", &TripUpdate{
		Trip: TripDescriptor{
			TripID:               strPtr("trip-1"),
			ScheduleRelationship: &relationship,
		},
	}))
	assert.ErrorIs(t, err, ErrInvalidEntity)
}

func TestEventDeltaMs(t *testing.T) {
	delay := int64(90)
	delta, ok := eventDeltaMs(&StopTimeEvent{Delay: &delay}, 500_000)
	assert.True(t, ok)
	assert.Equal(t, int64(90_000), delta)

	predicted := int64(1_000)
	delta, ok = eventDeltaMs(&StopTimeEvent{Time: &predicted}, 400_000)
	assert.True(t, ok)
	assert.Equal(t, int64(600_000), delta)

	_, ok = eventDeltaMs(&StopTimeEvent{}, 0)
	assert.False(t, ok)

	// An explicit delay wins over a predicted time.
	delta, ok = eventDeltaMs(&StopTimeEvent{Delay: &delay, Time: &predicted}, 400_000)
	assert.True(t, ok)
	assert.Equal(t, int64(90_000), delta)
}
