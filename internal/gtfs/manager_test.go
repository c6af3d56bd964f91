package gtfs

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"waitemata.arrivals.nz/gtfsdb"
	"waitemata.arrivals.nz/internal/appconf"
	"waitemata.arrivals.nz/internal/clock"
	"waitemata.arrivals.nz/internal/metrics"
)

// newTestManager builds a Manager over a fresh temp database, with a mock
// clock pinned to midday UTC on 2026-01-06 (a Tuesday).
func newTestManager(t *testing.T, gtfsURL string) (*Manager, *gtfsdb.Client, *clock.MockClock) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	client, err := gtfsdb.NewClient(ctx, gtfsdb.NewConfig(dbPath, appconf.Test, false), nil)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	clk := clock.NewMockClock(time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC))
	manager, err := NewManager(ctx, client, gtfsURL, nil, metrics.New(), clk)
	require.NoError(t, err)
	return manager, client, clk
}

func ns(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func nf(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: true}
}

// seedSchedule writes a weekday schedule directly through the query layer:
// two trips over three stops, with one trip departing past midnight.
func seedSchedule(t *testing.T, q *gtfsdb.Queries) {
	t.Helper()
	ctx := context.Background()

	importID, err := q.CreateImport(ctx)
	require.NoError(t, err)

	_, err = q.UpsertAgencies(ctx, []gtfsdb.Agency{{
		AgencyID:       "AT",
		AgencyName:     ns("Auckland Transport"),
		AgencyTimezone: "Pacific/Auckland",
		ImportID:       importID,
	}})
	require.NoError(t, err)

	_, err = q.UpsertRoutes(ctx, []gtfsdb.Route{{
		RouteID:        "NX1",
		AgencyID:       ns("AT"),
		RouteShortName: ns("NX1"),
		ImportID:       importID,
	}})
	require.NoError(t, err)

	_, err = q.UpsertCalendars(ctx, []gtfsdb.Calendar{{
		ServiceID: "weekday",
		Monday:    1, Tuesday: 1, Wednesday: 1, Thursday: 1, Friday: 1,
		StartDate: "20260101",
		EndDate:   "20260110",
		ImportID:  importID,
	}})
	require.NoError(t, err)

	_, err = q.UpsertTrips(ctx, []gtfsdb.Trip{
		{TripID: "trip-1", RouteID: "NX1", ServiceID: "weekday", ImportID: importID},
		{TripID: "trip-owl", RouteID: "NX1", ServiceID: "weekday", ImportID: importID},
	})
	require.NoError(t, err)

	_, err = q.UpsertStops(ctx, []gtfsdb.Stop{
		{StopID: "7033", StopCode: ns("7033"), StopName: ns("Akoranga Station"), StopLat: nf(-36.7925), StopLon: nf(174.7603), ImportID: importID},
		{StopID: "7065", StopCode: ns("7065"), StopName: ns("Smales Farm Station"), StopLat: nf(-36.7793), StopLon: nf(174.7546), ImportID: importID},
		{StopID: "no-coords", StopName: ns("Planned Stop"), ImportID: importID},
	})
	require.NoError(t, err)

	_, err = q.UpsertStopTimes(ctx, []gtfsdb.StopTime{
		{TripID: "trip-1", ArrivalTime: "08:00:00", DepartureTime: "08:00:30", StopID: "7033", StopSequence: 1, ImportID: importID},
		{TripID: "trip-1", ArrivalTime: "08:05:00", DepartureTime: "08:05:30", StopID: "7065", StopSequence: 2, ImportID: importID},
		{TripID: "trip-owl", ArrivalTime: "25:10:00", DepartureTime: "25:10:00", StopID: "7033", StopSequence: 1, ImportID: importID},
	})
	require.NoError(t, err)

	require.NoError(t, q.RefreshServices(ctx))
}
