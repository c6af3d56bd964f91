package restapi

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"waitemata.arrivals.nz/gtfsdb"
	"waitemata.arrivals.nz/internal/app"
	"waitemata.arrivals.nz/internal/appconf"
	"waitemata.arrivals.nz/internal/clock"
	"waitemata.arrivals.nz/internal/gtfs"
	"waitemata.arrivals.nz/internal/metrics"
	"waitemata.arrivals.nz/internal/realtime"
)

func ns(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func nf(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: true}
}

// newTestAPI builds a RestAPI over a database seeded with two busway stations
// (plus a stop across the road from Akoranga) and two routes, with the clock
// pinned to midday Tuesday 2026-01-06 UTC.
func newTestAPI(t *testing.T) (*RestAPI, *gtfsdb.Client, *clock.MockClock) {
	return newTestAPIWithFeed(t, "http://unused.invalid")
}

func newTestAPIWithFeed(t *testing.T, feedURL string) (*RestAPI, *gtfsdb.Client, *clock.MockClock) {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	client, err := gtfsdb.NewClient(ctx, gtfsdb.NewConfig(dbPath, appconf.Test, false), nil)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	q := client.Queries
	importID, err := q.CreateImport(ctx)
	require.NoError(t, err)

	_, err = q.UpsertAgencies(ctx, []gtfsdb.Agency{{
		AgencyID: "AT", AgencyTimezone: "Pacific/Auckland", ImportID: importID,
	}})
	require.NoError(t, err)
	_, err = q.UpsertRoutes(ctx, []gtfsdb.Route{
		{
			RouteID: "NX1", AgencyID: ns("AT"), RouteShortName: ns("NX1"),
			RouteLongName: ns("Northern Express 1"), RouteType: sql.NullInt64{Int64: 3, Valid: true},
			RouteColor: ns("0A4E8D"), RouteTextColor: ns("FFFFFF"), ImportID: importID,
		},
		{
			RouteID: "82", AgencyID: ns("AT"), RouteShortName: ns("82"),
			RouteLongName: ns("Takapuna Loop"), RouteType: sql.NullInt64{Int64: 3, Valid: true},
			ImportID: importID,
		},
	})
	require.NoError(t, err)
	_, err = q.UpsertCalendars(ctx, []gtfsdb.Calendar{{
		ServiceID: "weekday", Monday: 1, Tuesday: 1, Wednesday: 1, Thursday: 1, Friday: 1,
		StartDate: "20260101", EndDate: "20261231", ImportID: importID,
	}})
	require.NoError(t, err)
	_, err = q.UpsertTrips(ctx, []gtfsdb.Trip{
		{TripID: "trip-1", RouteID: "NX1", ServiceID: "weekday",
			TripHeadsign: ns("City Centre"), ImportID: importID},
		{TripID: "trip-2", RouteID: "82", ServiceID: "weekday",
			TripHeadsign: ns("Takapuna"), ImportID: importID},
	})
	require.NoError(t, err)
	_, err = q.UpsertStops(ctx, []gtfsdb.Stop{
		{StopID: "7033", StopCode: ns("7033"), StopName: ns("Akoranga Station"),
			StopLat: nf(-36.7925), StopLon: nf(174.7603), ImportID: importID},
		{StopID: "7034", StopCode: ns("7034"), StopName: ns("Akoranga Opposite"),
			StopLat: nf(-36.7928), StopLon: nf(174.7606), ImportID: importID},
		{StopID: "7065", StopCode: ns("7065"), StopName: ns("Smales Farm Station"),
			StopLat: nf(-36.7793), StopLon: nf(174.7546), ImportID: importID},
	})
	require.NoError(t, err)
	_, err = q.UpsertStopTimes(ctx, []gtfsdb.StopTime{
		{TripID: "trip-1", ArrivalTime: "08:00:00", DepartureTime: "08:00:30",
			StopID: "7033", StopSequence: 1, ImportID: importID},
		{TripID: "trip-1", ArrivalTime: "08:05:00", DepartureTime: "08:05:30",
			StopID: "7065", StopSequence: 2, StopHeadsign: ns("City via Busway"), ImportID: importID},
		{TripID: "trip-2", ArrivalTime: "09:00:00", DepartureTime: "09:00:00",
			StopID: "7065", StopSequence: 1, ImportID: importID},
	})
	require.NoError(t, err)
	require.NoError(t, q.RefreshServices(ctx))

	clk := clock.NewMockClock(time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC))
	m := metrics.New()
	manager, err := gtfs.NewManager(ctx, client, feedURL, nil, m, clk)
	require.NoError(t, err)
	require.NoError(t, manager.RebuildStopIndex(ctx))
	rt := realtime.NewService(client, "http://unused.invalid", nil, m, clk)

	api := NewRestAPI(&app.Application{
		Config: appconf.Config{
			Env:          appconf.Test,
			DatabasePath: dbPath,
			AllowOrigin:  "*",
			RateLimit:    10,
		},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		GtfsManager: manager,
		Realtime:    rt,
		Clock:       clk,
		Metrics:     m,
	})
	return api, client, clk
}

// seedArrivals materializes one run of trip-1 with an arrival at each station
// shortly after the mock clock's now. The Akoranga arrival carries a realtime
// adjustment and a vehicle.
func seedArrivals(t *testing.T, client *gtfsdb.Client, clk *clock.MockClock) {
	t.Helper()
	ctx := context.Background()
	now := clk.Now()

	runID, err := client.Queries.InsertTripRun(ctx, gtfsdb.TripRun{
		TripID:         "trip-1",
		RouteID:        "NX1",
		StartDate:      "20260106",
		StartTimestamp: now.Add(-5 * time.Minute).UnixMilli(),
	})
	require.NoError(t, err)

	rows := []gtfsdb.StopTimeIndexRow{
		{StopID: "7033", StopSequence: 1, TripID: "trip-1", TripRunID: runID,
			ArrivalTimestamp:   now.Add(5 * time.Minute).UnixMilli(),
			DepartureTimestamp: now.Add(5 * time.Minute).UnixMilli()},
		{StopID: "7065", StopSequence: 2, TripID: "trip-1", TripRunID: runID,
			ArrivalTimestamp:   now.Add(10 * time.Minute).UnixMilli(),
			DepartureTimestamp: now.Add(10 * time.Minute).UnixMilli()},
	}
	require.NoError(t, client.Queries.InsertStopTimeIndexRows(ctx, rows))
	require.NoError(t, client.Queries.SetTripRunVehicle(ctx, runID, "bus-1"))

	_, err = client.DB.Exec(
		"UPDATE stop_time_index SET updated_arrival_timestamp = ? WHERE trip_run_id = ? AND stop_sequence = 1",
		now.Add(6*time.Minute).UnixMilli(), runID)
	require.NoError(t, err)
}

// doRequest runs a request through the full router and middleware chain.
func doRequest(t *testing.T, api *RestAPI, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	api.SetupAPIRoutes().ServeHTTP(rec, req)
	return rec
}
