package gtfsdb

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func ns(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func nf(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: true}
}

func ni(i int64) sql.NullInt64 {
	return sql.NullInt64{Int64: i, Valid: true}
}

func sp(s string) *string {
	return &s
}

// seedSchedule writes a small but complete schedule: one agency, one route,
// a weekday service, two trips, three stops, and their stop times.
func seedSchedule(t *testing.T, q *Queries) int64 {
	t.Helper()
	ctx := context.Background()

	importID, err := q.CreateImport(ctx)
	require.NoError(t, err)

	_, err = q.UpsertAgencies(ctx, []Agency{{
		AgencyID:       "AT",
		AgencyName:     ns("Auckland Transport"),
		AgencyURL:      ns("https://at.govt.nz"),
		AgencyTimezone: "Pacific/Auckland",
		ImportID:       importID,
	}})
	require.NoError(t, err)

	_, err = q.UpsertRoutes(ctx, []Route{
		{
			RouteID:        "NX1",
			AgencyID:       ns("AT"),
			RouteShortName: ns("NX1"),
			RouteLongName:  ns("Northern Express 1"),
			RouteType:      ni(3),
			RouteColor:     ns("00A6D6"),
			RouteTextColor: ns("FFFFFF"),
			ImportID:       importID,
		},
		{
			RouteID:        "82",
			AgencyID:       ns("AT"),
			RouteShortName: ns("82"),
			RouteLongName:  ns("Takapuna Loop"),
			RouteType:      ni(3),
			ImportID:       importID,
		},
	})
	require.NoError(t, err)

	_, err = q.UpsertCalendars(ctx, []Calendar{{
		ServiceID: "weekday",
		Monday:    1, Tuesday: 1, Wednesday: 1, Thursday: 1, Friday: 1,
		StartDate: "20260101",
		EndDate:   "20261231",
		ImportID:  importID,
	}})
	require.NoError(t, err)

	_, err = q.UpsertTrips(ctx, []Trip{
		{
			TripID:       "trip-1",
			RouteID:      "NX1",
			ServiceID:    "weekday",
			TripHeadsign: ns("City Centre"),
			DirectionID:  ni(0),
			ImportID:     importID,
		},
		{
			TripID:       "trip-2",
			RouteID:      "82",
			ServiceID:    "weekday",
			TripHeadsign: ns("Takapuna"),
			DirectionID:  ni(1),
			ImportID:     importID,
		},
	})
	require.NoError(t, err)

	_, err = q.UpsertStops(ctx, []Stop{
		{
			StopID:   "7033",
			StopCode: ns("7033"),
			StopName: ns("Akoranga Station"),
			StopLat:  nf(-36.7925),
			StopLon:  nf(174.7603),
			ImportID: importID,
		},
		{
			StopID:   "7065",
			StopCode: ns("7065"),
			StopName: ns("Smales Farm Station"),
			StopLat:  nf(-36.7793),
			StopLon:  nf(174.7546),
			ImportID: importID,
		},
		{
			StopID:   "no-code",
			StopName: ns("Unnamed Shelter"),
			StopLat:  nf(-36.7800),
			StopLon:  nf(174.7550),
			ImportID: importID,
		},
	})
	require.NoError(t, err)

	_, err = q.UpsertStopTimes(ctx, []StopTime{
		{TripID: "trip-1", ArrivalTime: "08:00:00", DepartureTime: "08:00:30", StopID: "7033", StopSequence: 1, ImportID: importID},
		{TripID: "trip-1", ArrivalTime: "08:05:00", DepartureTime: "08:05:30", StopID: "7065", StopSequence: 2, StopHeadsign: ns("City via Busway"), ImportID: importID},
		{TripID: "trip-2", ArrivalTime: "25:10:00", DepartureTime: "25:10:00", StopID: "7065", StopSequence: 1, ImportID: importID},
	})
	require.NoError(t, err)

	require.NoError(t, q.RefreshServices(ctx))
	return importID
}
