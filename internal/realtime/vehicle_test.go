package realtime

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessVehicleStoresPosition(t *testing.T) {
	service, client, _ := newTestService(t)
	ctx := context.Background()

	bearing := MaybeString(182.0)
	speed := 13.9
	reported := &UnixTime{Time: time.Date(2026, 1, 5, 18, 59, 40, 0, time.UTC)}
	err := service.processVehicle(ctx, client.Queries, FeedEntity{
		ID: "v1",
		Vehicle: &VehiclePosition{
			Vehicle: &VehicleDescriptor{
				ID:           strPtr("bus-9"),
				Label:        strPtr("NX1"),
				LicensePlate: strPtr("ABC123"),
			},
			Position: &Position{
				Latitude:  -36.7925,
				Longitude: 174.7603,
				Bearing:   &bearing,
				Speed:     &speed,
			},
			Timestamp: reported,
		},
	})
	require.NoError(t, err)

	var (
		label     string
		lat, lon  float64
		gotSpeed  float64
		timestamp int64
	)
	require.NoError(t, client.DB.QueryRow(
		"SELECT label, lat, lon, speed, timestamp FROM vehicles WHERE vehicle_id = 'bus-9'").
		Scan(&label, &lat, &lon, &gotSpeed, &timestamp))
	assert.Equal(t, "NX1", label)
	assert.Equal(t, -36.7925, lat)
	assert.Equal(t, 174.7603, lon)
	assert.Equal(t, 13.9, gotSpeed)
	assert.Equal(t, reported.UnixMilli(), timestamp, "the feed timestamp wins over the wall clock")
}

func TestProcessVehicleWithoutPositionClearsFix(t *testing.T) {
	service, client, _ := newTestService(t)
	ctx := context.Background()

	position := FeedEntity{ID: "v1", Vehicle: &VehiclePosition{
		Vehicle:  &VehicleDescriptor{ID: strPtr("bus-9")},
		Position: &Position{Latitude: -36.79, Longitude: 174.76},
	}}
	require.NoError(t, service.processVehicle(ctx, client.Queries, position))

	bare := FeedEntity{ID: "v2", Vehicle: &VehiclePosition{
		Vehicle: &VehicleDescriptor{ID: strPtr("bus-9")},
	}}
	require.NoError(t, service.processVehicle(ctx, client.Queries, bare))

	var lat sql.NullFloat64
	require.NoError(t, client.DB.QueryRow(
		"SELECT lat FROM vehicles WHERE vehicle_id = 'bus-9'").Scan(&lat))
	assert.False(t, lat.Valid, "a report without a fix does not keep the old one")
}

func TestProcessVehicleAttachesToRun(t *testing.T) {
	service, client, _ := newTestService(t)
	run := seedRun(t, client.Queries)
	ctx := context.Background()

	err := service.processVehicle(ctx, client.Queries, FeedEntity{
		ID: "v1",
		Vehicle: &VehiclePosition{
			Trip:     &TripDescriptor{TripID: strPtr("trip-1")},
			Vehicle:  &VehicleDescriptor{ID: strPtr("bus-9")},
			Position: &Position{Latitude: -36.79, Longitude: 174.76},
		},
	})
	require.NoError(t, err)

	updated, err := client.Queries.GetTripRunByTripAndStart(ctx, "trip-1", run.StartTimestamp)
	require.NoError(t, err)
	assert.Equal(t, "bus-9", updated.VehicleID.String)
}

func TestProcessVehicleRejectsMissingID(t *testing.T) {
	service, client, _ := newTestService(t)

	err := service.processVehicle(context.Background(), client.Queries, FeedEntity{
		ID:      "v1",
		Vehicle: &VehiclePosition{Position: &Position{Latitude: -36.79, Longitude: 174.76}},
	})
	assert.ErrorIs(t, err, ErrInvalidEntity)
}
