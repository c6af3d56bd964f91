package maintenance

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waitemata.arrivals.nz/gtfsdb"
	"waitemata.arrivals.nz/internal/appconf"
	"waitemata.arrivals.nz/internal/clock"
	"waitemata.arrivals.nz/internal/gtfs"
	"waitemata.arrivals.nz/internal/metrics"
	"waitemata.arrivals.nz/internal/realtime"
)

func feedArchive(t *testing.T) []byte {
	t.Helper()
	files := map[string]string{
		"feed_info.txt": "feed_publisher_name,feed_publisher_url,feed_lang,feed_start_date,feed_end_date,feed_version\n" +
			"Auckland Transport,https://at.govt.nz,en,20260101,20261231,v1\n",
		"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n" +
			"AT,Auckland Transport,https://at.govt.nz,Pacific/Auckland\n",
		"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
			"weekday,1,1,1,1,1,0,0,20260101,20261231\n",
		"calendar_dates.txt": "service_id,date,exception_type\n" +
			"anniversary,20260126,1\n",
		"routes.txt": "route_id,agency_id,route_short_name,route_long_name,route_type\n" +
			"NX1,AT,NX1,Northern Express 1,3\n",
		"trips.txt": "trip_id,route_id,service_id,trip_headsign,direction_id\n" +
			"trip-1,NX1,weekday,City Centre,0\n",
		"shapes.txt": "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
			"shape-1,-36.7925,174.7603,1\nshape-1,-36.7793,174.7546,2\n",
		"stops.txt": "stop_id,stop_code,stop_name,stop_lat,stop_lon\n" +
			"7033,7033,Akoranga Station,-36.7925,174.7603\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"trip-1,08:00:00,08:00:30,7033,1\n",
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newTestScheduler(t *testing.T, gtfsURL string) (*Scheduler, *gtfsdb.Client, *clock.MockClock, *metrics.Metrics) {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	client, err := gtfsdb.NewClient(ctx, gtfsdb.NewConfig(dbPath, appconf.Test, false), nil)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	clk := clock.NewMockClock(time.Date(2026, 1, 5, 19, 0, 0, 0, time.UTC))
	m := metrics.New()
	manager, err := gtfs.NewManager(ctx, client, gtfsURL, nil, m, clk)
	require.NoError(t, err)
	rt := realtime.NewService(client, "http://unused.invalid", nil, m, clk)
	return NewScheduler(manager, rt, nil, m, clk), client, clk, m
}

func TestRunOnce(t *testing.T) {
	archive := feedArchive(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", "Mon, 05 Jan 2026 02:00:00 GMT")
		_, _ = w.Write(archive)
	}))
	t.Cleanup(server.Close)

	scheduler, client, _, m := newTestScheduler(t, server.URL)
	ctx := context.Background()

	// An alert that has already expired disappears during the cycle.
	nowMs := time.Date(2026, 1, 5, 19, 0, 0, 0, time.UTC).UnixMilli()
	require.NoError(t, client.Queries.InsertAlert(ctx, gtfsdb.Alert{AlertID: "old"}))
	require.NoError(t, client.Queries.InsertAlertActivePeriod(ctx, gtfsdb.AlertActivePeriod{
		AlertID: "old", EndTimestamp: nowMs - 1000,
	}))

	require.NoError(t, scheduler.RunOnce(ctx))

	counts, err := client.TableCounts()
	require.NoError(t, err)
	assert.NotZero(t, counts["trip_runs"], "the cycle syncs and indexes the feed")
	assert.Zero(t, counts["alerts"], "the cycle sweeps expired alerts")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MaintenanceRunsTotal))
}

func TestRunFailsWithoutMaintenanceTime(t *testing.T) {
	scheduler, _, _, _ := newTestScheduler(t, "http://unused.invalid")

	err := scheduler.Run(context.Background())
	assert.Error(t, err, "the window is unknown until the first index build")
}

func TestWaitUntilMinute(t *testing.T) {
	scheduler, _, clk, _ := newTestScheduler(t, "http://unused.invalid")

	// 19:00 UTC is minute 1140.
	assert.Equal(t, time.Hour, scheduler.waitUntilMinute(1200))
	assert.Equal(t, 6*time.Hour, scheduler.waitUntilMinute(60), "an earlier minute wraps to tomorrow")
	assert.Equal(t, 24*time.Hour, scheduler.waitUntilMinute(1140), "the current minute means a full day")

	clk.Set(time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 30*time.Minute, scheduler.waitUntilMinute(30))
}
