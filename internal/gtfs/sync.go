package gtfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/klauspost/compress/zip"
	"github.com/spkg/bom"

	"waitemata.arrivals.nz/gtfsdb"
	"waitemata.arrivals.nz/internal/logging"
)

// feedFiles lists the archive members ingested from the static feed, in
// dependency order. Each file is written in its own transaction: new rows
// are upserted under the current import id, then rows from older imports
// are deleted, so readers never see an empty table mid-sync.
var feedFiles = []string{
	"feed_info.txt",
	"agency.txt",
	"calendar.txt",
	"calendar_dates.txt",
	"routes.txt",
	"trips.txt",
	"shapes.txt",
	"stops.txt",
	"stop_times.txt",
}

var fileTables = map[string]string{
	"feed_info.txt":      "gtfs_feed_info",
	"agency.txt":         "gtfs_agency",
	"calendar.txt":       "gtfs_calendar",
	"calendar_dates.txt": "gtfs_calendar_dates",
	"routes.txt":         "gtfs_routes",
	"trips.txt":          "gtfs_trips",
	"shapes.txt":         "gtfs_shapes",
	"stops.txt":          "gtfs_stops",
	"stop_times.txt":     "gtfs_stop_times",
}

func decodeCSV[T any](r io.Reader) ([]T, error) {
	var records []T
	if err := gocsv.Unmarshal(bom.NewReader(r), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Sync downloads the static feed and ingests it as a new import generation.
// It returns the number of rows written, which is zero when the feed's
// Last-Modified header matches the previous import.
func (m *Manager) Sync(ctx context.Context) (int64, error) {
	lastImport, err := m.client.Queries.GetLastImport(ctx)
	if err != nil && !errors.Is(err, gtfsdb.ErrNotFound) {
		return 0, fmt.Errorf("reading last import: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.gtfsURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching feed: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body, m.logger, "feed body")

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetching feed: unexpected status %d", resp.StatusCode)
	}

	lastModified := resp.Header.Get("Last-Modified")
	if lastModified != "" && lastImport.FileLastModified.Valid &&
		lastImport.FileLastModified.String == lastModified {
		logging.LogOperation(m.logger, "feed unchanged",
			slog.String("last_modified", lastModified))
		return 0, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading feed body: %w", err)
	}

	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return 0, fmt.Errorf("opening feed archive: %w", err)
	}

	start := time.Now()
	bulk := gtfsdb.New(m.client.Bulk)

	importID, err := bulk.CreateImport(ctx)
	if err != nil {
		return 0, fmt.Errorf("creating import: %w", err)
	}

	var total int64
	for _, name := range feedFiles {
		n, err := m.ingestFile(ctx, archive, name, importID)
		if err != nil {
			return total, fmt.Errorf("ingesting %s: %w", name, err)
		}
		total += n

		if name == "calendar_dates.txt" {
			if err := bulk.RefreshServices(ctx); err != nil {
				return total, fmt.Errorf("refreshing services: %w", err)
			}
		}
	}

	if err := bulk.SetImportLastModified(ctx, importID, lastModified); err != nil {
		return total, fmt.Errorf("finalizing import: %w", err)
	}

	m.metrics.GTFSSyncRowsTotal.Add(float64(total))
	logging.LogOperation(m.logger, "feed synced",
		slog.Int64("import_id", importID),
		slog.Int64("rows", total),
		slog.Duration("elapsed", time.Since(start)))
	return total, nil
}

func openMember(archive *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range archive.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("archive member %s missing", name)
}

func (m *Manager) ingestFile(ctx context.Context, archive *zip.Reader, name string, importID int64) (int64, error) {
	rc, err := openMember(archive, name)
	if err != nil {
		return 0, err
	}
	defer logging.SafeCloseWithLogging(rc, m.logger, name)

	tx, err := m.client.Bulk.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer logging.SafeRollbackWithLogging(tx, m.logger, "ingest "+name)

	q := m.client.Queries.WithTx(tx)
	batchSize := m.client.Config.GetBulkInsertBatchSize()

	var inserted int64
	switch name {
	case "feed_info.txt":
		inserted, err = ingestRecords(ctx, rc, batchSize,
			func(r feedInfoRecord) gtfsdb.FeedInfo { return r.toModel(importID) },
			func(batch []gtfsdb.FeedInfo) (int64, error) { return q.InsertFeedInfo(ctx, batch) })
	case "agency.txt":
		inserted, err = ingestRecords(ctx, rc, batchSize,
			func(r agencyRecord) gtfsdb.Agency { return r.toModel(importID) },
			func(batch []gtfsdb.Agency) (int64, error) { return q.UpsertAgencies(ctx, batch) })
	case "calendar.txt":
		inserted, err = ingestRecords(ctx, rc, batchSize,
			func(r calendarRecord) gtfsdb.Calendar { return r.toModel(importID) },
			func(batch []gtfsdb.Calendar) (int64, error) { return q.UpsertCalendars(ctx, batch) })
	case "calendar_dates.txt":
		inserted, err = ingestRecords(ctx, rc, batchSize,
			func(r calendarDateRecord) gtfsdb.CalendarDate { return r.toModel(importID) },
			func(batch []gtfsdb.CalendarDate) (int64, error) { return q.UpsertCalendarDates(ctx, batch) })
	case "routes.txt":
		inserted, err = ingestRecords(ctx, rc, batchSize,
			func(r routeRecord) gtfsdb.Route { return r.toModel(importID) },
			func(batch []gtfsdb.Route) (int64, error) { return q.UpsertRoutes(ctx, batch) })
	case "trips.txt":
		inserted, err = ingestRecords(ctx, rc, batchSize,
			func(r tripRecord) gtfsdb.Trip { return r.toModel(importID) },
			func(batch []gtfsdb.Trip) (int64, error) { return q.UpsertTrips(ctx, batch) })
	case "shapes.txt":
		inserted, err = ingestRecords(ctx, rc, batchSize,
			func(r shapeRecord) gtfsdb.Shape { return r.toModel(importID) },
			func(batch []gtfsdb.Shape) (int64, error) { return q.UpsertShapes(ctx, batch) })
	case "stops.txt":
		inserted, err = ingestRecords(ctx, rc, batchSize,
			func(r stopRecord) gtfsdb.Stop { return r.toModel(importID) },
			func(batch []gtfsdb.Stop) (int64, error) { return q.UpsertStops(ctx, batch) })
	case "stop_times.txt":
		inserted, err = ingestRecords(ctx, rc, batchSize,
			func(r stopTimeRecord) gtfsdb.StopTime { return r.toModel(importID) },
			func(batch []gtfsdb.StopTime) (int64, error) { return q.UpsertStopTimes(ctx, batch) })
	}
	if err != nil {
		return 0, err
	}

	if err := q.DeleteSupersededRows(ctx, fileTables[name], importID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	logging.LogOperation(m.logger, "file ingested",
		slog.String("file", name), slog.Int64("rows", inserted))
	return inserted, nil
}

func ingestRecords[R any, M any](ctx context.Context, r io.Reader, batchSize int, convert func(R) M, write func([]M) (int64, error)) (int64, error) {
	records, err := decodeCSV[R](r)
	if err != nil {
		return 0, err
	}

	var total int64
	batch := make([]M, 0, batchSize)
	flush := func() error {
		n, err := write(batch)
		if err != nil {
			return err
		}
		total += n
		batch = batch[:0]
		return nil
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch = append(batch, convert(rec))
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return total, err
		}
	}
	return total, nil
}
