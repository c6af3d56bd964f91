package gtfs

import (
	"context"
	"log/slog"
	"time"

	"waitemata.arrivals.nz/gtfsdb"
	"waitemata.arrivals.nz/internal/geo"
	"waitemata.arrivals.nz/internal/logging"
)

// stopSearchRadiusMetres is the minimum radius a stop's precomputed
// bounding box must cover.
const stopSearchRadiusMetres = 1000

// RebuildStopIndex recomputes every stop's search bounding box and reloads
// the in-memory spatial index. Stops without coordinates are skipped.
func (m *Manager) RebuildStopIndex(ctx context.Context) error {
	start := time.Now()

	tx, err := m.client.Bulk.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer logging.SafeRollbackWithLogging(tx, m.logger, "rebuild stop index")

	q := m.client.Queries.WithTx(tx)
	if err := q.DeleteStopIndex(ctx); err != nil {
		return err
	}

	stops, err := q.ListStopsWithCoords(ctx)
	if err != nil {
		return err
	}

	batchSize := m.client.Config.GetBulkInsertBatchSize()
	batch := make([]gtfsdb.StopIndexEntry, 0, batchSize)
	for _, stop := range stops {
		box := geo.BoundingBoxAround(geo.Point{
			Lat: stop.StopLat.Float64,
			Lon: stop.StopLon.Float64,
		}, stopSearchRadiusMetres)
		batch = append(batch, gtfsdb.StopIndexEntry{
			StopID: stop.StopID,
			MinLat: box.MinLat,
			MaxLat: box.MaxLat,
			MinLon: box.MinLon,
			MaxLon: box.MaxLon,
		})
		if len(batch) >= batchSize {
			if err := q.InsertStopIndexEntries(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := q.InsertStopIndexEntries(ctx, batch); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	m.metrics.IndexRebuildDuration.WithLabelValues("stop_index").Observe(time.Since(start).Seconds())
	logging.LogOperation(m.logger, "stop index rebuilt",
		slog.Int("stops", len(stops)),
		slog.Duration("elapsed", time.Since(start)))

	return m.reloadSpatialIndex(ctx)
}
