package gtfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"waitemata.arrivals.nz/gtfsdb"
	"waitemata.arrivals.nz/internal/logging"
)

const (
	// indexHorizonDays bounds how far forward stop times are materialized.
	indexHorizonDays = 60

	dayMs = 24 * 60 * 60 * 1000
	binMs = 10 * 60 * 1000
	bins  = dayMs / binMs
)

// RebuildStopTimeIndex rematerializes the stop-time occurrence index from
// yesterday through the end of scheduled service, capped at the horizon.
// Trip runs are recreated from scratch and the quietest ten-minute window
// of the day is recorded as the maintenance time.
func (m *Manager) RebuildStopTimeIndex(ctx context.Context) error {
	start := time.Now()

	lastDateStr, err := m.client.Queries.GetLastServiceDate(ctx)
	if err != nil {
		if errors.Is(err, gtfsdb.ErrNotFound) {
			logging.LogOperation(m.logger, "no scheduled service to index")
			return nil
		}
		return err
	}
	lastDate, err := ParseDate(lastDateStr, time.UTC)
	if err != nil {
		return err
	}

	now := m.clock.Now().UTC()
	firstDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	horizon := firstDate.AddDate(0, 0, indexHorizonDays)
	if lastDate.After(horizon) {
		lastDate = horizon
	}

	tableSQL, err := gtfsdb.StopTimeIndexTableSQL()
	if err != nil {
		return err
	}
	indexSQL, err := gtfsdb.StopTimeIndexIndexesSQL()
	if err != nil {
		return err
	}

	tx, err := m.client.Bulk.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer logging.SafeRollbackWithLogging(tx, m.logger, "rebuild stop time index")

	q := m.client.Queries.WithTx(tx)
	if err := q.DeleteAllTripRuns(ctx); err != nil {
		return err
	}
	// Dropping the table and writing without indexes is much faster than
	// deleting rows in place.
	if _, err := tx.ExecContext(ctx, gtfsdb.StopTimeIndexTableDownSQL()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tableSQL); err != nil {
		return err
	}

	idx := &stopTimeIndexer{
		queries:   q,
		logger:    m.logger,
		batchSize: m.client.Config.GetBulkInsertBatchSize(),
		locations: map[string]*time.Location{},
	}

	var days int
	for d := firstDate; !d.After(lastDate); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := idx.indexDate(ctx, d); err != nil {
			return err
		}
		days++
	}
	if err := idx.flush(ctx); err != nil {
		return err
	}

	if err := q.SetMaintenanceTime(ctx, idx.quietestMinute()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, indexSQL); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	m.metrics.IndexRebuildDuration.WithLabelValues("stop_time_index").Observe(time.Since(start).Seconds())
	logging.LogOperation(m.logger, "stop time index rebuilt",
		slog.Int("days", days),
		slog.Int64("rows", idx.rows),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

type stopTimeIndexer struct {
	queries   *gtfsdb.Queries
	logger    *slog.Logger
	batchSize int
	locations map[string]*time.Location

	batch     []gtfsdb.StopTimeIndexRow
	histogram [bins]int64
	rows      int64
}

func (idx *stopTimeIndexer) location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	if loc, ok := idx.locations[name]; ok {
		return loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logging.LogError(idx.logger, "unknown agency timezone", err,
			slog.String("timezone", name))
		loc = time.UTC
	}
	idx.locations[name] = loc
	return loc
}

func (idx *stopTimeIndexer) indexDate(ctx context.Context, day time.Time) error {
	dateStr := day.Format("20060102")
	weekday := strings.ToLower(day.Weekday().String())

	occurrences, err := idx.queries.ListStopTimeOccurrencesForDate(ctx, dateStr, weekday)
	if err != nil {
		return err
	}

	var (
		currentTripID string
		currentRunID  int64
	)
	for _, occ := range occurrences {
		loc := idx.location(occ.AgencyTimezone.String)
		serviceDate, err := ParseDate(dateStr, loc)
		if err != nil {
			return err
		}

		if occ.StopSequence == 1 {
			currentTripID = occ.TripID
			currentRunID = 0
			if !occ.RouteID.Valid {
				continue
			}
			departure, err := ParseTime(occ.DepartureTime, serviceDate, loc)
			if err != nil {
				return fmt.Errorf("trip %s on %s: first departure: %w", occ.TripID, dateStr, err)
			}
			runID, err := idx.queries.InsertTripRun(ctx, gtfsdb.TripRun{
				TripID:         occ.TripID,
				RouteID:        occ.RouteID.String,
				DirectionID:    occ.DirectionID,
				StartDate:      dateStr,
				StartTimestamp: departure.UnixMilli(),
			})
			if err != nil {
				return err
			}
			currentRunID = runID
		}
		if occ.TripID != currentTripID {
			return fmt.Errorf("trip %s on %s: stop sequence %d has no first stop",
				occ.TripID, dateStr, occ.StopSequence)
		}
		if currentRunID == 0 {
			// Trip skipped for lacking a route.
			continue
		}

		arrival, err := ParseTime(occ.ArrivalTime, serviceDate, loc)
		if err != nil {
			return fmt.Errorf("trip %s on %s: arrival at sequence %d: %w",
				occ.TripID, dateStr, occ.StopSequence, err)
		}
		departure, err := ParseTime(occ.DepartureTime, serviceDate, loc)
		if err != nil {
			departure = arrival
		}

		arrivalMs := arrival.UnixMilli()
		idx.histogram[(arrivalMs%dayMs)/binMs]++
		idx.batch = append(idx.batch, gtfsdb.StopTimeIndexRow{
			StopID:             occ.StopID,
			StopSequence:       occ.StopSequence,
			TripID:             occ.TripID,
			TripRunID:          currentRunID,
			ArrivalTimestamp:   arrivalMs,
			DepartureTimestamp: departure.UnixMilli(),
		})
		idx.rows++
		if len(idx.batch) >= idx.batchSize {
			if err := idx.flush(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (idx *stopTimeIndexer) flush(ctx context.Context) error {
	if len(idx.batch) == 0 {
		return nil
	}
	if err := idx.queries.InsertStopTimeIndexRows(ctx, idx.batch); err != nil {
		return err
	}
	idx.batch = idx.batch[:0]
	return nil
}

// quietestMinute returns the start of the ten-minute window of the day with
// the fewest arrivals, as a minute of day.
func (idx *stopTimeIndexer) quietestMinute() int64 {
	minBin := 0
	for i := 1; i < bins; i++ {
		if idx.histogram[i] < idx.histogram[minBin] {
			minBin = i
		}
	}
	return int64(minBin * 10)
}
