package realtime

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"waitemata.arrivals.nz/gtfsdb"
	"waitemata.arrivals.nz/internal/logging"
)

// defaultAlertDuration is how long an alert without an end time stays
// active before the expiry sweep removes it.
const defaultAlertDuration = 24 * time.Hour

// processAlert replaces the stored alert for the entity id: the previous
// alert row and its informed entities are deleted, then the alert, its
// informed entities, and its active periods are written fresh.
func (s *Service) processAlert(ctx context.Context, q *gtfsdb.Queries, entity FeedEntity) error {
	alert := entity.Alert
	nowMs := s.clock.NowUnixMilli()

	if err := q.DeleteAlert(ctx, entity.ID); err != nil {
		return err
	}

	row := gtfsdb.Alert{
		AlertID:   entity.ID,
		Timestamp: sql.NullInt64{Int64: nowMs, Valid: true},
	}
	if alert.Cause != nil {
		row.Cause = sql.NullString{String: *alert.Cause, Valid: true}
	}
	if alert.Effect != nil {
		row.Effect = sql.NullString{String: *alert.Effect, Valid: true}
	}
	if text := alert.HeaderText.Get("en"); text != nil {
		row.HeaderText = sql.NullString{String: *text, Valid: true}
	}
	if text := alert.DescriptionText.Get("en"); text != nil {
		row.DescriptionText = sql.NullString{String: *text, Valid: true}
	}
	if err := q.InsertAlert(ctx, row); err != nil {
		return err
	}

	if alert.InformedEntity != nil {
		for _, informed := range *alert.InformedEntity {
			e := gtfsdb.AlertInformedEntity{AlertID: entity.ID}
			if informed.AgencyID != nil {
				e.AgencyID = sql.NullString{String: *informed.AgencyID, Valid: true}
			}
			if informed.RouteID != nil {
				e.RouteID = sql.NullString{String: *informed.RouteID, Valid: true}
			}
			if informed.RouteType != nil {
				e.RouteType = sql.NullInt64{Int64: *informed.RouteType, Valid: true}
			}
			if informed.StopID != nil {
				e.StopID = sql.NullString{String: *informed.StopID, Valid: true}
			}
			if informed.DirectionID != nil {
				e.DirectionID = sql.NullInt64{Int64: *informed.DirectionID, Valid: true}
			}
			if informed.Trip != nil {
				run, err := s.findTripRun(ctx, q, informed.Trip)
				if err == nil {
					e.TripRunID = sql.NullInt64{Int64: run.ID, Valid: true}
				} else if !errors.Is(err, ErrTripRunNotFound) && !errors.Is(err, ErrInvalidEntity) {
					return err
				} else {
					logging.LogOperation(s.logger, "alert trip not matched",
						slog.String("alert_id", entity.ID))
				}
			}
			if err := q.InsertAlertInformedEntity(ctx, e); err != nil {
				return err
			}
		}
	}

	if alert.ActivePeriod != nil {
		for _, period := range *alert.ActivePeriod {
			p := gtfsdb.AlertActivePeriod{
				AlertID:      entity.ID,
				EndTimestamp: nowMs + defaultAlertDuration.Milliseconds(),
			}
			if period.Start != nil {
				p.StartTimestamp = int64(*period.Start) * 1000
			}
			if period.End != nil {
				p.EndTimestamp = int64(*period.End) * 1000
			}
			if err := q.InsertAlertActivePeriod(ctx, p); err != nil {
				return err
			}
		}
	}
	return nil
}
