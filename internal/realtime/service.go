package realtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"waitemata.arrivals.nz/gtfsdb"
	"waitemata.arrivals.nz/internal/clock"
	"waitemata.arrivals.nz/internal/logging"
	"waitemata.arrivals.nz/internal/metrics"
)

const (
	// pollInterval is the pause after a successful poll. It is offset
	// from a round 30 seconds so polls drift across the upstream's own
	// refresh cycle.
	pollInterval = 31 * time.Second

	// errorRetryDelay is the pause after a failed fetch.
	errorRetryDelay = 30 * time.Second

	// staleRetryDelay is the pause after a poll whose feed timestamp was
	// not newer than the previous one.
	staleRetryDelay = 15 * time.Second
)

// Service polls the realtime feed and reconciles its entities into the
// database. One transaction covers each poll; a failing entity rolls back
// to its savepoint and is skipped without losing the rest of the batch.
type Service struct {
	client     *gtfsdb.Client
	feedURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	clock      clock.Clock

	lastTimestamp time.Time
}

func NewService(client *gtfsdb.Client, feedURL string, logger *slog.Logger, m *metrics.Metrics, clk clock.Clock) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:     client,
		feedURL:    feedURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With(slog.String("component", "realtime")),
		metrics:    m,
		clock:      clk,
	}
}

// Run polls until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	for {
		delay, err := s.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.LogError(s.logger, "realtime poll failed", err)
		}
		if err := sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poll fetches the feed once and applies it. It returns how long to wait
// before the next poll.
func (s *Service) Poll(ctx context.Context) (time.Duration, error) {
	feed, err := s.fetch(ctx)
	if err != nil {
		s.metrics.RealtimePollsTotal.WithLabelValues("error").Inc()
		return errorRetryDelay, err
	}

	if feed.Header.Timestamp != nil && !feed.Header.Timestamp.After(s.lastTimestamp) {
		s.metrics.RealtimePollsTotal.WithLabelValues("stale").Inc()
		return staleRetryDelay, nil
	}
	if feed.Header.Timestamp != nil {
		s.lastTimestamp = feed.Header.Timestamp.Time
	}

	if err := s.apply(ctx, feed); err != nil {
		s.metrics.RealtimePollsTotal.WithLabelValues("error").Inc()
		return errorRetryDelay, err
	}
	s.metrics.RealtimePollsTotal.WithLabelValues("ok").Inc()
	return pollInterval, nil
}

// feedResponse is the upstream proxy's envelope around the feed message.
type feedResponse struct {
	Response FeedMessage `json:"response"`
}

func (s *Service) fetch(ctx context.Context) (FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return FeedMessage{}, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return FeedMessage{}, fmt.Errorf("fetching realtime feed: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body, s.logger, "realtime body")

	if resp.StatusCode != http.StatusOK {
		return FeedMessage{}, fmt.Errorf("fetching realtime feed: unexpected status %d", resp.StatusCode)
	}

	var envelope feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return FeedMessage{}, fmt.Errorf("decoding realtime feed: %w", err)
	}
	return envelope.Response, nil
}

func (s *Service) apply(ctx context.Context, feed FeedMessage) error {
	tx, err := s.client.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer logging.SafeRollbackWithLogging(tx, s.logger, "realtime apply")

	q := s.client.Queries.WithTx(tx)
	for _, entity := range feed.Entity {
		if err := s.applyEntity(ctx, tx, q, entity); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// applyEntity dispatches one entity inside a savepoint so a bad entity
// cannot poison the poll's transaction.
func (s *Service) applyEntity(ctx context.Context, tx *sql.Tx, q *gtfsdb.Queries, entity FeedEntity) error {
	var kind string
	var handler func(context.Context, *gtfsdb.Queries, FeedEntity) error
	switch {
	case entity.Alert != nil:
		kind, handler = "alert", s.processAlert
	case entity.TripUpdate != nil:
		kind, handler = "trip_update", s.processTripUpdate
	case entity.Vehicle != nil:
		kind, handler = "vehicle", s.processVehicle
	case entity.Shape != nil:
		kind, handler = "shape", s.processShape
	default:
		return nil
	}

	if _, err := tx.ExecContext(ctx, "SAVEPOINT entity"); err != nil {
		return err
	}
	if err := handler(ctx, q, entity); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO entity"); rbErr != nil {
			return rbErr
		}
		logging.LogError(s.logger, "skipping realtime entity", err,
			slog.String("kind", kind),
			slog.String("entity_id", entity.ID))
		s.metrics.RealtimeEntitiesTotal.WithLabelValues(kind, "error").Inc()
	} else {
		s.metrics.RealtimeEntitiesTotal.WithLabelValues(kind, "ok").Inc()
	}
	_, err := tx.ExecContext(ctx, "RELEASE entity")
	return err
}

// CleanupAlerts removes expired alert periods and orphaned alerts in its
// own transaction. Called from the maintenance cycle.
func (s *Service) CleanupAlerts(ctx context.Context) error {
	tx, err := s.client.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer logging.SafeRollbackWithLogging(tx, s.logger, "alert cleanup")

	q := s.client.Queries.WithTx(tx)
	if err := q.CleanupExpiredAlerts(ctx, s.clock.NowUnixMilli()); err != nil {
		return err
	}
	return tx.Commit()
}
