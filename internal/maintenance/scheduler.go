// Package maintenance runs the nightly upkeep cycle: refreshing the static
// feed, rebuilding the derived indexes when it changed, and expiring alerts.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"waitemata.arrivals.nz/internal/clock"
	"waitemata.arrivals.nz/internal/gtfs"
	"waitemata.arrivals.nz/internal/logging"
	"waitemata.arrivals.nz/internal/metrics"
	"waitemata.arrivals.nz/internal/realtime"
)

const minutesPerDay = 24 * 60

type Scheduler struct {
	manager  *gtfs.Manager
	realtime *realtime.Service
	logger   *slog.Logger
	metrics  *metrics.Metrics
	clock    clock.Clock
}

func NewScheduler(manager *gtfs.Manager, rt *realtime.Service, logger *slog.Logger, m *metrics.Metrics, clk clock.Clock) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		manager:  manager,
		realtime: rt,
		logger:   logger.With(slog.String("component", "maintenance")),
		metrics:  m,
		clock:    clk,
	}
}

// Run waits for each maintenance window and performs the cycle, until the
// context is canceled. The window is the quietest minute of the day found
// during stop-time indexing, so the initial sync and index must have run.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		mt, err := s.manager.Queries().GetMaintenanceTime(ctx)
		if err != nil {
			return fmt.Errorf("reading maintenance time: %w", err)
		}

		wait := s.waitUntilMinute(mt.MinuteOfDay)
		logging.LogOperation(s.logger, "waiting for maintenance window",
			slog.Duration("wait", wait),
			slog.Int64("minute_of_day", mt.MinuteOfDay))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.LogError(s.logger, "maintenance cycle failed", err)
		}
	}
}

// RunOnce performs one maintenance cycle immediately.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	logging.LogOperation(s.logger, "starting maintenance")

	if err := s.manager.SyncAndIndex(ctx); err != nil {
		return err
	}
	if err := s.realtime.CleanupAlerts(ctx); err != nil {
		return err
	}

	s.metrics.MaintenanceRunsTotal.Inc()
	logging.LogOperation(s.logger, "maintenance done")
	return nil
}

// waitUntilMinute returns the time until the next occurrence of the given
// UTC minute of day, wrapping past midnight.
func (s *Scheduler) waitUntilMinute(minuteOfDay int64) time.Duration {
	currentMinute := (s.clock.Now().Unix() % 86400) / 60
	var waitMinutes int64
	if currentMinute < minuteOfDay {
		waitMinutes = minuteOfDay - currentMinute
	} else {
		waitMinutes = minutesPerDay - currentMinute + minuteOfDay
	}
	return time.Duration(waitMinutes) * time.Minute
}
