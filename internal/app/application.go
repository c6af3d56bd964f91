// Package app wires the shared application dependencies handed to the HTTP
// layer and the background loops.
package app

import (
	"log/slog"

	"waitemata.arrivals.nz/internal/appconf"
	"waitemata.arrivals.nz/internal/clock"
	"waitemata.arrivals.nz/internal/gtfs"
	"waitemata.arrivals.nz/internal/metrics"
	"waitemata.arrivals.nz/internal/realtime"
)

// Application holds the process-wide dependencies.
type Application struct {
	Config      appconf.Config
	Logger      *slog.Logger
	GtfsManager *gtfs.Manager
	Realtime    *realtime.Service
	Clock       clock.Clock
	Metrics     *metrics.Metrics
}
