// Package metrics provides Prometheus metrics for the arrivals backend.
package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Ingest and realtime metrics
	GTFSSyncRowsTotal      prometheus.Counter
	RealtimePollsTotal     *prometheus.CounterVec
	RealtimeEntitiesTotal  *prometheus.CounterVec
	IndexRebuildDuration   *prometheus.HistogramVec
	MaintenanceRunsTotal   prometheus.Counter

	// Database pool metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge

	logger           *slog.Logger
	collectorStarted atomic.Bool
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

// New creates and registers all application metrics with a fresh registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for error reporting.
func NewWithLogger(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrivals_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arrivals_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	gtfsSyncRowsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arrivals_gtfs_sync_rows_total",
		Help: "Rows written by static schedule ingests",
	})

	realtimePollsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrivals_realtime_polls_total",
			Help: "Realtime feed polls by result (applied, stale, error)",
		},
		[]string{"result"},
	)

	realtimeEntitiesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arrivals_realtime_entities_total",
			Help: "Realtime entities processed by kind and result",
		},
		[]string{"kind", "result"},
	)

	indexRebuildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arrivals_index_rebuild_duration_seconds",
			Help:    "Duration of derived index rebuilds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"index"},
	)

	maintenanceRunsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arrivals_maintenance_runs_total",
		Help: "Completed maintenance window runs",
	})

	dbConnectionsOpen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arrivals_db_connections_open",
		Help: "Number of open database connections",
	})

	dbConnectionsInUse := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arrivals_db_connections_in_use",
		Help: "Number of database connections currently in use",
	})

	dbConnectionsIdle := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arrivals_db_connections_idle",
		Help: "Number of idle database connections",
	})

	registry.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		gtfsSyncRowsTotal,
		realtimePollsTotal,
		realtimeEntitiesTotal,
		indexRebuildDuration,
		maintenanceRunsTotal,
		dbConnectionsOpen,
		dbConnectionsInUse,
		dbConnectionsIdle,
	)

	return &Metrics{
		Registry:              registry,
		HTTPRequestsTotal:     httpRequestsTotal,
		HTTPRequestDuration:   httpRequestDuration,
		GTFSSyncRowsTotal:     gtfsSyncRowsTotal,
		RealtimePollsTotal:    realtimePollsTotal,
		RealtimeEntitiesTotal: realtimeEntitiesTotal,
		IndexRebuildDuration:  indexRebuildDuration,
		MaintenanceRunsTotal:  maintenanceRunsTotal,
		DBConnectionsOpen:     dbConnectionsOpen,
		DBConnectionsInUse:    dbConnectionsInUse,
		DBConnectionsIdle:     dbConnectionsIdle,
		logger:                logger,
	}
}

// StartDBStatsCollector starts a goroutine that periodically copies database
// connection pool statistics into the gauges. Idempotent; call Shutdown to
// stop the collector.
func (m *Metrics) StartDBStatsCollector(db *sql.DB, interval time.Duration) {
	if db == nil {
		return
	}
	if !m.collectorStarted.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := db.Stats()
				m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
				m.DBConnectionsInUse.Set(float64(stats.InUse))
				m.DBConnectionsIdle.Set(float64(stats.Idle))
			}
		}
	}()
}

// Shutdown stops the DB stats collector goroutine and waits for it to exit.
func (m *Metrics) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
