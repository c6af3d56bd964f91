package gtfs

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/tidwall/rtree"

	"waitemata.arrivals.nz/gtfsdb"
	"waitemata.arrivals.nz/internal/clock"
	"waitemata.arrivals.nz/internal/logging"
	"waitemata.arrivals.nz/internal/metrics"
)

// Manager owns the static GTFS data: syncing the feed, rebuilding the
// derived indexes, and answering spatial stop queries from an in-memory
// R-tree of stop bounding boxes.
type Manager struct {
	client     *gtfsdb.Client
	gtfsURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	clock      clock.Clock

	mu   sync.RWMutex
	tree *rtree.RTree
}

func NewManager(ctx context.Context, client *gtfsdb.Client, gtfsURL string, logger *slog.Logger, m *metrics.Metrics, clk clock.Clock) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mgr := &Manager{
		client:     client,
		gtfsURL:    gtfsURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logger.With(slog.String("component", "gtfs")),
		metrics:    m,
		clock:      clk,
	}
	if err := mgr.reloadSpatialIndex(ctx); err != nil {
		return nil, err
	}
	return mgr, nil
}

// Queries exposes the pooled query interface for read handlers.
func (m *Manager) Queries() *gtfsdb.Queries {
	return m.client.Queries
}

// SyncAndIndex runs a feed sync and, when it imported anything, rebuilds
// the stop index and the stop-time index.
func (m *Manager) SyncAndIndex(ctx context.Context) error {
	rows, err := m.Sync(ctx)
	if err != nil {
		return err
	}
	if rows == 0 {
		return nil
	}
	if err := m.RebuildStopIndex(ctx); err != nil {
		return err
	}
	return m.RebuildStopTimeIndex(ctx)
}

// reloadSpatialIndex rebuilds the in-memory R-tree from the stop_index
// table. Each entry is the stop's bounding box with the stop_id as data.
func (m *Manager) reloadSpatialIndex(ctx context.Context) error {
	entries, err := m.client.Queries.ListStopIndexEntries(ctx)
	if err != nil {
		return err
	}

	tree := &rtree.RTree{}
	for _, e := range entries {
		tree.Insert(
			[2]float64{e.MinLat, e.MinLon},
			[2]float64{e.MaxLat, e.MaxLon},
			e.StopID,
		)
	}

	m.mu.Lock()
	m.tree = tree
	m.mu.Unlock()

	logging.LogOperation(m.logger, "spatial index loaded", slog.Int("stops", len(entries)))
	return nil
}

// StopsNear returns up to limit stops whose search box contains the point,
// closest first.
func (m *Manager) StopsNear(ctx context.Context, lat, lon float64, limit int) ([]gtfsdb.Stop, error) {
	m.mu.RLock()
	tree := m.tree
	m.mu.RUnlock()
	if tree == nil {
		return nil, nil
	}

	var ids []string
	tree.Search(
		[2]float64{lat, lon},
		[2]float64{lat, lon},
		func(min, max [2]float64, data interface{}) bool {
			if id, ok := data.(string); ok {
				ids = append(ids, id)
			}
			return true
		},
	)
	if len(ids) == 0 {
		return nil, nil
	}

	stops, err := m.client.Queries.GetStopsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	sort.Slice(stops, func(i, j int) bool {
		return squaredDistance(stops[i], lat, lon) < squaredDistance(stops[j], lat, lon)
	})
	if len(stops) > limit {
		stops = stops[:limit]
	}
	return stops, nil
}

func squaredDistance(s gtfsdb.Stop, lat, lon float64) float64 {
	dLat := s.StopLat.Float64 - lat
	dLon := s.StopLon.Float64 - lon
	return dLat*dLat + dLon*dLon
}
