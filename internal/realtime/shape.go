package realtime

import (
	"context"
	"fmt"

	"github.com/twpayne/go-polyline"

	"waitemata.arrivals.nz/gtfsdb"
)

// processShape stores a detour shape delivered over the realtime feed. The
// encoded polyline is decoded into ordered points under the realtime shape
// id, replacing any previous version of the shape.
func (s *Service) processShape(ctx context.Context, q *gtfsdb.Queries, entity FeedEntity) error {
	shape := entity.Shape
	if shape.ShapeID == nil || shape.EncodedPolyline == nil {
		return fmt.Errorf("%w: shape without id or polyline", ErrInvalidEntity)
	}

	coords, remaining, err := polyline.DecodeCoords([]byte(*shape.EncodedPolyline))
	if err != nil {
		return fmt.Errorf("decoding shape %s: %w", *shape.ShapeID, err)
	}
	if len(remaining) > 0 {
		return fmt.Errorf("%w: trailing data in polyline for shape %s", ErrInvalidEntity, *shape.ShapeID)
	}
	if len(coords) < 2 {
		return fmt.Errorf("%w: shape %s has fewer than two points", ErrInvalidEntity, *shape.ShapeID)
	}

	points := make([]gtfsdb.RealtimeShapePoint, len(coords))
	for i, c := range coords {
		points[i] = gtfsdb.RealtimeShapePoint{
			ShapeID:    *shape.ShapeID,
			PtSequence: int64(i + 1),
			Lat:        c[0],
			Lon:        c[1],
		}
	}
	return q.ReplaceRealtimeShape(ctx, *shape.ShapeID, points)
}
