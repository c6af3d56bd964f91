// Package geo provides the great-circle helpers used by the stop spatial
// index.
package geo

import "math"

// Mean earth radius in metres.
const earthRadiusMetres = 6371008.8

// Point is a WGS-84 coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

// Bounds is a latitude/longitude rectangle.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains reports whether p lies within b.
func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// HaversineDestination returns the point reached by travelling
// distanceMetres from p along the given compass bearing (degrees clockwise
// from north) on a great circle.
func HaversineDestination(p Point, bearingDegrees, distanceMetres float64) Point {
	bearing := bearingDegrees * math.Pi / 180
	lat1 := p.Lat * math.Pi / 180
	lon1 := p.Lon * math.Pi / 180
	angular := distanceMetres / earthRadiusMetres

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angular) +
		math.Cos(lat1)*math.Sin(angular)*math.Cos(bearing))
	lon2 := lon1 + math.Atan2(
		math.Sin(bearing)*math.Sin(angular)*math.Cos(lat1),
		math.Cos(angular)-math.Sin(lat1)*math.Sin(lat2))

	return Point{
		Lat: lat2 * 180 / math.Pi,
		Lon: lon2 * 180 / math.Pi,
	}
}

// BoundingBoxAround returns a square box that contains every point within
// minRadiusMetres of center by great-circle distance. Each side touches the
// destination at the corresponding cardinal bearing; a diagonal corner
// construction undershoots the radius at the cardinal points on a sphere.
func BoundingBoxAround(center Point, minRadiusMetres float64) Bounds {
	north := HaversineDestination(center, 0, minRadiusMetres)
	east := HaversineDestination(center, 90, minRadiusMetres)
	south := HaversineDestination(center, 180, minRadiusMetres)
	west := HaversineDestination(center, 270, minRadiusMetres)

	return Bounds{
		MinLat: south.Lat,
		MaxLat: north.Lat,
		MinLon: west.Lon,
		MaxLon: east.Lon,
	}
}
