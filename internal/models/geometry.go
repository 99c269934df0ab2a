package models

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// MarshalGeometry encodes an orb geometry as GeoJSON bytes. PostGIS reads
// come back through ST_AsGeoJSON and writes go out through
// ST_GeomFromGeoJSON, so both directions speak GeoJSON.
func MarshalGeometry(g orb.Geometry) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	return geojson.NewGeometry(g).MarshalJSON()
}

// UnmarshalGeometry decodes GeoJSON bytes into an orb geometry.
func UnmarshalGeometry(data []byte) (orb.Geometry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	geom, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, err
	}
	return geom.Geometry(), nil
}

// DistanceToSegment returns the planar distance from p to the segment ab.
func DistanceToSegment(a, b, p orb.Point) float64 {
	cp := ClosestPointOnSegment(a, b, p)
	return planar.Distance(cp, p)
}

// ClosestPointOnSegment projects p onto the segment ab, clamped to the
// segment's endpoints.
func ClosestPointOnSegment(a, b, p orb.Point) orb.Point {
	dx := b[0] - a[0]
	dy := b[1] - a[1]

	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a
	}

	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

// DistanceToGeometry returns the planar distance from a point to any
// supported geometry. Points and polylines measure to the nearest vertex or
// segment; polygons measure zero when the point is inside.
func DistanceToGeometry(g orb.Geometry, p orb.Point) float64 {
	switch geom := g.(type) {
	case orb.Point:
		return planar.Distance(geom, p)
	case orb.LineString:
		return distanceToLineString(geom, p)
	case orb.MultiLineString:
		min := math.Inf(1)
		for _, ls := range geom {
			if d := distanceToLineString(ls, p); d < min {
				min = d
			}
		}
		return min
	case orb.Polygon:
		if planar.PolygonContains(geom, p) {
			return 0
		}
		min := math.Inf(1)
		for _, ring := range geom {
			if d := distanceToLineString(orb.LineString(ring), p); d < min {
				min = d
			}
		}
		return min
	case orb.MultiPolygon:
		min := math.Inf(1)
		for _, poly := range geom {
			if d := DistanceToGeometry(poly, p); d < min {
				min = d
			}
		}
		return min
	default:
		return math.Inf(1)
	}
}

func distanceToLineString(ls orb.LineString, p orb.Point) float64 {
	if len(ls) == 0 {
		return math.Inf(1)
	}
	if len(ls) == 1 {
		return planar.Distance(ls[0], p)
	}
	min := math.Inf(1)
	for i := 0; i < len(ls)-1; i++ {
		if d := DistanceToSegment(ls[i], ls[i+1], p); d < min {
			min = d
		}
	}
	return min
}

// GeometryContains reports whether a polygonal geometry contains the point.
func GeometryContains(g orb.Geometry, p orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, p)
	default:
		return false
	}
}

// GeometryArea returns the planar area of a polygonal geometry, zero for
// anything else. Used for smallest-area tie-breaks on overlapping boundaries.
func GeometryArea(g orb.Geometry) float64 {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.Area(geom)
	case orb.MultiPolygon:
		return planar.Area(geom)
	default:
		return 0
	}
}
