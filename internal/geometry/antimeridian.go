package geometry

import "github.com/twpayne/go-geom"

// NormalizeLng folds a longitude into [-180, 180].
func NormalizeLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}

// CrossesAntimeridian reports whether the shape's envelope, read as a
// west-to-east span, wraps past 180 degrees. Spans wider than half
// the globe are assumed to be wrapped rather than genuinely huge.
func (s *Shape) CrossesAntimeridian() bool {
	_, minLng, _, maxLng := s.LatLngBounds()
	return maxLng-minLng > 180 || minLng < -180 || maxLng > 180
}

// SplitAntimeridian cuts a shape whose envelope wraps the
// antimeridian into a multipolygon with one part on each side. Shapes
// that do not wrap come back unchanged.
func (s *Shape) SplitAntimeridian() *Shape {
	if !s.CrossesAntimeridian() {
		return s
	}
	minLat, minLng, maxLat, maxLng := s.LatLngBounds()
	// Envelopes wider than 180 degrees encode a wrapped span with the
	// western edge stored above 180 or below -180.
	west := NormalizeLng(minLng)
	east := NormalizeLng(maxLng)
	if west < east {
		// Normalization resolved the wrap on its own.
		box, err := NewBox(minLat, west, maxLat, east)
		if err != nil {
			return s
		}
		return box
	}

	flat := []float64{
		// Eastern hemisphere part, west edge to the line.
		west, minLat, 180, minLat, 180, maxLat, west, maxLat, west, minLat,
		// Western hemisphere part, the line to the east edge.
		-180, minLat, east, minLat, east, maxLat, -180, maxLat, -180, minLat,
	}
	mp := geom.NewMultiPolygonFlat(geom.XY, flat, [][]int{{10}, {20}})
	return &Shape{g: mp}
}
