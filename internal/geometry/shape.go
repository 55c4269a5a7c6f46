package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
	"github.com/twpayne/go-geom/xy"
)

// kmPerDegLat is the north-south span of one degree of latitude.
const kmPerDegLat = 111.19

// Shape wraps a go-geom geometry with the lat/lng predicates the
// resolution pipeline needs. Predicates finer than a point test work
// on the geometry's envelope; polygons refine point containment
// against the outer ring.
type Shape struct {
	g geom.T
}

// NewPoint returns a point shape.
func NewPoint(lat, lng float64) *Shape {
	return &Shape{g: geom.NewPointFlat(geom.XY, []float64{lng, lat})}
}

// NewBox returns a rectangular polygon spanning the given lat/lng
// bounds.
func NewBox(minLat, minLng, maxLat, maxLng float64) (*Shape, error) {
	if minLat > maxLat || minLng > maxLng {
		return nil, eris.Errorf("geometry: inverted box: %g,%g to %g,%g",
			minLat, minLng, maxLat, maxLng)
	}
	return NewPolygon([][]float64{
		{minLng, minLat},
		{maxLng, minLat},
		{maxLng, maxLat},
		{minLng, maxLat},
		{minLng, minLat},
	})
}

// NewPolygon builds a polygon shape from a single lng/lat ring. The
// ring is closed if the caller did not close it.
func NewPolygon(ring [][]float64) (*Shape, error) {
	if len(ring) < 3 {
		return nil, eris.Errorf("geometry: ring needs at least 3 coords, got %d", len(ring))
	}
	if ring[0][0] != ring[len(ring)-1][0] || ring[0][1] != ring[len(ring)-1][1] {
		ring = append(ring, ring[0])
	}
	flat := make([]float64, 0, len(ring)*2)
	for _, c := range ring {
		flat = append(flat, c[0], c[1])
	}
	poly := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
	return &Shape{g: poly}, nil
}

// NewPointRadius returns a box covering a circle of radiusKm around
// the point.
func NewPointRadius(lat, lng, radiusKm float64) (*Shape, error) {
	if radiusKm <= 0 {
		return nil, eris.Errorf("geometry: nonpositive radius: %g km", radiusKm)
	}
	return NewPoint(lat, lng).BufferKm(radiusKm), nil
}

// FromGeom wraps an existing geometry, repairing it if invalid.
func FromGeom(g geom.T) (*Shape, error) {
	s := &Shape{g: g}
	return repair(s)
}

// FromGeoJSON decodes a GeoJSON geometry object, repairing it if
// invalid.
func FromGeoJSON(data []byte) (*Shape, error) {
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return nil, eris.Wrap(err, "geometry: decode geojson")
	}
	return FromGeom(g)
}

// Geom exposes the underlying geometry.
func (s *Shape) Geom() geom.T { return s.g }

// IsPoint reports whether the shape is a bare point.
func (s *Shape) IsPoint() bool {
	_, ok := s.g.(*geom.Point)
	return ok
}

// Bounds returns the geometry's envelope.
func (s *Shape) Bounds() *geom.Bounds { return s.g.Bounds() }

// LatLngBounds returns the envelope as minLat, minLng, maxLat, maxLng.
func (s *Shape) LatLngBounds() (float64, float64, float64, float64) {
	b := s.g.Bounds()
	return b.Min(1), b.Min(0), b.Max(1), b.Max(0)
}

// Centroid returns the shape's centroid as lat, lng. Polygons use the
// area centroid of the outer ring, lines the mean of their vertices.
func (s *Shape) Centroid() (float64, float64) {
	switch g := s.g.(type) {
	case *geom.Point:
		return g.Y(), g.X()
	case *geom.Polygon:
		lng, lat := ringCentroid(g.FlatCoords()[:g.Ends()[0]])
		return lat, lng
	case *geom.MultiPolygon:
		// Area-weighted mean of the member centroids.
		var sumLat, sumLng, sumArea float64
		for i := 0; i < g.NumPolygons(); i++ {
			p := g.Polygon(i)
			lng, lat := ringCentroid(p.FlatCoords()[:p.Ends()[0]])
			a := math.Abs(ringArea(p.FlatCoords()[:p.Ends()[0]]))
			if a == 0 {
				a = 1e-12
			}
			sumLat += lat * a
			sumLng += lng * a
			sumArea += a
		}
		if sumArea == 0 {
			b := g.Bounds()
			return (b.Min(1) + b.Max(1)) / 2, (b.Min(0) + b.Max(0)) / 2
		}
		return sumLat / sumArea, sumLng / sumArea
	default:
		flat := flatXY(s.g)
		var sumLat, sumLng float64
		n := len(flat) / 2
		for i := 0; i < len(flat); i += 2 {
			sumLng += flat[i]
			sumLat += flat[i+1]
		}
		if n == 0 {
			return 0, 0
		}
		return sumLat / float64(n), sumLng / float64(n)
	}
}

// RadiusKm returns the distance from the centroid to the farthest
// envelope corner, zero for points.
func (s *Shape) RadiusKm() float64 {
	if s.IsPoint() {
		return 0
	}
	lat, lng := s.Centroid()
	minLat, minLng, maxLat, maxLng := s.LatLngBounds()
	r := 0.0
	for _, c := range [][2]float64{
		{minLat, minLng}, {minLat, maxLng}, {maxLat, minLng}, {maxLat, maxLng},
	} {
		if d := HaversineKm(lat, lng, c[0], c[1]); d > r {
			r = d
		}
	}
	return r
}

// Intersects reports whether the two envelopes overlap.
func (s *Shape) Intersects(o *Shape) bool {
	return s.g.Bounds().Overlaps(geom.XY, o.g.Bounds())
}

// Contains reports whether this shape's envelope fully contains the
// other's.
func (s *Shape) Contains(o *Shape) bool {
	minLat, minLng, maxLat, maxLng := s.LatLngBounds()
	oMinLat, oMinLng, oMaxLat, oMaxLng := o.LatLngBounds()
	return oMinLat >= minLat && oMaxLat <= maxLat &&
		oMinLng >= minLng && oMaxLng <= maxLng
}

// ContainsPoint tests a lat/lng point against the shape, using the
// polygon's outer ring when one is available.
func (s *Shape) ContainsPoint(lat, lng float64) bool {
	p := geom.Coord{lng, lat}
	switch g := s.g.(type) {
	case *geom.Polygon:
		return xy.IsPointInRing(geom.XY, p, g.FlatCoords()[:g.Ends()[0]])
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			poly := g.Polygon(i)
			if xy.IsPointInRing(geom.XY, p, poly.FlatCoords()[:poly.Ends()[0]]) {
				return true
			}
		}
		return false
	default:
		minLat, minLng, maxLat, maxLng := s.LatLngBounds()
		return lat >= minLat && lat <= maxLat && lng >= minLng && lng <= maxLng
	}
}

// ContainsCentroid reports whether the other shape's centroid falls
// inside this shape.
func (s *Shape) ContainsCentroid(o *Shape) bool {
	lat, lng := o.Centroid()
	return s.ContainsPoint(lat, lng)
}

// CentroidDistKm returns the great-circle distance between the two
// centroids.
func (s *Shape) CentroidDistKm(o *Shape) float64 {
	lat1, lng1 := s.Centroid()
	lat2, lng2 := o.Centroid()
	return HaversineKm(lat1, lng1, lat2, lng2)
}

// MinDistKm returns the distance between the nearest points of the
// two envelopes, zero when they overlap.
func (s *Shape) MinDistKm(o *Shape) float64 {
	minLat, minLng, maxLat, maxLng := s.LatLngBounds()
	oMinLat, oMinLng, oMaxLat, oMaxLng := o.LatLngBounds()
	lat1 := clamp((oMinLat+oMaxLat)/2, minLat, maxLat)
	lng1 := clamp((oMinLng+oMaxLng)/2, minLng, maxLng)
	lat2 := clamp(lat1, oMinLat, oMaxLat)
	lng2 := clamp(lng1, oMinLng, oMaxLng)
	return HaversineKm(lat1, lng1, lat2, lng2)
}

// Resize scales the envelope about the centroid by the given factor
// and returns the resulting box.
func (s *Shape) Resize(factor float64) *Shape {
	lat, lng := s.Centroid()
	minLat, minLng, maxLat, maxLng := s.LatLngBounds()
	box, err := NewBox(
		lat-(lat-minLat)*factor,
		lng-(lng-minLng)*factor,
		lat+(maxLat-lat)*factor,
		lng+(maxLng-lng)*factor,
	)
	if err != nil {
		return s
	}
	return box
}

// BufferKm expands the envelope by km kilometers on every side and
// returns the resulting box.
func (s *Shape) BufferKm(km float64) *Shape {
	minLat, minLng, maxLat, maxLng := s.LatLngBounds()
	dLat := km / kmPerDegLat
	midLat := (minLat + maxLat) / 2
	cosLat := math.Cos(midLat * math.Pi / 180)
	if math.Abs(cosLat) < 0.01 {
		cosLat = 0.01
	}
	dLng := km / (kmPerDegLat * cosLat)
	box, err := NewBox(
		math.Max(minLat-dLat, -90),
		minLng-dLng,
		math.Min(maxLat+dLat, 90),
		maxLng+dLng,
	)
	if err != nil {
		return s
	}
	return box
}

// Intersection clips the two envelopes against each other.
func (s *Shape) Intersection(o *Shape) (*Shape, error) {
	if !s.Intersects(o) {
		return nil, eris.New("geometry: shapes do not intersect")
	}
	minLat, minLng, maxLat, maxLng := s.LatLngBounds()
	oMinLat, oMinLng, oMaxLat, oMaxLng := o.LatLngBounds()
	return NewBox(
		math.Max(minLat, oMinLat),
		math.Max(minLng, oMinLng),
		math.Min(maxLat, oMaxLat),
		math.Min(maxLng, oMaxLng),
	)
}

// WKT renders the geometry as well-known text.
func (s *Shape) WKT() (string, error) {
	out, err := wkt.Marshal(s.g)
	if err != nil {
		return "", eris.Wrap(err, "geometry: encode wkt")
	}
	return out, nil
}

// GeoJSON renders the geometry as a GeoJSON geometry object.
func (s *Shape) GeoJSON() ([]byte, error) {
	out, err := geojson.Marshal(s.g)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode geojson")
	}
	return out, nil
}

// Combine merges shapes into the convex hull of their vertices. Hull
// combination over-covers concave unions, which is acceptable for
// uncertainty envelopes that must never under-cover.
func Combine(shapes ...*Shape) (*Shape, error) {
	if len(shapes) == 0 {
		return nil, eris.New("geometry: nothing to combine")
	}
	if len(shapes) == 1 {
		return shapes[0], nil
	}
	var coords [][2]float64
	for _, s := range shapes {
		flat := flatXY(s.g)
		if len(flat) == 2 {
			coords = append(coords, [2]float64{flat[0], flat[1]})
			continue
		}
		// Envelope corners are enough for hulling.
		minLat, minLng, maxLat, maxLng := s.LatLngBounds()
		coords = append(coords,
			[2]float64{minLng, minLat}, [2]float64{maxLng, minLat},
			[2]float64{maxLng, maxLat}, [2]float64{minLng, maxLat})
	}
	hull := convexHull(coords)
	if len(hull) < 3 {
		// Degenerate input collapses to a point or segment.
		b := shapes[0].Bounds()
		for _, s := range shapes[1:] {
			b.Extend(s.g)
		}
		return NewBox(b.Min(1), b.Min(0), b.Max(1), b.Max(0))
	}
	ring := make([][]float64, 0, len(hull))
	for _, c := range hull {
		ring = append(ring, []float64{c[0], c[1]})
	}
	return NewPolygon(ring)
}

func flatXY(g geom.T) []float64 {
	switch t := g.(type) {
	case *geom.Point:
		return t.FlatCoords()
	case *geom.LineString:
		return t.FlatCoords()
	case *geom.Polygon:
		return t.FlatCoords()
	case *geom.MultiPolygon:
		return t.FlatCoords()
	case *geom.MultiPoint:
		return t.FlatCoords()
	case *geom.MultiLineString:
		return t.FlatCoords()
	default:
		return nil
	}
}

// ringCentroid returns the area centroid of a flat XY ring as lng, lat.
func ringCentroid(flat []float64) (float64, float64) {
	area := ringArea(flat)
	if area == 0 {
		var sumX, sumY float64
		n := len(flat) / 2
		for i := 0; i < len(flat); i += 2 {
			sumX += flat[i]
			sumY += flat[i+1]
		}
		if n == 0 {
			return 0, 0
		}
		return sumX / float64(n), sumY / float64(n)
	}
	var cx, cy float64
	for i := 0; i+3 < len(flat); i += 2 {
		x0, y0 := flat[i], flat[i+1]
		x1, y1 := flat[i+2], flat[i+3]
		cross := x0*y1 - x1*y0
		cx += (x0 + x1) * cross
		cy += (y0 + y1) * cross
	}
	return cx / (6 * area), cy / (6 * area)
}

// ringArea returns the signed shoelace area of a flat XY ring.
func ringArea(flat []float64) float64 {
	var area float64
	for i := 0; i+3 < len(flat); i += 2 {
		area += flat[i]*flat[i+3] - flat[i+2]*flat[i+1]
	}
	return area / 2
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
