package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ErrBadGeometry marks a shape that could not be repaired. Callers
// escalate this; most invalid shapes are quietly rebuilt first.
var ErrBadGeometry = eris.New("geometry: unrepairable shape")

// repair validates a wrapped geometry and rebuilds broken polygons as
// the convex hull of their vertices. Points and boxes pass through
// untouched.
func repair(s *Shape) (*Shape, error) {
	switch g := s.g.(type) {
	case *geom.Point:
		if badCoord(g.X(), g.Y()) {
			return nil, eris.Wrapf(ErrBadGeometry, "point %g,%g", g.Y(), g.X())
		}
		return s, nil
	case *geom.Polygon, *geom.MultiPolygon, *geom.LineString:
		flat := flatXY(s.g)
		if len(flat) < 6 {
			return nil, eris.Wrap(ErrBadGeometry, "too few coordinates")
		}
		for i := 0; i+1 < len(flat); i += 2 {
			if badCoord(flat[i], flat[i+1]) {
				return nil, eris.Wrapf(ErrBadGeometry, "coordinate %g,%g", flat[i+1], flat[i])
			}
		}
		if poly, ok := s.g.(*geom.Polygon); ok && !ringValid(poly) {
			return hullRepair(s)
		}
		return s, nil
	default:
		return nil, eris.Wrapf(ErrBadGeometry, "unsupported type %T", s.g)
	}
}

// hullRepair replaces a broken polygon with the hull of its vertices,
// padding degenerate output until it has area.
func hullRepair(s *Shape) (*Shape, error) {
	flat := flatXY(s.g)
	coords := make([][2]float64, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		coords = append(coords, [2]float64{flat[i], flat[i+1]})
	}
	hull := convexHull(coords)
	if len(hull) < 3 {
		// Collapsed to a segment or point. Pad slightly so the
		// result still has area.
		b := s.g.Bounds()
		box, err := NewBox(b.Min(1), b.Min(0), b.Max(1), b.Max(0))
		if err != nil {
			return nil, eris.Wrap(ErrBadGeometry, "hull collapsed")
		}
		repaired := box.BufferKm(0.1)
		zap.L().Debug("repaired degenerate shape by padding envelope")
		return repaired, nil
	}
	ring := make([][]float64, 0, len(hull))
	for _, c := range hull {
		ring = append(ring, []float64{c[0], c[1]})
	}
	repaired, err := NewPolygon(ring)
	if err != nil {
		return nil, eris.Wrap(ErrBadGeometry, "rebuild from hull")
	}
	zap.L().Debug("repaired self-intersecting polygon with convex hull",
		zap.Int("vertices", len(hull)))
	return repaired, nil
}

// ringValid checks the outer ring for nonzero area and no
// self-intersection among non-adjacent segments.
func ringValid(poly *geom.Polygon) bool {
	flat := poly.FlatCoords()[:poly.Ends()[0]]
	if math.Abs(ringArea(flat)) == 0 {
		return false
	}
	n := len(flat)/2 - 1
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if segmentsCross(
				flat[2*i], flat[2*i+1], flat[2*i+2], flat[2*i+3],
				flat[2*j], flat[2*j+1], flat[2*j+2], flat[2*j+3]) {
				return false
			}
		}
	}
	return true
}

func segmentsCross(ax, ay, bx, by, cx, cy, dx, dy float64) bool {
	d1 := orient(cx, cy, dx, dy, ax, ay)
	d2 := orient(cx, cy, dx, dy, bx, by)
	d3 := orient(ax, ay, bx, by, cx, cy)
	d4 := orient(ax, ay, bx, by, dx, dy)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func orient(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func badCoord(lng, lat float64) bool {
	return math.IsNaN(lat) || math.IsNaN(lng) ||
		math.IsInf(lat, 0) || math.IsInf(lng, 0) ||
		lat < -90 || lat > 90 || lng < -360 || lng > 360
}
