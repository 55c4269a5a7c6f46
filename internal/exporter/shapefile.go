// Package exporter writes diagnostic shapefiles for resolved records,
// one row per candidate site plus the resolution envelope, so a
// reviewer can eyeball a resolution in a GIS.
package exporter

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
	"github.com/collections-lab/georef-cli/internal/geometry"
	"github.com/collections-lab/georef-cli/internal/resolver"
)

// Feature is one row of a diagnostic export.
type Feature struct {
	ID       string
	Name     string
	Field    string
	Status   string
	RadiusKm float64
	Shape    *geometry.Shape
}

// resolutionID labels the envelope row in exports.
const resolutionID = "RESOLUTION"

// FromResolution flattens a resolution and its candidates into export
// features. The envelope row comes first; candidates without geometry
// are skipped.
func FromResolution(res *resolver.Result, sites []*gazetteer.Site) []Feature {
	feats := []Feature{{
		ID:       resolutionID,
		Name:     "Resolved locality",
		Status:   string(resolver.StatusSelected),
		RadiusKm: res.RadiusKm,
		Shape:    res.Geometry,
	}}
	for _, s := range sites {
		if s.Geometry == nil {
			continue
		}
		feats = append(feats, Feature{
			ID:       s.LocationID,
			Name:     s.Name,
			Field:    s.Field,
			Status:   string(res.Interpretations[s.LocationID]),
			RadiusKm: s.RadiusKm(),
			Shape:    s.Geometry,
		})
	}
	return feats
}

// WriteShapefile writes features to a polygon shapefile with a dBASE
// attribute table. Non-polygon geometries are written as their
// envelopes, which is what the uncertainty semantics call for anyway.
func WriteShapefile(path string, feats []Feature) error {
	if len(feats) == 0 {
		return eris.New("exporter: nothing to write")
	}
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "exporter: create shapefile %s", path)
	}
	defer w.Close()

	w.SetFields([]shp.Field{
		shp.StringField("ID", 32),
		shp.StringField("NAME", 64),
		shp.StringField("FIELD", 32),
		shp.StringField("STATUS", 48),
		shp.FloatField("RADIUS_KM", 12, 3),
	})

	var skipped int
	row := 0
	for _, f := range feats {
		poly := shpPolygon(f.Shape)
		if poly == nil {
			skipped++
			continue
		}
		w.Write(poly)
		attrs := []any{
			truncate(f.ID, 32),
			truncate(f.Name, 64),
			truncate(f.Field, 32),
			truncate(f.Status, 48),
			f.RadiusKm,
		}
		for i, v := range attrs {
			if err := w.WriteAttribute(row, i, v); err != nil {
				return eris.Wrapf(err, "exporter: write attribute row %d", row)
			}
		}
		row++
	}
	if skipped > 0 {
		zap.L().Debug("exporter: skipped features without usable geometry",
			zap.Int("skipped", skipped))
	}
	if row == 0 {
		return eris.New("exporter: no feature had a usable geometry")
	}
	return nil
}

// shpPolygon converts a shape to a single-ring shapefile polygon.
// Shapefile rings run clockwise.
func shpPolygon(s *geometry.Shape) *shp.Polygon {
	if s == nil {
		return nil
	}
	if poly, ok := s.Geom().(*geom.Polygon); ok && poly.NumLinearRings() > 0 {
		return ringPolygon(poly)
	}
	minLat, minLng, maxLat, maxLng := s.LatLngBounds()
	if minLat == maxLat && minLng == maxLng {
		// Zero-extent envelopes do not render; pad them slightly.
		const pad = 0.001
		minLat, minLng, maxLat, maxLng = minLat-pad, minLng-pad, maxLat+pad, maxLng+pad
	}
	points := []shp.Point{
		{X: minLng, Y: minLat},
		{X: minLng, Y: maxLat},
		{X: maxLng, Y: maxLat},
		{X: maxLng, Y: minLat},
		{X: minLng, Y: minLat},
	}
	return &shp.Polygon{
		Box:       shp.Box{MinX: minLng, MinY: minLat, MaxX: maxLng, MaxY: maxLat},
		NumParts:  1,
		NumPoints: int32(len(points)),
		Parts:     []int32{0},
		Points:    points,
	}
}

// ringPolygon writes the polygon's outer ring, reversed into the
// clockwise winding the shapefile format requires.
func ringPolygon(poly *geom.Polygon) *shp.Polygon {
	flat := poly.FlatCoords()[:poly.Ends()[0]]
	n := len(flat) / 2
	if n < 3 {
		return nil
	}
	points := make([]shp.Point, 0, n+1)
	for i := n - 1; i >= 0; i-- {
		points = append(points, shp.Point{X: flat[2*i], Y: flat[2*i+1]})
	}
	if points[0] != points[len(points)-1] {
		points = append(points, points[0])
	}
	box := shp.Box{MinX: points[0].X, MinY: points[0].Y, MaxX: points[0].X, MaxY: points[0].Y}
	for _, p := range points {
		if p.X < box.MinX {
			box.MinX = p.X
		}
		if p.Y < box.MinY {
			box.MinY = p.Y
		}
		if p.X > box.MaxX {
			box.MaxX = p.X
		}
		if p.Y > box.MaxY {
			box.MaxY = p.Y
		}
	}
	return &shp.Polygon{
		Box:       box,
		NumParts:  1,
		NumPoints: int32(len(points)),
		Parts:     []int32{0},
		Points:    points,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n])
}
