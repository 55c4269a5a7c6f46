// Package plss resolves Public Land Survey System references (township,
// range, section, quarter sections) to geographic boxes using the BLM
// cadastral webservices.
package plss

import (
	"strings"

	"github.com/collections-lab/georef-cli/internal/geometry"
)

// Box is a rectangular PLSS division. Quarter-section references
// subdivide it, each step quartering (or halving) the previous box.
type Box struct {
	Shape *geometry.Shape
}

// NewBox wraps a shape's envelope as a PLSS box.
func NewBox(s *geometry.Shape) Box {
	return Box{Shape: s}
}

// Subsection returns the division of the box named by a quarter code:
// a compass quadrant ("NE") or half ("N", "W"). Unrecognized codes
// return the box unchanged.
func (b Box) Subsection(quarter string) Box {
	if b.Shape == nil {
		return b
	}
	minLat, minLng, maxLat, maxLng := b.Shape.LatLngBounds()
	origMinLat, origMinLng, origMaxLat, origMaxLng := minLat, minLng, maxLat, maxLng
	midLat := (minLat + maxLat) / 2
	midLng := (minLng + maxLng) / 2

	q := strings.ToUpper(strings.TrimSpace(quarter))
	switch {
	case strings.HasPrefix(q, "N"):
		minLat = midLat
	case strings.HasPrefix(q, "S"):
		maxLat = midLat
	}
	switch {
	case strings.HasSuffix(q, "E"):
		minLng = midLng
	case strings.HasSuffix(q, "W"):
		maxLng = midLng
	}
	if minLat == origMinLat && minLng == origMinLng &&
		maxLat == origMaxLat && maxLng == origMaxLng {
		return b
	}
	box, err := geometry.NewBox(minLat, minLng, maxLat, maxLng)
	if err != nil {
		return b
	}
	return Box{Shape: box}
}
