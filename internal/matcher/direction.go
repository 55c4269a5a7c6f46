package matcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
	"github.com/collections-lab/georef-cli/internal/geometry"
	"github.com/collections-lab/georef-cli/internal/grammar"
)

// matchDirection georeferences a displacement reference: every match
// for the anchor feature is translated along the stated bearing, with
// the envelope widened for the angular and distance uncertainty. All
// anchors are matched; the evaluator sorts out which survive.
func (r *run) matchDirection(ctx context.Context, node *grammar.Direction) ([]*gazetteer.Site, error) {
	refsites, err := r.georeferenceFeature(ctx, node.Feature)
	if err != nil {
		return nil, err
	}
	lo, hi := node.DistsKm()
	if node.AlongRoute() && node.MinDist == "" && node.MaxDist != "" {
		// A distance along a road or trail is a maximum; the
		// straight-line displacement can be much shorter.
		lo = hi / 2
	}

	var sites []*gazetteer.Site
	for _, ref := range refsites {
		if ref.Geometry == nil {
			continue
		}
		lat, lng := ref.Geometry.Centroid()
		geom, err := geometry.TranslateWithUncertainty(lat, lng, lo, hi, node.Bearing)
		if err != nil {
			zap.L().Warn("matcher: direction translate failed",
				zap.String("verbatim", node.Verbatim()),
				zap.String("anchor", ref.LocationID),
				zap.Error(err))
			continue
		}
		sites = append(sites, &gazetteer.Site{
			LocationID:   ref.LocationID + "_DIR",
			Name:         node.Name(),
			SiteKind:     "direction",
			CountryCode:  ref.CountryCode,
			Admin1:       ref.Admin1,
			Admin2:       ref.Admin2,
			Geometry:     geom,
			RelatedSites: []*gazetteer.Site{ref},
			Sources:      ref.Sources,
			Filter:       cloneFilter(ref.Filter),
		})
	}
	return sites, nil
}

func cloneFilter(filter map[string]int) map[string]int {
	if filter == nil {
		return nil
	}
	out := make(map[string]int, len(filter))
	for k, v := range filter {
		out[k] = v
	}
	return out
}
