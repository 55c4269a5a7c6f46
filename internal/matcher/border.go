package matcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
	"github.com/collections-lab/georef-cli/internal/grammar"
)

// borderResize nudges near-miss geometries into overlap. Gazetteer
// extents routinely undershoot the true boundary.
const borderResize = 1.05

// matchBorder georeferences a reference on the border between two
// named features as the intersection of their geometries. Candidate
// pairs whose geometries stay disjoint even after a small resize are
// not borders and are skipped.
func (r *run) matchBorder(ctx context.Context, node *grammar.Border) ([]*gazetteer.Site, error) {
	feats := node.FeatureNames()
	if len(feats) != 2 {
		zap.L().Debug("matcher: border needs exactly two features",
			zap.String("verbatim", node.Verbatim()))
		return nil, nil
	}
	// Borders between large units are legitimate; keep the search
	// wide open on size.
	first, err := r.matchBorderFeature(ctx, feats[0])
	if err != nil {
		return nil, err
	}
	second, err := r.matchBorderFeature(ctx, feats[1])
	if err != nil {
		return nil, err
	}

	var sites []*gazetteer.Site
	for _, pair := range preferredPairs(first, second) {
		a, b := pair[0], pair[1]
		if a.Geometry == nil || b.Geometry == nil {
			continue
		}
		ga, gb := a.Geometry, b.Geometry
		if !ga.Intersects(gb) {
			ga = ga.Resize(borderResize)
			gb = gb.Resize(borderResize)
			if !ga.Intersects(gb) {
				continue
			}
		}
		border, err := ga.Intersection(gb)
		if err != nil {
			zap.L().Warn("matcher: border intersection failed",
				zap.String("a", a.LocationID), zap.String("b", b.LocationID),
				zap.Error(err))
			continue
		}
		sites = append(sites, &gazetteer.Site{
			LocationID:   a.LocationID + "_" + b.LocationID + "_BORDER",
			Name:         node.Name(),
			SiteKind:     "border",
			CountryCode:  sharedAttr(a.CountryCode, b.CountryCode),
			Admin1:       sharedAttr(a.Admin1, b.Admin1),
			Geometry:     border,
			RelatedSites: []*gazetteer.Site{a, b},
			Sources:      mergeSources(a, b),
			Filter:       mergeFilters(a.Filter, b.Filter),
		})
	}
	return sites, nil
}

func (r *run) matchBorderFeature(ctx context.Context, name string) ([]*gazetteer.Site, error) {
	node := parseReference(name)
	if node == nil {
		return nil, nil
	}
	return r.matchSite(ctx, node, gazetteer.CodesForFeature(node.FeatureKind()), gazetteer.SizeNormal)
}
