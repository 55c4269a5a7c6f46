package matcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
	"github.com/collections-lab/georef-cli/internal/geometry"
	"github.com/collections-lab/georef-cli/internal/grammar"
)

// matchBetween georeferences a reference lying between two named
// features. Each pairing of candidate termini yields a site covering
// the hull of the pair, shrunk toward the midpoint since the locality
// excludes the termini themselves.
func (r *run) matchBetween(ctx context.Context, node *grammar.Between) ([]*gazetteer.Site, error) {
	feats := node.FeatureNames()
	if len(feats) != 2 {
		zap.L().Debug("matcher: between needs exactly two features",
			zap.String("verbatim", node.Verbatim()))
		return nil, nil
	}
	first, err := r.georeferenceFeature(ctx, feats[0])
	if err != nil {
		return nil, err
	}
	second, err := r.georeferenceFeature(ctx, feats[1])
	if err != nil {
		return nil, err
	}

	var sites []*gazetteer.Site
	for _, pair := range preferredPairs(first, second) {
		a, b := pair[0], pair[1]
		if a.Geometry == nil || b.Geometry == nil {
			continue
		}
		hull, err := geometry.Combine(a.Geometry, b.Geometry)
		if err != nil {
			zap.L().Warn("matcher: between hull failed",
				zap.String("a", a.LocationID), zap.String("b", b.LocationID),
				zap.Error(err))
			continue
		}
		sites = append(sites, &gazetteer.Site{
			LocationID:   a.LocationID + "_" + b.LocationID + "_BETWEEN",
			Name:         node.Name(),
			SiteKind:     "between",
			CountryCode:  sharedAttr(a.CountryCode, b.CountryCode),
			Admin1:       sharedAttr(a.Admin1, b.Admin1),
			Geometry:     hull.Resize(0.5),
			RelatedSites: []*gazetteer.Site{a, b},
			Sources:      mergeSources(a, b),
			Filter:       mergeFilters(a.Filter, b.Filter),
		})
	}
	return sites, nil
}

// preferredPairs enumerates terminus pairings, keeping only pairs of
// the same feature kind when any exist, then pairs of the same
// feature class. Mixed pairings survive only when nothing matches.
func preferredPairs(first, second []*gazetteer.Site) [][2]*gazetteer.Site {
	var all, sameClass, sameKind [][2]*gazetteer.Site
	for _, a := range first {
		for _, b := range second {
			if a.LocationID == b.LocationID {
				continue
			}
			pair := [2]*gazetteer.Site{a, b}
			all = append(all, pair)
			if a.SiteClass != "" && a.SiteClass == b.SiteClass {
				sameClass = append(sameClass, pair)
			}
			if a.SiteKind != "" && a.SiteKind == b.SiteKind {
				sameKind = append(sameKind, pair)
			}
		}
	}
	if len(sameKind) > 0 {
		return sameKind
	}
	if len(sameClass) > 0 {
		return sameClass
	}
	return all
}

func sharedAttr(a, b string) string {
	if a == b {
		return a
	}
	return ""
}

func mergeSources(sites ...*gazetteer.Site) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, site := range sites {
		for _, src := range site.Sources {
			if _, ok := seen[src]; ok {
				continue
			}
			seen[src] = struct{}{}
			out = append(out, src)
		}
	}
	return out
}

// mergeFilters keeps the weaker score per attribute so a composite
// site never claims a better admin match than its parts.
func mergeFilters(filters ...map[string]int) map[string]int {
	out := map[string]int{}
	for _, filter := range filters {
		for attr, score := range filter {
			if have, ok := out[attr]; !ok || score < have {
				out[attr] = score
			}
		}
	}
	return out
}
