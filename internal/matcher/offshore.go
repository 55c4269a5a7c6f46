package matcher

import (
	"context"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
	"github.com/collections-lab/georef-cli/internal/grammar"
)

// matchOffshore georeferences a reference off the shore of a named
// feature. The candidate keeps the anchor's geometry; the evaluator
// extends it into adjacent water once the admin context is settled.
func (r *run) matchOffshore(ctx context.Context, node *grammar.Offshore) ([]*gazetteer.Site, error) {
	refsites, err := r.georeferenceFeature(ctx, node.Feature)
	if err != nil {
		return nil, err
	}
	var sites []*gazetteer.Site
	for _, ref := range refsites {
		if ref.Geometry == nil {
			continue
		}
		site := ref.Clone()
		site.LocationID = ref.LocationID + "_OFF"
		site.Name = node.Name()
		site.SiteKind = "offshore"
		site.RelatedSites = []*gazetteer.Site{ref}
		sites = append(sites, site)
	}
	return sites, nil
}
