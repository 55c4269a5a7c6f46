package matcher

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
	"github.com/collections-lab/georef-cli/internal/grammar"
	"github.com/collections-lab/georef-cli/internal/plss"
)

// plssSources credits the geometry provider for PLSS matches.
var plssSources = []string{"BLM GIS webservices"}

// matchPLSS georeferences a township/range/section reference through
// the cadastral webservice, one query per declared state. Webservice
// failures degrade to no candidates; a missing reference is not worth
// failing the whole record over.
func (r *run) matchPLSS(ctx context.Context, node *grammar.PLSS) []*gazetteer.Site {
	if r.p.plss == nil || len(r.rec.Admin1) == 0 {
		return nil
	}
	var sites []*gazetteer.Site
	for _, state := range r.rec.Admin1 {
		boxes, err := r.p.plss.GetSections(ctx, state, node.Township, node.Range, node.Section)
		if err != nil {
			zap.L().Warn("matcher: PLSS lookup failed",
				zap.String("state", state),
				zap.String("verbatim", node.Verbatim()),
				zap.Error(err))
			continue
		}
		for _, box := range boxes {
			sites = append(sites, r.plssSite(state, node, box))
		}
	}
	return sites
}

// plssSite subdivides a section box through the quarter chain. The
// quarters read right to left in increasing specificity, so each step
// keeps the coarser box as a related site, most specific last.
func (r *run) plssSite(state string, node *grammar.PLSS, box plss.Box) *gazetteer.Site {
	baseID := plssLocationID(state, node)
	var related []*gazetteer.Site
	var divs []string
	for i := len(node.Quarters) - 1; i >= 0; i-- {
		related = append(related, &gazetteer.Site{
			LocationID: baseID + divSuffix(divs),
			Name:       plssName(divs, node),
			SiteKind:   "plss",
			Geometry:   box.Shape,
			Sources:    plssSources,
		})
		box = box.Subsection(node.Quarters[i])
		divs = append([]string{node.Quarters[i]}, divs...)
	}
	return &gazetteer.Site{
		LocationID:   baseID + divSuffix(divs),
		Name:         node.Name(),
		SiteKind:     "plss",
		CountryCode:  r.rec.CountryCode,
		Admin1:       state,
		Geometry:     box.Shape,
		RelatedSites: related,
		Sources:      plssSources,
		Filter: map[string]int{
			"name":         1,
			"country_code": 1,
			"admin_code_1": 1,
		},
	}
}

func plssLocationID(state string, node *grammar.PLSS) string {
	parts := []string{"PLSS", state, node.Township, node.Range, node.Section}
	id := strings.Join(parts, "_")
	id = strings.ReplaceAll(id, ". ", "")
	id = strings.ReplaceAll(id, ".", "")
	return strings.ReplaceAll(strings.ToUpper(id), " ", "")
}

func divSuffix(divs []string) string {
	if len(divs) == 0 {
		return ""
	}
	return "_" + strings.Join(divs, "")
}

func plssName(divs []string, node *grammar.PLSS) string {
	parts := append(append([]string{}, divs...), node.Section, node.Township, node.Range)
	return `"` + strings.Join(parts, " ") + `"`
}
