package matcher

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
	"github.com/collections-lab/georef-cli/internal/grammar"
)

// matchSite searches the gazetteer for a named reference under the
// record's admin constraints, relaxing the constraints one admin
// level at a time until something uncontradicted turns up. The
// fallback from the tightest rung that matched anything is returned
// when no rung produces a clean match.
func (r *run) matchSite(ctx context.Context, node grammar.Node, codes []string, size gazetteer.SizeHint) ([]*gazetteer.Site, error) {
	variants := r.searchVariants(node)
	names := compareNames(node)

	var fallback []*gazetteer.Site
	for depth := len(adminFields); depth > 0; depth-- {
		for _, variant := range variants {
			sites, err := r.search(ctx, variant, codes, size, depth)
			if err != nil {
				return nil, err
			}
			if len(sites) == 0 {
				continue
			}
			var good []*gazetteer.Site
			for _, site := range sites {
				r.annotate(site, names)
				if !site.Contradicted() {
					good = append(good, site)
				}
			}
			if len(good) > 0 {
				return good, nil
			}
			if fallback == nil {
				fallback = sites
			}
		}
	}
	return fallback, nil
}

// searchVariants returns the name forms to try, best first. Admin
// fields match on the canonical name only; everything else walks the
// node's variant ladder.
func (r *run) searchVariants(node grammar.Node) []string {
	if isAdminField(r.field) {
		return []string{node.Name()}
	}
	seen := map[string]struct{}{}
	var out []string
	for _, v := range append([]string{node.Name()}, node.Variants()...) {
		v = strings.TrimSpace(v)
		if v == "" || strings.Contains(v, "{") {
			continue
		}
		key := gazetteer.StandardizeName(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// compareNames returns every rendering a matched site may answer to.
func compareNames(node grammar.Node) []string {
	names := append([]string{node.Name()}, node.Variants()...)
	return append(names, node.FeatureNames()...)
}

// search runs one gazetteer query at the given admin-constraint
// depth, retrying once at very large when a normal-sized search for a
// name comes back empty.
func (r *run) search(ctx context.Context, name string, codes []string, size gazetteer.SizeHint, depth int) ([]*gazetteer.Site, error) {
	params := r.searchParams(name, codes, size, depth)
	sites, err := r.p.gaz.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(sites) == 0 && (size == gazetteer.SizeNormal || size == gazetteer.SizeLarge) {
		params = r.searchParams(name, codes, gazetteer.SizeVeryLarge, depth)
		return r.p.gaz.Search(ctx, params)
	}
	return sites, nil
}

// searchParams builds one query. Large searches drop the state
// constraint and very large searches drop the country as well, since
// features at those scales routinely span the declared units.
func (r *run) searchParams(name string, codes []string, size gazetteer.SizeHint, depth int) gazetteer.SearchParams {
	params := gazetteer.SearchParams{
		Name:  name,
		Codes: withMunicipalities(codes),
		Size:  size,
	}
	if size == gazetteer.SizeVeryLarge {
		return params
	}
	params.CountryCode = r.rec.CountryCode
	if size == gazetteer.SizeLarge {
		return params
	}
	if depth >= 2 && len(r.rec.Admin1) > 0 {
		params.Admin1 = r.rec.Admin1[0]
	}
	if depth >= 3 && len(r.rec.Admin2) > 0 {
		params.Admin2 = r.rec.Admin2[0]
	}
	return params
}

// withMunicipalities widens already-broad code lists with populated
// places, which answer to far more name styles than the class lists
// anticipate. Unrestricted and narrow lists pass through unchanged.
func withMunicipalities(codes []string) []string {
	if len(codes) <= 20 {
		return codes
	}
	have := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		have[code] = struct{}{}
	}
	out := append([]string{}, codes...)
	for _, code := range gazetteer.CodesMunicipalities {
		if _, ok := have[code]; !ok {
			out = append(out, code)
		}
	}
	return out
}

// annotate records how a site squares with the record's names and
// admin codes.
func (r *run) annotate(site *gazetteer.Site, names []string) {
	site.CompareNames(names...)
	site.CompareAttr("country_code", []string{r.rec.CountryCode}, []string{site.CountryCode})
	site.CompareAttr("admin_code_1", r.rec.Admin1, []string{site.Admin1})
	site.CompareAttr("admin_code_2", r.rec.Admin2, []string{site.Admin2})
}

// georeferenceFeature matches a referenced feature name for use as a
// reference point by the composite pipes. Junction references are not
// resolvable to a point and return nothing; border references resolve
// through the border pipe. Stream matches are dropped when anything
// else matched, since rivers are poor reference points.
func (r *run) georeferenceFeature(ctx context.Context, name string) ([]*gazetteer.Site, error) {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "junction of") || strings.HasPrefix(lower, "off of") {
		return nil, nil
	}
	if strings.HasPrefix(lower, "border of") {
		border, err := grammar.ParseBorder(name)
		if err != nil {
			return nil, nil
		}
		return r.matchBorder(ctx, border)
	}

	node := parseReference(name)
	if node == nil {
		zap.L().Debug("matcher: unparseable reference feature", zap.String("name", name))
		return nil, nil
	}
	sites, err := r.matchSite(ctx, node, gazetteer.CodesForFeature(node.FeatureKind()), gazetteer.SizeSmall)
	if err != nil {
		return nil, err
	}
	var nonStreams []*gazetteer.Site
	for _, site := range sites {
		if !strings.HasPrefix(site.SiteKind, "STM") {
			nonStreams = append(nonStreams, site)
		}
	}
	if len(nonStreams) > 0 {
		return nonStreams, nil
	}
	return sites, nil
}

// parseReference parses a feature name mentioned inside a compound
// reference, falling back to a plain name when the feature grammar
// rejects it.
func parseReference(name string) grammar.Node {
	if node, err := grammar.ParseMultiFeature(name, true); err == nil {
		return node
	}
	if node, err := grammar.ParseFeature(name, true); err == nil {
		return node
	}
	if node, err := grammar.ParseSimple(name); err == nil {
		return node
	}
	return nil
}
