package resolver

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
	"github.com/collections-lab/georef-cli/internal/geometry"
)

// maxCombinations bounds the cartesian product explored when several
// names match several sites each.
const maxCombinations = 2000

// selectFrom applies the selection rules in order of preference once
// the pool has been validated and narrowed to its specific names.
func (e *Evaluator) selectFrom(pool, specific []*gazetteer.Site, groups map[string][]*gazetteer.Site, maxDist float64) (*geometry.Shape, error) {
	// One specific candidate settles the record.
	if len(specific) == 1 && specific[0].RadiusKm() < maxDist {
		return e.selectSites(specific, pool)
	}

	// One name, several candidates: pick the subset most likely meant.
	if len(groups) == 1 && len(specific) > 1 {
		return e.encompassName(specific, pool, maxDist)
	}

	// Several names: find the combination of one site per name with
	// the tightest envelope.
	if len(groups) > 1 {
		if geom, ok, err := e.selectCombination(specific, groups, pool, maxDist); ok || err != nil {
			return geom, err
		}
	}

	// Marine records: a single terrestrial candidate extended into
	// the named water body is usually the collecting site.
	if e.marine {
		var terr []*gazetteer.Site
		for _, s := range specific {
			if !marineLike(s) {
				terr = append(terr, s)
			}
		}
		if len(terr) == 1 {
			return e.selectSites(terr, pool)
		}
		if len(terr) == 0 {
			if a := e.smallestAdminSite(); a != nil {
				delete(e.status, a.LocationID)
				return e.selectSites([]*gazetteer.Site{a}, pool)
			}
		}
	}

	// An encompassing feature can sharpen a surviving candidate, or
	// failing that, stand in for the record on its own.
	if geom, ok, err := e.selectWithinEncompassing(pool, maxDist); ok || err != nil {
		return geom, err
	}

	// Administrative fallback. When nothing below the admin level was
	// ever present the configured distance cap no longer applies.
	return e.selectAdmin(pool, maxDist)
}

// encompassName resolves several candidates sharing one name, trying
// increasingly blunt preferences before accepting the full spread.
func (e *Evaluator) encompassName(specific, pool []*gazetteer.Site, maxDist float64) (*geometry.Shape, error) {
	type preference struct {
		subset []*gazetteer.Site
		msg    string
	}
	var prefs []preference
	if current := e.currentNameSites(specific); len(current) > 0 && len(current) < len(specific) {
		prefs = append(prefs, preference{current, "excludes features matching synonyms of this name"})
	}
	var capitals, populated []*gazetteer.Site
	for _, s := range specific {
		if gazetteer.IsCapitalCode(s.SiteKind) {
			capitals = append(capitals, s)
		}
		if s.SiteClass == "P" {
			populated = append(populated, s)
		}
	}
	if len(capitals) > 0 && len(capitals) < len(specific) {
		prefs = append(prefs, preference{capitals, "includes only capital cities matching this name"})
	}
	if len(populated) > 0 && len(populated) < len(specific) {
		prefs = append(prefs, preference{populated, "includes only populated places matching this name"})
	}
	prefs = append(prefs, preference{specific, ""})

	for _, pref := range prefs {
		sel, geom, ok := e.envelopeFor(pref.subset, maxDist)
		if !ok {
			continue
		}
		for _, s := range sel {
			if pref.msg != "" {
				e.note(s, pref.msg)
			}
		}
		e.rejectExcept(specific, sel)
		return e.selectSitesWith(sel, geom, pool)
	}
	return nil, eris.New("resolver: could not encompass sites sharing a name")
}

// envelopeFor builds the hull over a subset and accepts it when it is
// tight enough, either absolutely or relative to the largest member.
// When the hull sprawls, a polygon nearly as broad as the whole spread
// stands in for it.
func (e *Evaluator) envelopeFor(subset []*gazetteer.Site, maxDist float64) ([]*gazetteer.Site, *geometry.Shape, bool) {
	hull, err := e.hullOf(subset)
	if err != nil {
		return nil, nil, false
	}
	maxSite := 0.0
	for _, s := range subset {
		if r := s.RadiusKm(); r > maxSite {
			maxSite = r
		}
	}
	if r := hull.RadiusKm(); r < maxDist || (maxSite > 0 && r/maxSite <= 1.2) {
		return subset, hull, true
	}
	var best *gazetteer.Site
	for _, s := range subset {
		if s.Geometry == nil || s.Geometry.IsPoint() || s.RadiusKm() <= 0.9*maxSite {
			continue
		}
		if best == nil || s.RadiusKm() > best.RadiusKm() {
			best = s
		}
	}
	if best == nil {
		return nil, nil, false
	}
	geom, err := siteShape(best)
	if err != nil {
		return nil, nil, false
	}
	return []*gazetteer.Site{best}, geom, true
}

// currentNameSites returns the candidates whose primary name matches
// the record's spelling, as opposed to matching through a synonym.
func (e *Evaluator) currentNameSites(sites []*gazetteer.Site) []*gazetteer.Site {
	var out []*gazetteer.Site
	for _, s := range sites {
		term := e.terms[s.LocationID]
		if term == "" {
			continue
		}
		if gazetteer.StandardizeName(term) == gazetteer.StandardizeName(s.Name) {
			out = append(out, s)
		}
	}
	return out
}

// selectCombination picks one site per name so that the combined
// envelope is as tight as possible.
func (e *Evaluator) selectCombination(specific []*gazetteer.Site, groups map[string][]*gazetteer.Site, pool []*gazetteer.Site, maxDist float64) (*geometry.Shape, bool, error) {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var best []*gazetteer.Site
	bestR := -1.0
	combo := make([]*gazetteer.Site, len(names))
	tried := 0

	var walk func(depth int)
	walk = func(depth int) {
		if tried >= maxCombinations {
			return
		}
		if depth == len(names) {
			tried++
			ids := map[string]struct{}{}
			for _, s := range combo {
				ids[s.LocationID] = struct{}{}
			}
			if len(ids) < len(combo) {
				return
			}
			hull, err := e.hullOf(combo)
			if err != nil {
				return
			}
			if r := hull.RadiusKm(); bestR < 0 || r < bestR {
				bestR = r
				best = append(best[:0:0], combo...)
			}
			return
		}
		for _, s := range groups[names[depth]] {
			combo[depth] = s
			walk(depth + 1)
		}
	}
	walk(0)

	if best == nil || bestR > maxDist {
		return nil, false, nil
	}
	hull, err := e.hullOf(best)
	if err != nil {
		return nil, false, eris.Wrap(ErrGeometry, "resolver: combine selected sites")
	}
	e.rejectExcept(specific, best)
	geom, err := e.selectSitesWith(best, hull, pool)
	return geom, true, err
}

// selectWithinEncompassing uses features tagged encompassing either to
// clip the broadest surviving candidate down or, when the pool is
// spent, as the resolution itself.
func (e *Evaluator) selectWithinEncompassing(pool []*gazetteer.Site, maxDist float64) (*geometry.Shape, bool, error) {
	enc := e.interpretedAs(StatusEncompassing)
	if len(enc) == 0 {
		return nil, false, nil
	}
	var smallest *gazetteer.Site
	for _, s := range enc {
		if s.Geometry == nil || s.Geometry.IsPoint() {
			continue
		}
		if smallest == nil || s.RadiusKm() < smallest.RadiusKm() {
			smallest = s
		}
	}
	if smallest == nil {
		return nil, false, nil
	}

	remaining := e.uninterpreted(pool)
	if len(remaining) > 0 {
		var broadest *gazetteer.Site
		for _, s := range remaining {
			if s.Geometry == nil {
				continue
			}
			if broadest == nil || s.RadiusKm() > broadest.RadiusKm() {
				broadest = s
			}
		}
		if broadest != nil {
			inter, err := broadest.Geometry.Intersection(smallest.Geometry.Resize(e.cfg.ResizeFactor))
			if err == nil && inter.RadiusKm() <= 0.9*broadest.RadiusKm() && inter.RadiusKm() <= 5*maxDist {
				e.note(broadest, "was narrowed to its overlap with the encompassing feature")
				geom, serr := e.selectSitesWith([]*gazetteer.Site{broadest}, inter, pool)
				return geom, true, serr
			}
		}
	}

	if smallest.RadiusKm() <= 5*maxDist {
		delete(e.status, smallest.LocationID)
		geom, err := e.selectSites([]*gazetteer.Site{smallest}, pool)
		return geom, true, err
	}
	return nil, false, nil
}

// selectAdmin falls back to the administrative divisions, smallest
// first. A record that never held more than admin terms relaxes the
// distance cap, because the division itself is the locality.
func (e *Evaluator) selectAdmin(pool []*gazetteer.Site, maxDist float64) (*geometry.Shape, error) {
	admins := e.interpretedAs(StatusAdmin)
	if len(admins) == 0 {
		return nil, eris.New("resolver: no candidate survived selection")
	}
	sort.SliceStable(admins, func(i, j int) bool {
		return admins[i].RadiusKm() < admins[j].RadiusKm()
	})
	relaxed := maxDist
	if e.rec.IsAdminOnly() && len(e.out.Missed()) == 0 {
		relaxed = e.cfg.AdminRelaxKm
	}
	for _, a := range admins {
		if a.Geometry == nil {
			continue
		}
		if a.RadiusKm() <= relaxed || (e.marine && a.RadiusKm() < 1000) {
			delete(e.status, a.LocationID)
			return e.selectSites([]*gazetteer.Site{a}, pool)
		}
	}
	return nil, eris.New("resolver: administrative divisions exceed the distance cap")
}

// rejectExcept rejects members of the working set that were passed
// over in favor of the kept subset.
func (e *Evaluator) rejectExcept(all, kept []*gazetteer.Site) {
	keep := map[string]struct{}{}
	for _, s := range kept {
		keep[s.LocationID] = struct{}{}
	}
	for _, s := range all {
		if _, ok := keep[s.LocationID]; ok {
			continue
		}
		if e.status[s.LocationID] == "" {
			e.status[s.LocationID] = StatusRejectedElsewhere
		}
	}
}

// selectSites selects candidates using the hull over their shapes.
func (e *Evaluator) selectSites(sel, pool []*gazetteer.Site) (*geometry.Shape, error) {
	geom, err := e.hullOf(sel)
	if err != nil {
		return nil, eris.Wrap(ErrGeometry, "resolver: build selection envelope")
	}
	return e.selectSitesWith(sel, geom, pool)
}

// selectSitesWith finalizes a selection: the sites are tagged, the
// geometry is clipped to the declared admin divisions and extended
// into open water when the record calls for it, and everything left
// unexplained is marked as such.
func (e *Evaluator) selectSitesWith(sel []*gazetteer.Site, geom *geometry.Shape, pool []*gazetteer.Site) (*geometry.Shape, error) {
	if geom == nil {
		return nil, eris.Wrap(ErrGeometry, "resolver: selection has no geometry")
	}
	e.interpret(sel, StatusSelected, true)

	if !anySiteKind(sel, "direction") && !anyAdminField(sel) {
		if a := e.smallestAdminSite(); a != nil {
			geom = e.constrain(geom, a)
		}
	}
	if e.marine || anySiteKind(sel, "offshore") {
		geom = e.extendIntoOcean(geom)
	}

	for _, s := range pool {
		if e.status[s.LocationID] == "" {
			e.status[s.LocationID] = StatusRejectedUnreconciled
		}
	}

	if len(sel) == 1 {
		term := strings.ToLower(e.terms[sel[0].LocationID])
		if strings.Contains(term, "(near)") || strings.HasPrefix(term, "near ") {
			e.nearFactor = 2
		}
	}
	return geom, nil
}

// constrain clips a selection to an administrative polygon when the
// polygon is comparable in scale and actually reduces the envelope.
func (e *Evaluator) constrain(geom *geometry.Shape, admin *gazetteer.Site) *geometry.Shape {
	other := admin.Geometry
	if other == nil || other.IsPoint() || other.Contains(geom) {
		return geom
	}
	if geom.RadiusKm() > 0 && other.RadiusKm() > 4*geom.RadiusKm() {
		return geom
	}
	inter, err := geom.Intersection(other.Resize(e.cfg.ResizeFactor))
	if err != nil {
		return geom
	}
	if !geom.IsPoint() && inter.RadiusKm() < 0.1*geom.RadiusKm() {
		return geom
	}
	e.status[admin.LocationID] = StatusConstrained
	e.note(admin, "constrains the selected feature")
	return inter
}

// extendIntoOcean pushes a terrestrial selection offshore by the
// continental shelf width, bounded by the smallest water body the
// record names when one has a usable geometry.
func (e *Evaluator) extendIntoOcean(geom *geometry.Shape) *geometry.Shape {
	ext := geom.BufferKm(e.cfg.ShelfWidthKm)

	var water *gazetteer.Site
	for _, s := range e.active() {
		if !marineLike(s) || s.Geometry == nil || s.Geometry.IsPoint() {
			continue
		}
		if s.SiteKind == "OCN" && water != nil {
			continue
		}
		if water == nil || s.RadiusKm() < water.RadiusKm() {
			water = s
		}
	}
	if water == nil {
		return ext
	}
	inter, err := ext.Intersection(water.Geometry.Resize(e.cfg.ResizeFactor))
	if err != nil {
		return ext
	}
	combined, err := geometry.Combine(geom, inter)
	if err != nil {
		return ext
	}
	if e.status[water.LocationID] == "" || e.status[water.LocationID] == StatusVeryLarge {
		e.status[water.LocationID] = StatusIntersecting
	}
	e.note(water, "bounds the extension into open water")
	return combined
}

// smallestAdminSite returns the most specific administrative division
// still informing the resolution.
func (e *Evaluator) smallestAdminSite() *gazetteer.Site {
	var best *gazetteer.Site
	for _, s := range e.interpretedAs(StatusAdmin) {
		if s.Geometry == nil || s.Geometry.IsPoint() {
			continue
		}
		if best == nil || s.RadiusKm() < best.RadiusKm() {
			best = s
		}
	}
	return best
}

// hullOf combines the shapes of several sites, inflating point sites
// to their nominal radius first.
func (e *Evaluator) hullOf(sites []*gazetteer.Site) (*geometry.Shape, error) {
	shapes := make([]*geometry.Shape, 0, len(sites))
	for _, s := range sites {
		shape, err := siteShape(s)
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, shape)
	}
	return geometry.Combine(shapes...)
}

// siteShape returns the site geometry, buffering points to the nominal
// radius for the feature type so the envelope never under-covers.
func siteShape(s *gazetteer.Site) (*geometry.Shape, error) {
	if s.Geometry == nil {
		return nil, eris.Wrapf(ErrGeometry, "resolver: site %s has no geometry", s.LocationID)
	}
	if !s.Geometry.IsPoint() {
		return s.Geometry, nil
	}
	lat, lng := s.Geometry.Centroid()
	r := s.RadiusKm()
	if r <= 0 {
		r = 1
	}
	return geometry.NewPointRadius(lat, lng, r)
}

func anySiteKind(sites []*gazetteer.Site, kind string) bool {
	for _, s := range sites {
		if s.SiteKind == kind {
			return true
		}
	}
	return false
}

func anyAdminField(sites []*gazetteer.Site) bool {
	for _, s := range sites {
		if adminField(s.Field) {
			return true
		}
	}
	return false
}
