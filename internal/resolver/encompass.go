package resolver

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
	"github.com/collections-lab/georef-cli/internal/geometry"
)

// encompass works through the reconciliation ladder over the given
// pool. It recurses when a step collapses the pool to a smaller set
// that must be re-validated from the top.
func (e *Evaluator) encompass(pool []*gazetteer.Site, maxDist float64) (*geometry.Shape, error) {
	if len(pool) == 0 {
		return nil, eris.New("resolver: empty candidate pool")
	}
	pool = e.ignoreRelated(pool)
	pool = e.validateAgainstHigherGeo(pool)
	pool = e.validateAgainstMarine(pool)
	pool = e.disentangleNames(pool)
	pool = e.dedupe(pool)
	if inner := e.collapseEncompassed(pool); len(inner) > 0 {
		return e.encompass(inner, maxDist)
	}
	pool = e.dropVeryLarge(pool)
	pool = e.findIntersecting(pool, maxDist)
	pool = e.discardOutliers(pool)
	if geom, done, err := e.shortcuts(pool); done || err != nil {
		return geom, err
	}
	specific, groups := e.mostSpecific(pool)
	return e.selectFrom(pool, specific, groups, maxDist)
}

// ignoreRelated drops candidates that another candidate already
// incorporates, so the anchor of a direction phrase is not treated as
// an independent feature.
func (e *Evaluator) ignoreRelated(pool []*gazetteer.Site) []*gazetteer.Site {
	referenced := map[string]string{}
	for _, s := range pool {
		for _, rel := range s.RelatedSites {
			referenced[rel.LocationID] = s.LocationID
		}
	}
	var out []*gazetteer.Site
	for _, s := range pool {
		by, ok := referenced[s.LocationID]
		if ok && by != s.LocationID {
			e.interpret([]*gazetteer.Site{s}, StatusRejectedElsewhere, false)
			continue
		}
		out = append(out, s)
	}
	return out
}

// validateAgainstHigherGeo sets administrative matches aside as
// context and rejects terrestrial candidates that fall outside the
// smallest administrative polygon the record names.
func (e *Evaluator) validateAgainstHigherGeo(pool []*gazetteer.Site) []*gazetteer.Site {
	var admins, rest []*gazetteer.Site
	for _, s := range pool {
		switch {
		case (s.SiteClass == "A" || s.SiteClass == "P") && adminField(s.Field):
			admins = append(admins, s)
		case s.SiteClass == "L" && s.SiteKind == "CONT":
			e.interpret([]*gazetteer.Site{s}, StatusVeryLarge, true)
		default:
			rest = append(rest, s)
		}
	}
	if len(admins) > 0 {
		e.interpret(admins, StatusAdmin, true)
	}
	rest = e.uninterpreted(rest)

	bound := e.adminBound()
	if bound == nil {
		return rest
	}
	var out []*gazetteer.Site
	for _, s := range rest {
		if marineLike(s) || s.Geometry == nil || s.Geometry.Intersects(bound) {
			out = append(out, s)
			continue
		}
		e.interpret([]*gazetteer.Site{s}, StatusRejectedHigherGeo, false)
		e.note(s, "lies outside the administrative divisions named in this record")
	}
	return out
}

// adminBound returns the smallest administrative polygon, padded for
// coastline and border slop.
func (e *Evaluator) adminBound() *geometry.Shape {
	var best *gazetteer.Site
	for _, s := range e.interpretedAs(StatusAdmin) {
		if s.Geometry == nil || s.Geometry.IsPoint() {
			continue
		}
		if best == nil || s.RadiusKm() < best.RadiusKm() {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	return best.Geometry.BufferKm(e.cfg.AdminBufferKm)
}

// validateAgainstMarine checks that water bodies nest: each named sea
// or bay must touch the larger water body that contains it.
func (e *Evaluator) validateAgainstMarine(pool []*gazetteer.Site) []*gazetteer.Site {
	var marine []*gazetteer.Site
	for _, s := range pool {
		if marineLike(s) && s.Geometry != nil {
			marine = append(marine, s)
		}
	}
	if len(marine) < 2 {
		return pool
	}
	sort.SliceStable(marine, func(i, j int) bool {
		return marine[i].RadiusKm() > marine[j].RadiusKm()
	})
	kept := marine[:1]
	for _, s := range marine[1:] {
		ok := false
		for _, k := range kept {
			if e.resizedIntersects(s, k) {
				ok = true
				break
			}
		}
		if ok {
			kept = append(kept, s)
			continue
		}
		e.interpret([]*gazetteer.Site{s}, StatusRejectedHigherGeo, false)
		e.note(s, "does not adjoin the larger water bodies named in this record")
	}
	if len(kept) > 1 {
		smallest := kept[len(kept)-1].RadiusKm()
		for _, k := range kept[:len(kept)-1] {
			if k.RadiusKm() > 2*smallest {
				e.interpret([]*gazetteer.Site{k}, StatusVeryLarge, false)
			}
		}
	}
	return e.uninterpreted(pool)
}

// disentangleNames whittles groups of same-name candidates that all
// overlap down to the most plausible feature type.
func (e *Evaluator) disentangleNames(pool []*gazetteer.Site) []*gazetteer.Site {
	for _, group := range e.groupByName(pool) {
		if len(group) < 2 || !mutuallyIntersecting(group) {
			continue
		}
		preferred, msg := preferWithinName(group)
		if len(preferred) == 0 || len(preferred) == len(group) {
			continue
		}
		keep := map[string]struct{}{}
		for _, s := range preferred {
			keep[s.LocationID] = struct{}{}
			e.note(s, msg)
		}
		for _, s := range group {
			if _, ok := keep[s.LocationID]; !ok {
				e.interpret([]*gazetteer.Site{s}, StatusRejectedElsewhere, false)
			}
		}
	}
	return e.uninterpreted(pool)
}

func preferWithinName(group []*gazetteer.Site) ([]*gazetteer.Site, string) {
	var admin, populated, nonSpot []*gazetteer.Site
	for _, s := range group {
		if s.IsAdmin() || gazetteer.IsIslandCode(s.SiteKind) {
			admin = append(admin, s)
		}
		if s.SiteClass == "P" {
			populated = append(populated, s)
		}
		if s.SiteClass != "S" {
			nonSpot = append(nonSpot, s)
		}
	}
	switch {
	case len(admin) > 0:
		return admin, "excludes all features matching this name except administrative divisions and islands"
	case len(populated) > 0:
		return populated, "includes only populated places matching this name"
	default:
		return nonSpot, "excludes buildings and spots matching this name"
	}
}

// dedupe rejects same-name candidates whose geometries are effectively
// identical, which happens when sources digitize the same feature.
func (e *Evaluator) dedupe(pool []*gazetteer.Site) []*gazetteer.Site {
	const eps = 0.1
	for _, group := range e.groupByName(pool) {
		for i, a := range group {
			if a.Geometry == nil || e.status[a.LocationID] != "" {
				continue
			}
			for _, b := range group[i+1:] {
				if b.Geometry == nil || e.status[b.LocationID] != "" {
					continue
				}
				if sameBounds(a.Geometry, b.Geometry, eps) {
					e.interpret([]*gazetteer.Site{b}, StatusRejectedDuplicate, false)
				}
			}
		}
	}
	return e.uninterpreted(pool)
}

// collapseEncompassed finds candidates that every other name in the
// pool appears to contain. When such candidates exist, the containing
// features become context and resolution narrows to the contained set.
func (e *Evaluator) collapseEncompassed(pool []*gazetteer.Site) []*gazetteer.Site {
	groups := e.groupByName(pool)
	if len(groups) < 2 {
		return nil
	}
	innerIDs := map[string]struct{}{}
	parentIDs := map[string]struct{}{}
	for _, s := range pool {
		if s.Geometry == nil {
			continue
		}
		covering := map[string][]*gazetteer.Site{}
		for _, p := range pool {
			if p.LocationID == s.LocationID || e.nameKey(p) == e.nameKey(s) {
				continue
			}
			if p.Geometry == nil || gazetteer.IsRiverCode(p.SiteKind) {
				continue
			}
			if p.Geometry.Resize(e.cfg.ResizeFactor).Contains(s.Geometry) {
				covering[e.nameKey(p)] = append(covering[e.nameKey(p)], p)
			}
		}
		if len(covering) != len(groups)-1 {
			continue
		}
		innerIDs[s.LocationID] = struct{}{}
		for _, parents := range covering {
			for _, p := range parents {
				parentIDs[p.LocationID] = struct{}{}
			}
		}
	}
	if len(innerIDs) == 0 || len(innerIDs) >= len(pool) {
		return nil
	}

	var inner, parents []*gazetteer.Site
	for _, s := range pool {
		if _, ok := innerIDs[s.LocationID]; ok {
			inner = append(inner, s)
			continue
		}
		if _, ok := parentIDs[s.LocationID]; ok {
			parents = append(parents, s)
			e.note(s, "appears to encompass the more specific features in this record")
			continue
		}
		e.interpret([]*gazetteer.Site{s}, StatusRejectedDisjoint, false)
	}
	e.interpret(parents, StatusEncompassing, true)
	// Cascaded rejections may have caught an inner site sharing a key
	// with a parent; keep only what is still in play.
	return e.uninterpreted(inner)
}

// dropVeryLarge sets continents and oceans aside unless nothing more
// specific remains.
func (e *Evaluator) dropVeryLarge(pool []*gazetteer.Site) []*gazetteer.Site {
	var huge, rest []*gazetteer.Site
	for _, s := range pool {
		if s.SiteKind == "CONT" || s.SiteKind == "OCN" {
			huge = append(huge, s)
		} else {
			rest = append(rest, s)
		}
	}
	if len(huge) == 0 || len(rest) == 0 {
		return pool
	}
	e.interpret(huge, StatusVeryLarge, true)
	return e.uninterpreted(rest)
}

// findIntersecting keeps the candidates that mutually overlap across
// names and rejects the rest. Records naming four or more features
// tolerate one name missing from the overlap.
func (e *Evaluator) findIntersecting(pool []*gazetteer.Site, maxDist float64) []*gazetteer.Site {
	groups := e.groupByName(pool)
	if len(groups) < 2 {
		return pool
	}
	need := len(groups) - 1
	if len(groups) >= 4 {
		need--
	}

	counts := map[string]int{}
	partners := map[string]map[string]struct{}{}
	for _, s := range pool {
		seen := map[string]struct{}{}
		partners[s.LocationID] = map[string]struct{}{}
		for name, members := range groups {
			if name == e.nameKey(s) {
				continue
			}
			for _, m := range members {
				if e.resizedIntersects(s, m) {
					seen[name] = struct{}{}
					partners[s.LocationID][m.LocationID] = struct{}{}
				}
			}
		}
		counts[s.LocationID] = len(seen)
	}

	reached := false
	for _, s := range pool {
		if counts[s.LocationID] >= need {
			reached = true
			break
		}
	}
	if !reached || need <= 0 {
		return pool
	}

	var survivors []*gazetteer.Site
	for _, s := range pool {
		if counts[s.LocationID] >= need {
			survivors = append(survivors, s)
			continue
		}
		e.interpret([]*gazetteer.Site{s}, StatusRejectedDisjoint, false)
		e.note(s, "is disjoint from the other features named in this record")
	}
	e.mutual = true

	// A large feature that touches every survivor adds no precision;
	// set it aside and re-evaluate the overlap without it.
	if len(survivors) > 3 {
		broadest := broadestCoveringAll(survivors, partners)
		if broadest != nil {
			e.interpret([]*gazetteer.Site{broadest}, StatusIntersecting, false)
			return e.findIntersecting(e.uninterpreted(survivors), maxDist)
		}
	}
	return survivors
}

func broadestCoveringAll(survivors []*gazetteer.Site, partners map[string]map[string]struct{}) *gazetteer.Site {
	var best *gazetteer.Site
	for _, s := range survivors {
		all := true
		for _, o := range survivors {
			if o.LocationID == s.LocationID {
				continue
			}
			if _, ok := partners[s.LocationID][o.LocationID]; !ok {
				all = false
				break
			}
		}
		if !all {
			continue
		}
		if best == nil || s.RadiusKm() > best.RadiusKm() {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	// Only worth removing when it is meaningfully broader than the
	// rest of the overlap.
	for _, o := range survivors {
		if o.LocationID != best.LocationID && o.RadiusKm() >= best.RadiusKm() {
			return nil
		}
	}
	return best
}

// discardOutliers rejects candidates far from every feature matched
// under any other name, unless doing so would empty the pool.
func (e *Evaluator) discardOutliers(pool []*gazetteer.Site) []*gazetteer.Site {
	if len(e.groupByName(pool)) < 2 {
		return pool
	}
	var outliers []*gazetteer.Site
	for _, s := range pool {
		if s.Geometry == nil {
			continue
		}
		minDist := -1.0
		for _, o := range pool {
			if o.Geometry == nil || e.nameKey(o) == e.nameKey(s) {
				continue
			}
			d := s.Geometry.MinDistKm(o.Geometry)
			if minDist < 0 || d < minDist {
				minDist = d
			}
		}
		if minDist < 0 {
			continue
		}
		limit := math.Max(e.cfg.OutlierRadiusFactor*s.RadiusKm(), e.cfg.OutlierFloorKm)
		if minDist > limit {
			outliers = append(outliers, s)
		}
	}
	if len(outliers) == 0 || len(outliers) == len(pool) {
		return pool
	}
	for _, s := range outliers {
		e.interpret([]*gazetteer.Site{s}, StatusRejectedOutlier, false)
		e.note(s, "is far from every other feature named in this record")
	}
	return e.uninterpreted(pool)
}

// shortcuts selects immediately on parsed structures precise enough to
// settle the record: a cadastral section, or a direction phrase that
// lands on a precisely located point feature.
func (e *Evaluator) shortcuts(pool []*gazetteer.Site) (*geometry.Shape, bool, error) {
	for _, s := range pool {
		if s.SiteKind == "plss" && s.Geometry != nil {
			geom, err := e.selectSites([]*gazetteer.Site{s}, pool)
			return geom, true, err
		}
	}
	for _, d := range pool {
		if d.SiteKind != "direction" || d.Geometry == nil {
			continue
		}
		for _, p := range pool {
			if p.LocationID == d.LocationID || p.Geometry == nil {
				continue
			}
			if !p.Geometry.IsPoint() || p.RadiusKm() > 10 {
				continue
			}
			if d.Geometry.MinDistKm(p.Geometry) <= 20 {
				e.interpret([]*gazetteer.Site{d}, StatusIntersecting, false)
				e.note(d, "corroborates the precisely located feature it points at")
				geom, err := e.selectSites([]*gazetteer.Site{p}, pool)
				return geom, true, err
			}
		}
	}
	return nil, false, nil
}

// mostSpecific splits the pool into specific name groups and context.
// A group is specific when its best candidate is within 1.5x of the
// most precise group (with a floor for point features); parsed
// direction, border, and offshore phrases are always specific.
func (e *Evaluator) mostSpecific(pool []*gazetteer.Site) ([]*gazetteer.Site, map[string][]*gazetteer.Site) {
	groups := e.groupByName(pool)
	minAll := -1.0
	for _, members := range groups {
		r := minRadius(members)
		if minAll < 0 || r < minAll {
			minAll = r
		}
	}
	if minAll < 0 {
		return nil, nil
	}
	limit := math.Max(e.cfg.SpecificityFactor*minAll, e.cfg.SpecificityFloorKm)

	demoted := StatusLessSpecific
	if e.mutual {
		demoted = StatusIntersecting
	}

	var specific []*gazetteer.Site
	kept := map[string][]*gazetteer.Site{}
	for name, members := range groups {
		if minRadius(members) <= limit || anyParsed(members) {
			specific = append(specific, members...)
			kept[name] = members
			continue
		}
		e.interpret(members, demoted, false)
	}

	// When an administrative or encompassing polygon is more precise
	// than anything still in the pool, it wins outright.
	context := append(e.interpretedAs(StatusAdmin), e.interpretedAs(StatusEncompassing)...)
	ctxMin := -1.0
	for _, s := range context {
		if s.Geometry == nil {
			continue
		}
		if r := s.RadiusKm(); ctxMin < 0 || r < ctxMin {
			ctxMin = r
		}
	}
	if ctxMin >= 0 && ctxMin < minAll {
		e.interpret(specific, demoted, false)
		return nil, nil
	}
	sortSites(specific)
	return specific, kept
}

func anyParsed(sites []*gazetteer.Site) bool {
	for _, s := range sites {
		switch s.SiteKind {
		case "direction", "between", "border", "offshore", "plss":
			return true
		}
	}
	return false
}

func minRadius(sites []*gazetteer.Site) float64 {
	min := -1.0
	for _, s := range sites {
		if r := s.RadiusKm(); min < 0 || r < min {
			min = r
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

func (e *Evaluator) uninterpreted(sites []*gazetteer.Site) []*gazetteer.Site {
	var out []*gazetteer.Site
	for _, s := range sites {
		if e.status[s.LocationID] == "" {
			out = append(out, s)
		}
	}
	return out
}

func (e *Evaluator) resizedIntersects(a, b *gazetteer.Site) bool {
	if a.Geometry == nil || b.Geometry == nil {
		return false
	}
	return a.Geometry.Resize(e.cfg.ResizeFactor).
		Intersects(b.Geometry.Resize(e.cfg.ResizeFactor))
}

func mutuallyIntersecting(sites []*gazetteer.Site) bool {
	for i, a := range sites {
		for _, b := range sites[i+1:] {
			if a.Geometry == nil || b.Geometry == nil {
				return false
			}
			if !a.Geometry.Intersects(b.Geometry) {
				return false
			}
		}
	}
	return true
}

func sameBounds(a, b *geometry.Shape, eps float64) bool {
	aMinLat, aMinLng, aMaxLat, aMaxLng := a.LatLngBounds()
	bMinLat, bMinLng, bMaxLat, bMaxLng := b.LatLngBounds()
	return math.Abs(aMinLat-bMinLat) < eps && math.Abs(aMinLng-bMinLng) < eps &&
		math.Abs(aMaxLat-bMaxLat) < eps && math.Abs(aMaxLng-bMaxLng) < eps
}

func marineLike(s *gazetteer.Site) bool {
	return s.IsMarine() || gazetteer.IsShoreCode(s.SiteKind) || s.IsUndersea()
}

func adminField(field string) bool {
	switch field {
	case "country", "state_province", "county":
		return true
	}
	return false
}

// sortSites orders sites by location id for deterministic iteration.
func sortSites(sites []*gazetteer.Site) {
	sort.SliceStable(sites, func(i, j int) bool {
		return sites[i].LocationID < sites[j].LocationID
	})
}
