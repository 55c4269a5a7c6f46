package resolver

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
	"github.com/collections-lab/georef-cli/internal/geometry"
	"github.com/collections-lab/georef-cli/internal/grammar"
	"github.com/collections-lab/georef-cli/internal/matcher"
)

// Result is a finished resolution: the geometry that encompasses the
// record's locality, its uncertainty radius, and the bookkeeping a
// reviewer needs to audit the decision.
type Result struct {
	Geometry *geometry.Shape
	RadiusKm float64

	// Sources lists the provenance of every geometry that informed
	// the result, sorted and deduplicated.
	Sources []string

	// Interpretations maps each candidate's location id to the status
	// the evaluator left it with.
	Interpretations map[string]Status

	// Explanation is a prose account of the resolution suitable for
	// a determination remarks field.
	Explanation string

	// Missed lists locality terms that never matched any site.
	Missed []string
}

// Evaluator reconciles one record's candidate sites. It is single use;
// build a fresh one per record.
type Evaluator struct {
	cfg Config
	log *zap.Logger
	rec *matcher.Record
	out *matcher.Output

	sites  []*gazetteer.Site
	terms  map[string]string // location id -> matched term
	fields map[string]string // location id -> locality field
	status map[string]Status
	notes  map[string][]string

	marine     bool
	mutual     bool
	nearFactor float64
	retried    bool
}

// NewEvaluator prepares an evaluator over the matcher's output for one
// record.
func NewEvaluator(cfg Config, rec *matcher.Record, out *matcher.Output) *Evaluator {
	return &Evaluator{
		cfg:        cfg,
		log:        zap.L().Named("resolver"),
		rec:        rec,
		out:        out,
		terms:      map[string]string{},
		fields:     map[string]string{},
		status:     map[string]Status{},
		notes:      map[string][]string{},
		marine:     rec.Ocean != "" || rec.SeaGulf != "",
		nearFactor: 1,
	}
}

// Resolve runs the full reconciliation. When the first pass fails
// inside the configured maximum distance, the minimum plausible
// uncertainty is estimated from the candidates and the pass is rerun
// once against that relaxed bound.
func (e *Evaluator) Resolve() (*Result, error) {
	e.collect()
	if len(e.sites) == 0 {
		return nil, eris.Wrapf(ErrNoCandidates,
			"resolver: nothing matched for record %q", e.rec.LocationID)
	}
	if len(e.sites) > e.cfg.MaxSites {
		return nil, eris.Wrapf(ErrTooManyCandidates,
			"resolver: %d candidates exceeds limit of %d", len(e.sites), e.cfg.MaxSites)
	}

	maxDist := e.cfg.MaxDistKm
	e.log.Debug("encompassing candidates",
		zap.String("record", e.rec.LocationID),
		zap.Int("sites", len(e.sites)))
	geom, err := e.encompass(e.pool(), maxDist)
	if err != nil {
		est := e.estimateMinimumUncertainty()
		if est > maxDist && !e.retried {
			e.retried = true
			e.reset()
			maxDist = est
			e.log.Debug("retrying with relaxed distance",
				zap.String("record", e.rec.LocationID),
				zap.Float64("max_dist_km", maxDist))
			geom, err = e.encompass(e.pool(), maxDist)
		}
		if err != nil {
			return nil, eris.Wrapf(ErrResolutionFailure,
				"resolver: could not encompass sites within %.0f km", maxDist)
		}
	}
	return e.result(geom), nil
}

// collect flattens the matcher output into the working pool, keeping
// one copy per location id. When the same feature matched in several
// fields the more specific field wins, so a town found in both the
// municipality and locality fields is treated as a municipality match.
func (e *Evaluator) collect() {
	byID := map[string]*gazetteer.Site{}
	var order []string
	for _, res := range e.out.Results {
		for _, site := range res.Sites {
			prev, ok := byID[site.LocationID]
			if !ok {
				byID[site.LocationID] = site
				order = append(order, site.LocationID)
				e.terms[site.LocationID] = res.Term
				e.fields[site.LocationID] = res.Field
				continue
			}
			if vagueField(prev.Field) && !vagueField(site.Field) {
				byID[site.LocationID] = site
				e.terms[site.LocationID] = res.Term
				e.fields[site.LocationID] = res.Field
			}
		}
	}
	for _, id := range order {
		e.sites = append(e.sites, byID[id])
	}
}

func vagueField(field string) bool {
	return field == "features" || field == "locality"
}

// key identifies sites that interpret the same reference: same field,
// same name after direction abbreviation. Interpreting one member of a
// key settles the rest.
func (e *Evaluator) key(site *gazetteer.Site) string {
	term := e.terms[site.LocationID]
	if term == "" {
		term = site.Name
	}
	return site.Field + ":" + grammar.AbbreviateDirection(strings.ToLower(term))
}

// nameKey groups sites by the name they matched regardless of field.
func (e *Evaluator) nameKey(site *gazetteer.Site) string {
	term := e.terms[site.LocationID]
	if term == "" {
		term = site.Name
	}
	return grammar.AbbreviateDirection(gazetteer.StandardizeName(term))
}

// pool returns the sites not yet interpreted.
func (e *Evaluator) pool() []*gazetteer.Site {
	var out []*gazetteer.Site
	for _, s := range e.sites {
		if e.status[s.LocationID] == "" {
			out = append(out, s)
		}
	}
	return out
}

// active returns the sites still informing the resolution: everything
// uninterpreted plus everything interpreted under a non-rejected
// status.
func (e *Evaluator) active() []*gazetteer.Site {
	var out []*gazetteer.Site
	for _, s := range e.sites {
		if !e.status[s.LocationID].Rejected() {
			out = append(out, s)
		}
	}
	return out
}

// interpretedAs returns active sites carrying the given status.
func (e *Evaluator) interpretedAs(status Status) []*gazetteer.Site {
	var out []*gazetteer.Site
	for _, s := range e.sites {
		if e.status[s.LocationID] == status {
			out = append(out, s)
		}
	}
	return out
}

// interpret tags sites with a status. With rejectSimilar, every
// uninterpreted site sharing a key with a tagged site is rejected
// under the companion status for the interpretation.
func (e *Evaluator) interpret(sites []*gazetteer.Site, status Status, rejectSimilar bool) {
	keys := map[string]struct{}{}
	for _, s := range sites {
		e.status[s.LocationID] = status
		keys[e.key(s)] = struct{}{}
	}
	if !rejectSimilar {
		return
	}
	similar := similarRemap[status]
	if similar == "" {
		similar = StatusRejectedElsewhere
	}
	for _, s := range e.sites {
		if e.status[s.LocationID] != "" {
			continue
		}
		if _, ok := keys[e.key(s)]; ok {
			e.status[s.LocationID] = similar
		}
	}
}

// uninterpret clears a status, returning its sites to the pool.
func (e *Evaluator) uninterpret(status Status) []*gazetteer.Site {
	var out []*gazetteer.Site
	for _, s := range e.sites {
		if e.status[s.LocationID] == status {
			delete(e.status, s.LocationID)
			out = append(out, s)
		}
	}
	return out
}

func (e *Evaluator) note(site *gazetteer.Site, msg string) {
	e.notes[site.LocationID] = append(e.notes[site.LocationID], msg)
}

// reset clears every interpretation for the relaxed retry.
func (e *Evaluator) reset() {
	e.status = map[string]Status{}
	e.notes = map[string][]string{}
	e.mutual = false
	e.nearFactor = 1
}

func (e *Evaluator) result(geom *geometry.Shape) *Result {
	interp := make(map[string]Status, len(e.status))
	for id, st := range e.status {
		interp[id] = st
	}
	return &Result{
		Geometry:        geom,
		RadiusKm:        geom.RadiusKm() * e.nearFactor,
		Sources:         e.collectSources(),
		Interpretations: interp,
		Explanation:     e.explanation(),
		Missed:          e.out.Missed(),
	}
}

func (e *Evaluator) collectSources() []string {
	seen := map[string]struct{}{}
	for _, s := range e.active() {
		if e.status[s.LocationID] == "" {
			continue
		}
		for _, src := range s.Sources {
			seen[src] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for src := range seen {
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}

// estimateMinimumUncertainty computes the smallest radius that could
// plausibly cover the record given what matched and what did not. Each
// name contributes its most precise candidate; fields that matched
// nothing contribute the nominal size of their smallest feature type.
func (e *Evaluator) estimateMinimumUncertainty() float64 {
	est := 0.0
	for _, sites := range e.groupByName(e.sites) {
		min := -1.0
		for _, s := range sites {
			r := s.RadiusKm()
			if e.marine && !s.IsMarine() {
				r += e.cfg.ShelfWidthKm
			}
			if s.SiteKind == "offshore" {
				r += e.cfg.AdminBufferKm
			}
			if min < 0 || r < min {
				min = r
			}
		}
		if min > est {
			est = min
		}
	}
	for _, res := range e.out.Results {
		if len(res.Sites) > 0 {
			continue
		}
		if r := matcher.FieldMinRadiusKm(res.Field); r > est {
			est = r
		}
	}
	for field := range e.out.Leftovers {
		if r := matcher.FieldMinRadiusKm(field); r > est {
			est = r
		}
	}
	if est == 0 {
		est = 1000
	}
	return est
}

func (e *Evaluator) groupByName(sites []*gazetteer.Site) map[string][]*gazetteer.Site {
	groups := map[string][]*gazetteer.Site{}
	for _, s := range sites {
		k := e.nameKey(s)
		groups[k] = append(groups[k], s)
	}
	return groups
}
