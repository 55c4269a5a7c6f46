package matcher

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/collections-lab/georef-cli/internal/cache"
	"github.com/collections-lab/georef-cli/internal/gazetteer"
	"github.com/collections-lab/georef-cli/internal/grammar"
	"github.com/collections-lab/georef-cli/internal/plss"
)

// Pipeline parses locality fields and matches the resulting references
// against the gazetteer. A nil PLSS lookup disables township/range
// matching; a nil parse cache parses every string fresh.
type Pipeline struct {
	gaz        gazetteer.Lookup
	plss       plss.Lookup
	parseCache *cache.ParseCache
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPLSS enables PLSS matching through the given lookup.
func WithPLSS(lookup plss.Lookup) Option {
	return func(p *Pipeline) {
		p.plss = lookup
	}
}

// WithParseCache reuses parses across records.
func WithParseCache(c *cache.ParseCache) Option {
	return func(p *Pipeline) {
		p.parseCache = c
	}
}

// New returns a Pipeline backed by the given gazetteer.
func New(gaz gazetteer.Lookup, opts ...Option) *Pipeline {
	p := &Pipeline{gaz: gaz}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process parses every populated field of the record and matches each
// parsed reference. Parse failures and empty searches are absorbed as
// diagnostics; only backend errors propagate.
func (p *Pipeline) Process(ctx context.Context, rec *Record) (*Output, error) {
	r := &run{
		p:           p,
		rec:         rec,
		prepared:    map[string][]grammar.Node{},
		leftovers:   map[string][]string{},
		interpreted: map[string][]string{},
	}
	r.prepareAll(ctx)
	r.expandAll()

	out := &Output{Leftovers: r.leftovers, Interpreted: r.interpreted}
	for _, spec := range orderedFields {
		for _, node := range r.prepared[spec.name] {
			res, err := r.processOne(ctx, spec, node)
			if err != nil {
				return nil, err
			}
			out.Results = append(out.Results, res)
		}
	}
	return out, nil
}

// run holds the per-record state of one Process call.
type run struct {
	p   *Pipeline
	rec *Record

	field string
	codes []string

	prepared    map[string][]grammar.Node
	leftovers   map[string][]string
	interpreted map[string][]string
}

// valueDelims split multi-value field text before parsing.
var valueDelims = regexp.MustCompile(`\s*[|;]\s*`)

func (r *run) prepareAll(ctx context.Context) {
	for _, spec := range orderedFields {
		for _, val := range r.rec.Values(spec.name) {
			for _, part := range valueDelims.Split(val, -1) {
				if part = strings.TrimSpace(part); part == "" {
					continue
				}
				nodes, leftover := r.p.parse(ctx, part)
				r.prepared[spec.name] = append(r.prepared[spec.name], nodes...)
				if leftover != "" {
					r.leftovers[spec.name] = append(r.leftovers[spec.name], leftover)
				}
			}
		}
	}
	r.interpret()
}

// interpret indexes the parsed names by feature kind and field so
// placeholder references can be substituted from sibling fields.
func (r *run) interpret() {
	add := func(key, name string) {
		if key == "" || name == "" || strings.Contains(name, "{") {
			return
		}
		for _, have := range r.interpreted[key] {
			if have == name {
				return
			}
		}
		r.interpreted[key] = append(r.interpreted[key], name)
	}
	for field, nodes := range r.prepared {
		for _, node := range nodes {
			for _, name := range node.FeatureNames() {
				add(field, name)
				add(grammar.Unwrap(node).FeatureKind(), name)
			}
		}
	}
}

var rePlaceholder = regexp.MustCompile(`\{([a-z_ ]+)\}`)

// expandAll substitutes {placeholder} tokens once, from the context
// collected by interpret. Names that still contain a placeholder after
// the single pass are dropped.
func (r *run) expandAll() {
	for field, nodes := range r.prepared {
		var expanded []grammar.Node
		for _, node := range nodes {
			expanded = append(expanded, r.expand(node)...)
		}
		r.prepared[field] = expanded
	}
}

func (r *run) expand(node grammar.Node) []grammar.Node {
	name := node.Name()
	m := rePlaceholder.FindStringSubmatch(name)
	if m == nil {
		return []grammar.Node{node}
	}
	key := strings.ReplaceAll(m[1], " ", "_")
	subs := r.interpreted[key]
	if len(subs) == 0 {
		subs = r.rec.Values(key)
	}
	var out []grammar.Node
	for _, sub := range subs {
		replaced := strings.Replace(name, m[0], sub, 1)
		if strings.Contains(replaced, "{") {
			continue
		}
		if s, err := grammar.ParseSimple(replaced); err == nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 && !strings.HasPrefix(name, "{") {
		// A partial placeholder with no substitution still names a
		// feature; keep the node rather than losing the reference.
		return []grammar.Node{node}
	}
	return out
}

// processOne matches a single parsed reference and reports the terms
// it checked and matched.
func (r *run) processOne(ctx context.Context, spec fieldSpec, node grammar.Node) (MatchResult, error) {
	r.field = spec.name
	r.codes = spec.codes

	res := MatchResult{
		Field:        spec.name,
		Term:         node.Name(),
		TermsChecked: node.FeatureNames(),
	}

	inner := grammar.Unwrap(node)
	var sites []*gazetteer.Site
	var err error
	switch inner.Kind() {
	case grammar.KindPLSS:
		sites = r.matchPLSS(ctx, inner.(*grammar.PLSS))
	case grammar.KindDirection:
		sites, err = r.matchDirection(ctx, inner.(*grammar.Direction))
	case grammar.KindBetween:
		sites, err = r.matchBetween(ctx, inner.(*grammar.Between))
	case grammar.KindBorder:
		sites, err = r.matchBorder(ctx, inner.(*grammar.Border))
	case grammar.KindOffshore:
		sites, err = r.matchOffshore(ctx, inner.(*grammar.Offshore))
	case grammar.KindJunction, grammar.KindMeasurement:
		// Junctions and bare measurements are recognized but not
		// georeferenced; they surface only as missed terms.
	default:
		sites, err = r.matchSite(ctx, inner, r.fieldCodes(inner), gazetteer.SizeNormal)
	}
	if err != nil {
		return MatchResult{}, err
	}
	for _, site := range sites {
		site.Field = spec.name
	}
	res.Sites = sites
	if len(sites) > 0 {
		res.TermsMatched = res.TermsChecked
	}
	return res, nil
}

// fieldCodes resolves the feature codes to search for a node: the
// field's configured codes when present, otherwise the codes implied
// by the recognized feature kind.
func (r *run) fieldCodes(node grammar.Node) []string {
	if len(r.codes) > 0 {
		return r.codes
	}
	return gazetteer.CodesForFeature(node.FeatureKind())
}

// parse runs one string through the grammar, consulting the cache
// first. Cache failures degrade to a fresh parse.
func (p *Pipeline) parse(ctx context.Context, val string) ([]grammar.Node, string) {
	if p.parseCache != nil {
		if nodes, leftover, ok, err := p.parseCache.Get(ctx, val); err != nil {
			zap.L().Warn("matcher: parse cache read failed", zap.Error(err))
		} else if ok {
			return nodes, leftover
		}
	}
	nodes := grammar.ParseLocalities(val)
	leftover := grammar.Leftover(val, nodes)
	if p.parseCache != nil {
		if err := p.parseCache.Set(ctx, val, nodes, leftover); err != nil {
			zap.L().Warn("matcher: parse cache write failed", zap.Error(err))
		}
	}
	return nodes, leftover
}
