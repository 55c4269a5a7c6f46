package matcher

import (
	"sort"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
)

// MatchResult holds the candidate sites found for one parsed reference
// in one locality field.
type MatchResult struct {
	Field        string
	Term         string
	Sites        []*gazetteer.Site
	TermsChecked []string
	TermsMatched []string
}

// Output is everything the pipeline produced for one record: the
// per-reference match results plus the diagnostics the evaluator
// reports alongside the resolution.
type Output struct {
	Results []MatchResult

	// Leftovers maps field name to text that no grammar consumed.
	Leftovers map[string][]string

	// Interpreted maps feature-kind tokens to the names parsed for
	// that kind, the substitution context for placeholder names.
	Interpreted map[string][]string
}

// Sites flattens the candidate sites across results.
func (o *Output) Sites() []*gazetteer.Site {
	var sites []*gazetteer.Site
	for _, res := range o.Results {
		sites = append(sites, res.Sites...)
	}
	return sites
}

// Missed returns the checked terms that never matched a site, sorted.
func (o *Output) Missed() []string {
	matched := map[string]struct{}{}
	for _, res := range o.Results {
		for _, term := range res.TermsMatched {
			matched[term] = struct{}{}
		}
	}
	missed := map[string]struct{}{}
	for _, res := range o.Results {
		for _, term := range res.TermsChecked {
			if _, ok := matched[term]; !ok {
				missed[term] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(missed))
	for term := range missed {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}
