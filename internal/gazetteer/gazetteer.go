package gazetteer

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/collections-lab/georef-cli/internal/grammar"
)

// SizeHint narrows a search to features of a plausible scale. Small
// and normal searches keep all admin constraints; large drops the
// state, very large drops the country and keeps only features at
// least 100 km across.
type SizeHint string

const (
	SizeSmall     SizeHint = "small"
	SizeNormal    SizeHint = "normal"
	SizeLarge     SizeHint = "large"
	SizeVeryLarge SizeHint = "very large"
)

// MinRadiusKm returns the smallest feature radius the hint admits.
func (h SizeHint) MinRadiusKm() float64 {
	switch h {
	case SizeLarge:
		return 50
	case SizeVeryLarge:
		return 100
	default:
		return 0
	}
}

// SearchParams describes one gazetteer query. Zero-valued fields do
// not constrain the search.
type SearchParams struct {
	// Name is the feature name as written; backends standardize it.
	Name string

	// Codes restricts matches to the listed feature codes.
	Codes []string

	// Classes restricts matches to the listed feature classes.
	Classes []string

	ContinentCode string
	CountryCode   string
	Admin1        string
	Admin2        string

	Size  SizeHint
	Limit int
}

// DefaultSearchLimit bounds a single backend query.
const DefaultSearchLimit = 100

// Lookup is the read interface shared by the gazetteer backends. A
// search that matches nothing returns an empty slice, not an error.
type Lookup interface {
	Search(ctx context.Context, params SearchParams) ([]*Site, error)
	Get(ctx context.Context, locationID string) (*Site, error)
	Close() error
}

var reNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// StandardizeName reduces a feature name to the hyphenated lowercase
// key stored in the names table. Diacritics are folded to ASCII and
// possessives dropped, so "St. Paul's Río" becomes "st-paul-s-rio".
func StandardizeName(name string) string {
	name = strings.ToLower(grammar.StripDiacritics(name))
	name = reNonAlnum.ReplaceAllString(name, "-")
	return strings.Trim(name, "-")
}

// SortedNameKey standardizes a name and sorts its unique tokens, so
// names that differ only in word order compare equal.
func SortedNameKey(name string) string {
	st := StandardizeName(name)
	if st == "" {
		return ""
	}
	tokens := strings.Split(st, "-")
	seen := make(map[string]struct{}, len(tokens))
	uniq := tokens[:0]
	for _, t := range tokens {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			uniq = append(uniq, t)
		}
	}
	sort.Strings(uniq)
	return strings.Join(uniq, "-")
}

// searchNames returns the standardized keys to try for a name: the
// standard form plus the same form with hyphens removed, covering
// records indexed either way.
func searchNames(name string) []string {
	st := StandardizeName(name)
	if st == "" {
		return nil
	}
	names := []string{st}
	if joined := strings.ReplaceAll(st, "-", ""); joined != st {
		names = append(names, joined)
	}
	return names
}

// sortSites orders results the way searches rank them: by feature
// class, then population descending, then id for stability.
func sortSites(sites []*Site) {
	sort.SliceStable(sites, func(i, j int) bool {
		ri, rj := ClassRank(sites[i].SiteClass), ClassRank(sites[j].SiteClass)
		if ri != rj {
			return ri < rj
		}
		if sites[i].Population != sites[j].Population {
			return sites[i].Population > sites[j].Population
		}
		return sites[i].LocationID < sites[j].LocationID
	})
}

// dedupeSites keeps the first site per location id, preserving order.
func dedupeSites(sites []*Site) []*Site {
	seen := make(map[string]struct{}, len(sites))
	out := sites[:0:0]
	for _, s := range sites {
		if _, ok := seen[s.LocationID]; ok {
			continue
		}
		seen[s.LocationID] = struct{}{}
		out = append(out, s)
	}
	return out
}

// applySizeHint drops sites smaller than the hint's minimum radius,
// unless that would drop everything.
func applySizeHint(sites []*Site, hint SizeHint) []*Site {
	minKm := hint.MinRadiusKm()
	if minKm <= 0 {
		return sites
	}
	kept := sites[:0:0]
	for _, s := range sites {
		if s.RadiusKm() >= minKm {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return sites
	}
	return kept
}
