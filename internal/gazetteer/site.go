package gazetteer

import (
	"sort"
	"strings"

	"github.com/collections-lab/georef-cli/internal/geometry"
)

// Site is one gazetteer match for a feature name. Sites are produced
// fresh per resolution attempt and never mutated afterwards except for
// the Field and Filter annotations.
type Site struct {
	LocationID    string  `json:"location_id"`
	Name          string  `json:"name"`
	SiteClass     string  `json:"site_class,omitempty"`
	SiteKind      string  `json:"site_kind,omitempty"`
	ContinentCode string  `json:"continent_code,omitempty"`
	CountryCode   string  `json:"country_code,omitempty"`
	Admin1        string  `json:"admin1,omitempty"`
	Admin2        string  `json:"admin2,omitempty"`
	Population    int64   `json:"population,omitempty"`
	Synonyms      []string `json:"synonyms,omitempty"`

	// Field names the locality field or parsed phrase this site
	// matched; set by the match pipeline, not the backends.
	Field string `json:"field,omitempty"`

	Geometry *geometry.Shape `json:"-"`

	// RelatedSites holds the intermediate shapes of composite matches,
	// most specific last (PLSS quarter chains, "between" termini).
	RelatedSites []*Site `json:"related_sites,omitempty"`

	// Sources lists provenance strings for the geometry.
	Sources []string `json:"sources,omitempty"`

	// Filter scores each compared attribute: 1 matched, 0 not
	// compared or blank, -1 contradicted. The map doubles as the
	// dedupe key and the raw material for explanations.
	Filter map[string]int `json:"filter,omitempty"`
}

// RadiusKm returns the site's extent radius. Point geometries fall
// back to the nominal radius for the feature code.
func (s *Site) RadiusKm() float64 {
	if s.Geometry != nil && !s.Geometry.IsPoint() {
		return s.Geometry.RadiusKm()
	}
	return SizeIndexKm(s.SiteKind)
}

// IsMarine reports whether the site names open water.
func (s *Site) IsMarine() bool {
	return IsMarineCode(s.SiteKind)
}

// IsAdmin reports whether the site is an administrative division or a
// country.
func (s *Site) IsAdmin() bool {
	return IsAdminCode(s.SiteKind) || IsCountryCode(s.SiteKind)
}

// IsUndersea reports whether the site is an undersea feature.
func (s *Site) IsUndersea() bool {
	return IsUnderseaCode(s.SiteKind)
}

// Names returns the site's primary name followed by its synonyms.
func (s *Site) Names() []string {
	names := make([]string, 0, len(s.Synonyms)+1)
	if s.Name != "" {
		names = append(names, s.Name)
	}
	return append(names, s.Synonyms...)
}

// HasName reports whether any of the given names matches the site's
// name or synonyms after standardization. Token order is ignored, so
// "Lake Andrew" matches "Andrew Lake".
func (s *Site) HasName(names ...string) bool {
	mine := map[string]struct{}{}
	for _, n := range s.Names() {
		if k := SortedNameKey(n); k != "" {
			mine[k] = struct{}{}
		}
	}
	for _, n := range names {
		if k := SortedNameKey(n); k != "" {
			if _, ok := mine[k]; ok {
				return true
			}
		}
	}
	return false
}

// CompareNames records a name comparison in the filter.
func (s *Site) CompareNames(names ...string) int {
	score := -1
	if s.HasName(names...) {
		score = 1
	}
	s.setFilter("name", score)
	return score
}

// CompareAttr records an attribute comparison in the filter. Blank
// values on either side score 0; a value present in both lists scores
// 1; disjoint non-empty lists score -1.
func (s *Site) CompareAttr(attr string, mine, theirs []string) int {
	mine = nonEmpty(mine)
	theirs = nonEmpty(theirs)
	score := 0
	if len(mine) > 0 && len(theirs) > 0 {
		score = -1
		set := make(map[string]struct{}, len(mine))
		for _, v := range mine {
			set[strings.ToUpper(strings.TrimSpace(v))] = struct{}{}
		}
		for _, v := range theirs {
			if _, ok := set[strings.ToUpper(strings.TrimSpace(v))]; ok {
				score = 1
				break
			}
		}
	}
	s.setFilter(attr, score)
	return score
}

// Contradicted reports whether any filter attribute scored -1.
func (s *Site) Contradicted() bool {
	for _, score := range s.Filter {
		if score < 0 {
			return true
		}
	}
	return false
}

// FilterKey renders the filter map as a stable dedupe key.
func (s *Site) FilterKey() string {
	keys := make([]string, 0, len(s.Filter))
	for k := range s.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(k)
		b.WriteByte('=')
		switch s.Filter[k] {
		case 1:
			b.WriteByte('+')
		case -1:
			b.WriteByte('-')
		default:
			b.WriteByte('0')
		}
	}
	return b.String()
}

func (s *Site) setFilter(attr string, score int) {
	if s.Filter == nil {
		s.Filter = map[string]int{}
	}
	s.Filter[attr] = score
}

// Clone returns a copy sharing the geometry but owning its own filter
// and related-site slices, so per-resolution annotation never leaks
// between records.
func (s *Site) Clone() *Site {
	c := *s
	c.Synonyms = append([]string(nil), s.Synonyms...)
	c.Sources = append([]string(nil), s.Sources...)
	c.RelatedSites = append([]*Site(nil), s.RelatedSites...)
	c.Filter = make(map[string]int, len(s.Filter))
	for k, v := range s.Filter {
		c.Filter[k] = v
	}
	return &c
}

// Subsection restricts the site to the quadrant of its geometry named
// by a compass direction, keeping the original outline in
// RelatedSites. The site is returned unchanged when it has no
// geometry or the direction is unrecognized.
func (s *Site) Subsection(direction string) *Site {
	if s.Geometry == nil {
		return s
	}
	minLat, minLng, maxLat, maxLng := s.Geometry.LatLngBounds()
	origMinLat, origMinLng, origMaxLat, origMaxLng := minLat, minLng, maxLat, maxLng
	midLat := (minLat + maxLat) / 2
	midLng := (minLng + maxLng) / 2
	dir := strings.ToUpper(strings.TrimSpace(direction))
	switch {
	case strings.HasPrefix(dir, "N"):
		minLat = midLat
	case strings.HasPrefix(dir, "S"):
		maxLat = midLat
	}
	switch {
	case strings.HasSuffix(dir, "E"):
		minLng = midLng
	case strings.HasSuffix(dir, "W"):
		maxLng = midLng
	}
	if minLat == origMinLat && minLng == origMinLng &&
		maxLat == origMaxLat && maxLng == origMaxLng {
		return s
	}
	box, err := geometry.NewBox(minLat, minLng, maxLat, maxLng)
	if err != nil {
		return s
	}
	sub := s.Clone()
	sub.RelatedSites = append(sub.RelatedSites, s)
	sub.Geometry = box
	sub.LocationID = s.LocationID + "_" + dir
	sub.Name = dir + " " + s.Name
	sub.setFilter("name", 1)
	return sub
}

func nonEmpty(vals []string) []string {
	out := vals[:0:0]
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
