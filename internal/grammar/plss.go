package grammar

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	rePLSSTownship = regexp.MustCompile(`(?i)\b(?:T(?:ownship)?\.? *)?(\d{1,3}) *([NS])\b\.?`)
	rePLSSRange    = regexp.MustCompile(`(?i)\b(?:R(?:ange)?\.? *)?(\d{1,3}) *([EW])\b\.?`)
	rePLSSSection  = regexp.MustCompile(`(?i)\b(?:s(?:ection)?|se?ct?s?)\.? *(\d{1,3})\b`)
	rePLSSBareSec  = regexp.MustCompile(`(?i)(?:^|[,;: ])(\d{1,3})(?:$|[,;: ])`)
	rePLSSQuarter  = regexp.MustCompile(`(?i)\b((?:(?:NE|SE|SW|NW|N|S|E|W)[, \-]*` +
		`(?:(?:cor\.?|corner|half|q(?:uarter)?|1?/[234])[, /\-]*(?:of *)?)?)+)\b`)
	rePLSSBadPfx   = regexp.MustCompile(`(?i)\b(?:loc|hole|hwy|quads?:?|us|#) ?\d+`)
	rePLSSMarker   = regexp.MustCompile(`(?i)\bT(?:ownship)?\.? *\d|\d *[NS]\b.*\d *[EW]\b`)
	rePLSSLongNum  = regexp.MustCompile(`\d{4,}`)
)

// PLSS is a Public Land Survey System reference, normalized to
// township "T4N", range "R5W", section "Sec. 30", and an ordered list
// of quarter-section codes.
type PLSS struct {
	VerbatimText string   `json:"verbatim"`
	Township     string   `json:"township"`
	Range        string   `json:"range"`
	Section      string   `json:"section"`
	Quarters     []string `json:"quarters,omitempty"`
}

func (p *PLSS) Kind() Kind       { return KindPLSS }
func (p *PLSS) Verbatim() string { return p.VerbatimText }

// Name renders the normalized reference, quarter sections first, in
// quotes so the reference never reads as a plain place name.
func (p *PLSS) Name() string {
	parts := append(append([]string{}, p.Quarters...), p.Section, p.Township, p.Range)
	return `"` + strings.Join(parts, " ") + `"`
}

func (p *PLSS) FeatureNames() []string { return []string{strings.Trim(p.Name(), `"`)} }
func (p *PLSS) Variants() []string     { return []string{p.Name()} }
func (p *PLSS) Specific() bool         { return true }
func (p *PLSS) Domain() Domain         { return DomainLand }
func (p *PLSS) FeatureKind() string    { return "plss" }

// ParsePLSS parses township/range/section notation, tolerating
// abbreviation and prefix noise. Township, range, and section are all
// required; quarter sections are optional.
func ParsePLSS(text string) (*PLSS, error) {
	if !rePLSSMarker.MatchString(text) {
		return nil, notParseable("not PLSS", text)
	}
	work := rePLSSBadPfx.ReplaceAllString(text, "")
	if rePLSSLongNum.MatchString(work) {
		return nil, notParseable("number too long for PLSS", text)
	}

	p := &PLSS{VerbatimText: text}

	tm := rePLSSTownship.FindStringSubmatch(work)
	if tm == nil {
		return nil, notParseable("township not found", text)
	}
	p.Township = "T" + tm[1] + strings.ToUpper(tm[2])

	rm := rePLSSRange.FindStringSubmatch(work)
	if rm == nil {
		return nil, notParseable("range not found", text)
	}
	p.Range = "R" + rm[1] + strings.ToUpper(rm[2])

	sec := findSection(work, tm[0], rm[0])
	if sec == "" {
		return nil, notParseable("section not found", text)
	}
	p.Section = "Sec. " + sec

	p.Quarters = findQuarters(work, tm[0], rm[0])

	if !fullyConsumed(work, tm[0], rm[0]) {
		return nil, notParseable("trailing text", text)
	}
	return p, nil
}

// fullyConsumed verifies nothing but punctuation and linking words
// remains once the reference components are removed, so a PLSS string
// never swallows neighboring place names.
func fullyConsumed(work, twpMatch, rngMatch string) bool {
	rest := strings.Replace(work, twpMatch, " ", 1)
	rest = strings.Replace(rest, rngMatch, " ", 1)
	rest = rePLSSSection.ReplaceAllString(rest, " ")
	rest = rePLSSQuarter.ReplaceAllString(rest, " ")
	rest = rePLSSBareSec.ReplaceAllString(rest, " ")
	for _, w := range strings.Fields(rest) {
		switch strings.ToLower(strings.Trim(w, ",;:.()/-")) {
		case "", "of", "the", "in", "and":
		default:
			return false
		}
	}
	return true
}

// findSection locates the section number, preferring an explicit
// "Sec." marker and falling back to a bare number that is not part of
// the township or range.
func findSection(work, twpMatch, rngMatch string) string {
	if m := rePLSSSection.FindStringSubmatch(work); m != nil {
		return m[1]
	}
	stripped := strings.Replace(work, twpMatch, " ", 1)
	stripped = strings.Replace(stripped, rngMatch, " ", 1)
	if m := rePLSSBareSec.FindStringSubmatch(stripped); m != nil {
		return m[1]
	}
	return ""
}

// findQuarters extracts quarter-section codes like "NW SE", reading
// halves as N2/S2/E2/W2.
func findQuarters(work, twpMatch, rngMatch string) []string {
	stripped := strings.Replace(work, twpMatch, " ; ", 1)
	stripped = strings.Replace(stripped, rngMatch, " ; ", 1)
	stripped = rePLSSSection.ReplaceAllString(stripped, " ; ")

	m := rePLSSQuarter.FindString(stripped)
	if m == "" {
		return nil
	}
	cleaned := strings.ToUpper(m)
	for _, r := range []struct{ find, repl string }{
		{",", ""}, {"QUARTER", ""}, {"CORNER", ""}, {"COR", ""},
		{"HALF", "2"}, {"1/4", ""}, {"1/", ""}, {"/2", "2"},
		{"/3", "3"}, {"/4", ""}, {"OF", ""}, {"Q", ""}, {".", ""},
		{"-", " "},
	} {
		cleaned = strings.ReplaceAll(cleaned, r.find, r.repl)
	}
	if strings.Trim(cleaned, "NEWS23 ") != "" {
		return nil
	}
	var quarters []string
	for _, q := range strings.Fields(cleaned) {
		quarters = append(quarters, q)
	}
	return quarters
}

// FormatPLSS renders the components the way Name does, for callers
// holding the parts rather than a node.
func FormatPLSS(township, rng, section string, quarters []string) string {
	p := PLSS{Township: township, Range: rng, Section: section, Quarters: quarters}
	return p.Name()
}

// PLSSDivision splits a normalized township or range string into its
// numeric and hemisphere parts: "T4N" yields 4 and "N".
func PLSSDivision(val string) (int, string, error) {
	m := regexp.MustCompile(`^[TR](\d{1,3})([NSEW])$`).FindStringSubmatch(val)
	if m == nil {
		return 0, "", notParseable("malformed division", val)
	}
	var n int
	if _, err := fmt.Sscanf(m[1], "%d", &n); err != nil {
		return 0, "", notParseable("malformed division", val)
	}
	return n, m[2], nil
}
