package grammar

import (
	"regexp"
	"strings"
)

var (
	borderAdmins = []string{"country", "county", "state"}
	borderWords  = []string{"border", "boundary", "line"}

	borderFeatPat  = `([A-Z][a-z\-]{2,}(?: ?[A-Z][a-z\-]{2,}){0,2})`
	reBorderFeats  = regexp.MustCompile(borderFeatPat + `(?:(?: ?(-|/|and) ?)` + borderFeatPat + `)?`)
	reBorderFeat   = regexp.MustCompile(borderFeatPat)
	reBorderMarker = regexp.MustCompile(`(?i)(^border (of|between)|border$|(` +
		strings.Join(borderAdmins, "|") + `) (` + strings.Join(borderWords, "|") + `)$)`)
	reCountyWord  = regexp.MustCompile(`(?i)count(?:y|ies)`)
	reCountyTerm  = regexp.MustCompile(`(?i)\bcounty\b`)
	reBorderTail  = regexp.MustCompile(`(?i)((country|state) )?(border|boundary|line)$`)
)

// Border is a locality on the boundary between two named admin areas,
// like "Border of Kittitas and King Counties".
type Border struct {
	VerbatimText string   `json:"verbatim"`
	Features     []string `json:"features"`
}

func (b *Border) Kind() Kind             { return KindBorder }
func (b *Border) Verbatim() string       { return b.VerbatimText }
func (b *Border) Name() string           { return "Border of " + oxfordComma(b.Features) }
func (b *Border) FeatureNames() []string { return b.Features }
func (b *Border) Variants() []string     { return []string{b.Name()} }
func (b *Border) Specific() bool         { return false }
func (b *Border) Domain() Domain         { return DomainNone }
func (b *Border) FeatureKind() string    { return "border" }

// ParseBorder parses boundary descriptions between named features.
func ParseBorder(val string) (*Border, error) {
	features := borderingFeatures(val)
	if len(features) < 2 {
		return nil, notParseable("not a border", val)
	}
	return &Border{VerbatimText: val, Features: features}, nil
}

func isBorderString(val string) bool {
	return reBorderFeats.MatchString(val) && reBorderMarker.MatchString(val)
}

// borderingFeatures pulls the two bordered names out of a border
// phrase, restoring and pluralizing a shared "County" suffix.
func borderingFeatures(val string) []string {
	if !isBorderString(val) {
		return nil
	}
	stop := map[string]bool{}
	for _, w := range append(append([]string{}, borderAdmins...), borderWords...) {
		stop[w] = true
	}
	rest := val
	match := reBorderFeats.FindString(rest)
	var last string
	for match != "" && stop[strings.ToLower(match)] {
		rest = rest[strings.Index(rest, match)+len(match):]
		next := reBorderFeats.FindString(rest)
		if next != "" && next == last {
			return nil
		}
		last = match
		match = next
	}
	if match == "" {
		return nil
	}

	border := match
	if reCountyWord.MatchString(val) && !reCountyWord.MatchString(border) {
		border += " County"
	}
	if strings.Count(strings.ToLower(border), "county") == 1 {
		border = reCountyTerm.ReplaceAllString(border, "Counties")
	}
	border = strings.TrimSpace(reBorderTail.ReplaceAllString(border, ""))

	features := reBorderFeat.FindAllString(border, -1)
	if len(features) == 1 {
		features = strings.Split(features[0], "-")
	}
	if len(features) < 2 {
		return nil
	}
	for i, f := range features {
		features[i] = strings.TrimSpace(f)
	}
	return AppendFeatureType(features)
}
