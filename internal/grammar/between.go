package grammar

import (
	"regexp"
	"strings"
)

var (
	reBetweenDelim  = regexp.MustCompile(`(?i)\b(?:between|from)\b(?: the )?`)
	reBetweenSplit  = regexp.MustCompile(`(?i)(?:\band\b|\bor\b|\bto\b|&|\+|,|;)(?: the )?`)
	reCommonDelims  = regexp.MustCompile(`[,;:]`)
)

// Between is a locality lying between two or more named features. It
// carries only the termini; the resolution engine combines their
// geometries.
type Between struct {
	VerbatimText string   `json:"verbatim"`
	Features     []string `json:"features"`
}

func (b *Between) Kind() Kind             { return KindBetween }
func (b *Between) Verbatim() string       { return b.VerbatimText }
func (b *Between) Name() string           { return "Between " + oxfordComma(b.Features) }
func (b *Between) FeatureNames() []string { return b.Features }
func (b *Between) Variants() []string     { return []string{b.Name()} }
func (b *Between) Specific() bool         { return true }
func (b *Between) Domain() Domain         { return DomainNone }
func (b *Between) FeatureKind() string    { return "" }

// ParseBetween parses "between X and Y" phrases. Each terminus must
// itself read as a feature name.
func ParseBetween(text string) (*Between, error) {
	loc := reBetweenDelim.FindStringIndex(text)
	if loc == nil {
		return nil, notParseable("no between connective", text)
	}
	pre := text[:loc[0]]
	if reCommonDelims.MatchString(pre) {
		return nil, notParseable("too complex", text)
	}
	rest := strings.TrimRight(text[loc[1]:], "() ")

	var features []string
	for _, part := range reBetweenSplit.Split(rest, -1) {
		part = strings.TrimSpace(part)
		if part != "" {
			features = append(features, part)
		}
	}
	if len(features) < 2 {
		return nil, notParseable("fewer than two termini", text)
	}
	for _, f := range features {
		if _, err := ParseFeature(f, false); err != nil {
			return nil, notParseable("terminus is not a feature", f)
		}
	}
	return &Between{
		VerbatimText: text,
		Features:     AppendFeatureType(features),
	}, nil
}
