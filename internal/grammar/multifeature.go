package grammar

import (
	"regexp"
	"strings"
)

var (
	reHardDelims   = regexp.MustCompile(`[:;,|]`)
	reParenthetic  = regexp.MustCompile(`\(.*?\)|\[.*?\]`)
	reNonWord      = regexp.MustCompile(`\W+`)
	reAndLike      = regexp.MustCompile(`(?i)\b(?:and|or|y|&|\+)\b`)
	reOfSplit      = regexp.MustCompile(`(?i)\bof\b`)
	reInitials     = regexp.MustCompile(`^[A-Z]([. ]+[A-Z])*[. ]*$`)
)

// MultiFeature holds alternative readings of a phrase that may name
// one feature several ways or several features at once. Each group in
// Groups is one coherent reading.
type MultiFeature struct {
	VerbatimText string   `json:"verbatim"`
	Groups       [][]Node `json:"groups"`
	IsSpecific   bool     `json:"specific"`
}

func (m *MultiFeature) Kind() Kind       { return KindMultiFeature }
func (m *MultiFeature) Verbatim() string { return m.VerbatimText }

// UniqueMatch reports whether the phrase resolved to exactly one
// reading of one feature.
func (m *MultiFeature) UniqueMatch() bool {
	return len(m.Groups) == 1 && len(m.Groups[0]) == 1
}

func (m *MultiFeature) Name() string {
	if m.UniqueMatch() {
		return m.Groups[0][0].Name()
	}
	if len(m.Groups) > 0 {
		last := m.Groups[len(m.Groups)-1]
		names := make([]string, 0, len(last))
		for _, f := range last {
			names = append(names, strings.Trim(f.Name(), `"`))
		}
		return oxfordComma(names)
	}
	return m.VerbatimText
}

func (m *MultiFeature) FeatureNames() []string {
	var names []string
	for _, group := range m.Groups {
		for _, f := range group {
			names = append(names, f.FeatureNames()...)
		}
	}
	return names
}

func (m *MultiFeature) Variants() []string {
	if m.UniqueMatch() {
		return m.Groups[0][0].Variants()
	}
	var variants []string
	for _, group := range m.Groups {
		for _, f := range group {
			variants = append(variants, f.Name())
		}
	}
	return variants
}

func (m *MultiFeature) Specific() bool { return m.IsSpecific }

func (m *MultiFeature) Domain() Domain {
	if m.UniqueMatch() {
		return m.Groups[0][0].Domain()
	}
	return DomainNone
}

func (m *MultiFeature) FeatureKind() string {
	if m.UniqueMatch() {
		return m.Groups[0][0].FeatureKind()
	}
	return ""
}

// ParseMultiFeature parses a phrase that may contain one or more
// feature names, collecting alternative readings: the phrase as a
// single name, parenthetical synonyms, mushed-together repeats, and
// conjunction splits.
func ParseMultiFeature(val string, allowGeneric bool) (*MultiFeature, error) {
	val = strings.TrimSpace(val)
	if reHardDelims.MatchString(val) && !IsModifiedFeature(val) {
		return nil, notParseable("delimited", val)
	}
	m := &MultiFeature{VerbatimText: val}

	if group, err := m.parseGroup([]string{val}, allowGeneric); err == nil {
		m.Groups = append(m.Groups, group)
	}

	// Splitting on "of" breaks modified names like "S half of Lake
	// Chelan", so stop with the unique reading in that case.
	if m.UniqueMatch() && m.Groups[0][0].Kind() == KindModified {
		return m, nil
	}

	if alts := m.splitParentheticals(val, allowGeneric); len(alts) > 1 {
		m.Groups = append(m.Groups, alts...)
	} else if group := m.splitRepeats(val, allowGeneric); len(group) > 1 {
		m.Groups = append(m.Groups, group)
	} else if group := m.splitConjunction(val, allowGeneric); len(group) > 1 {
		m.Groups = append(m.Groups, group)
	}

	if len(m.Groups) == 0 {
		return nil, notParseable("invalid multifeature", val)
	}
	return m, nil
}

// parseGroup parses each name with the ladder of parsers that can
// stand as a direction reference point.
func (m *MultiFeature) parseGroup(vals []string, allowGeneric bool) ([]Node, error) {
	var features []Node
	for _, val := range vals {
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		node := parseReferenceFeature(val, allowGeneric)
		if node == nil {
			// Initials are quietly dropped; anything else fails the
			// whole group.
			if reInitials.MatchString(val) {
				continue
			}
			return nil, notParseable("invalid feature", val)
		}
		features = append(features, node)
	}
	if len(features) == 0 {
		return nil, notParseable("invalid features", strings.Join(vals, "; "))
	}
	for _, f := range features {
		if f.Specific() {
			m.IsSpecific = true
			break
		}
	}
	return features, nil
}

// parseReferenceFeature tries the parsers usable as a reference point
// for a direction, compound constructs first.
func parseReferenceFeature(val string, allowGeneric bool) Node {
	if node, err := ParseOffshore(val); err == nil {
		return node
	}
	if node, err := ParseJunction(val); err == nil {
		return node
	}
	if node, err := ParseBorder(val); err == nil {
		return node
	}
	if node, err := ParseModified(val); err == nil {
		return node
	}
	if node, err := ParseFeature(val, allowGeneric); err == nil {
		return node
	}
	return nil
}

// splitParentheticals reads "Name (Synonym)" as equivalent readings of
// one feature, each returned as its own group.
func (m *MultiFeature) splitParentheticals(val string, allowGeneric bool) [][]Node {
	parens := reParenthetic.FindAllString(val, -1)
	if len(parens) != 1 {
		return nil
	}
	halves := strings.SplitN(val, parens[0], 2)
	before := strings.TrimSpace(halves[0])
	after := strings.TrimSpace(halves[1])
	inner := strings.Trim(parens[0], "()[]= ")

	var names []string
	switch {
	case before != "" && after != "":
		if strings.Contains(parens[0], "=") {
			// Keep both names when explicitly synonymous.
			names = []string{before + " " + after, inner + " " + after}
		} else {
			names = []string{before + " " + after}
		}
	case before != "":
		names = []string{before, inner}
	default:
		return nil
	}

	group, err := m.parseGroup(names, allowGeneric)
	if err != nil {
		return nil
	}
	groups := make([][]Node, 0, len(group))
	for _, f := range group {
		groups = append(groups, []Node{f})
	}
	return groups
}

// splitRepeats splits strings where the same feature is written twice
// back to back, like "Plummers Island Plummer's Island".
func (m *MultiFeature) splitRepeats(val string, allowGeneric bool) []Node {
	words := reNonWord.Split(val, -1)
	if len(words) < 2 {
		return nil
	}
	counts := map[string]int{}
	for _, w := range words {
		counts[strings.ToLower(w)]++
	}
	var kinds []string
	total := 0
	for w, n := range counts {
		if allFeatures[w] {
			kinds = append(kinds, w)
			total += n
		}
	}
	ratio := float64(total) / float64(len(words))
	if ratio < 0.4 || ratio > 0.6 {
		return nil
	}

	re := regexp.MustCompile(`(?i)\b(` + strings.Join(kinds, "|") + `)\b`)
	var names []string
	var name strings.Builder
	last := 0
	for _, loc := range re.FindAllStringIndex(val, -1) {
		name.WriteString(val[last:loc[1]])
		if strings.TrimSpace(name.String()) != "" && loc[0] > 0 {
			names = append(names, strings.TrimSpace(name.String()))
			name.Reset()
		}
		last = loc[1]
	}
	if rest := strings.TrimSpace(val[last:]); rest != "" {
		names = append(names, rest)
	}
	if len(names) < 2 {
		return nil
	}
	group, err := m.parseGroup(names, allowGeneric)
	if err != nil || len(group) < 2 {
		return nil
	}
	return group
}

// splitConjunction splits a name at and-like conjunctions, or at "of"
// when both halves stand alone.
func (m *MultiFeature) splitConjunction(val string, allowGeneric bool) []Node {
	// Conjunctions inside borders and junctions are structural.
	if _, err := ParseBorder(val); err == nil {
		return nil
	}
	if _, err := ParseJunction(val); err == nil {
		return nil
	}

	names := reAndLike.Split(val, -1)
	if len(names) == 1 {
		names = reOfSplit.Split(val, -1)
		for i, n := range names {
			names[i] = strings.TrimSpace(n)
		}
		if len(names) != 2 || names[0] == "" || names[1] == "" ||
			!strings.Contains(names[1], " ") || endsWithOfWord(names[0]) {
			return nil
		}
	}
	for i, n := range names {
		names[i] = strings.TrimSpace(n)
		if names[i] == "" {
			return nil
		}
	}
	group, err := m.parseGroup(AppendFeatureType(names), allowGeneric)
	if err != nil || len(group) < 2 {
		return nil
	}
	return group
}

func endsWithOfWord(s string) bool {
	w := lastWord(s)
	for _, of := range ofWords {
		if w == of {
			return true
		}
	}
	return false
}
