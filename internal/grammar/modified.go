package grammar

import (
	"regexp"
	"strings"
)

var vicinityWords = strings.Join(ofWords, "|")

const dirWordPat = `(?:N(?:orth)?|S(?:outh)?|E(?:ast)?|W(?:est)?)`

var (
	dirRunPat = dirWordPat + `(?:[- .]*` + dirWordPat + `)?(?:ern(?:most)?)?`
	modTail   = `(?: ?(?:` + vicinityWords + `)(?: of)? ?)?`
	featWords = `(?:[A-Z][\w'.-]*(?:[ -][\w'.-]+){0,5})`

	reModifiedForms = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^` + dirRunPat + modTail + ` ` + featWords + `$`),
		regexp.MustCompile(`(?i)^` + featWords + `, ` + dirRunPat + modTail + `$`),
		regexp.MustCompile(`(?i)^` + featWords + ` \(` + dirRunPat + modTail + `\)$`),
		regexp.MustCompile(`(?i)^(?:` + vicinityWords + `) ` + featWords + `$`),
		regexp.MustCompile(`(?i)^` + featWords + ` \((?:` + vicinityWords + `)\)$`),
		regexp.MustCompile(`(?i)^` + featWords + ` (?:and )?(?:area|surroundings|vicinity)$`),
	}

	reDirString = regexp.MustCompile(`(?i)\b` + dirRunPat +
		`(?: (?:` + vicinityWords + `)(?: (?:of|to))?)?\b`)
	reVicinityHead = regexp.MustCompile(`(?i)^((?:` + vicinityWords + `)(?: (?:` +
		vicinityWords + `))*)( of)?\b`)
	reVicinityTail = regexp.MustCompile(`(?i)\b(and )?(area|surroundings|vicinity)$`)

	reAdjForm   = regexp.MustCompile(`(?i)\b((?:north|south|east|west)ern(?:most)?|central)\b`)
	reAdjOfForm = regexp.MustCompile(`(?i)\b(?:north|south|east|west)ern(?:most)? (?:` +
		vicinityWords + `)( of\b|$)`)
	reLongForm   = regexp.MustCompile(`(?i)\b((?:north|south|east|west){1,2}(?:ern(?:most)?)?|central)\b`)
	reDelimForm  = regexp.MustCompile(`(?i), (north|south|east|west)(ern(most)?)?$`)
	reDirWord    = regexp.MustCompile(`(?i)\b` + dirWordPat + `\b`)
	reExtrinsic  = regexp.MustCompile(`(?i)(^[NESW]{1,3}\b|(?:north|south|east|west){1,2}ern(?:most)?|\bof\b|\bfrom\b|, ` + dirWordPat + `{1,3}\b|\b(?:` + vicinityWords + `)\b)`)
	reSingleDash = regexp.MustCompile(`\s*-\s*`)
)

// Modified is a feature name qualified by a directional or vicinity
// modifier, like "northern Maine" or "Lake Chelan area".
type Modified struct {
	VerbatimText string `json:"verbatim"`
	Feature      string `json:"feature"`
	// Modifier is a compass abbreviation or one of the vicinity
	// words center/inner/lower/near/outer/upper. Empty when the
	// modifier turned out to be vacuous.
	Modifier string `json:"modifier,omitempty"`
	// Surface form flags, used to re-render the name in the style of
	// the original string.
	LongForm  bool `json:"long,omitempty"`
	AdjForm   bool `json:"adj,omitempty"`
	Delimited bool `json:"delimited,omitempty"`
	Intrinsic bool `json:"intrinsic,omitempty"`

	FeatureDom   Domain `json:"domain,omitempty"`
	FeatureClass string `json:"feature_kind,omitempty"`
	IsSpecific   bool   `json:"specific"`
}

func (m *Modified) Kind() Kind             { return KindModified }
func (m *Modified) Verbatim() string       { return m.VerbatimText }
func (m *Modified) FeatureNames() []string { return []string{m.Feature} }
func (m *Modified) Specific() bool         { return m.IsSpecific }
func (m *Modified) Domain() Domain         { return m.FeatureDom }
func (m *Modified) FeatureKind() string    { return m.FeatureClass }

// Name renders the modifier in the same style the source used.
func (m *Modified) Name() string {
	if m.Modifier == "" {
		return m.Feature
	}
	switch {
	case m.AdjForm && m.Intrinsic:
		return ucfirst(expandDirection(m.Modifier, true)) + " " + m.Feature
	case m.LongForm && m.Intrinsic:
		return ucfirst(expandDirection(m.Modifier, false)) + " " + m.Feature
	case m.Modifier == "center" || m.Modifier == "near":
		return m.Feature + " (" + m.Modifier + ")"
	default:
		return m.Modifier + " " + m.Feature
	}
}

// Variants lists lookup candidates for the modified name, ordered by
// how the source spelled the modifier.
func (m *Modified) Variants() []string {
	if m.Modifier == "" {
		return []string{m.Feature}
	}
	var variants []string
	if !strings.Contains(m.Feature, "{") {
		long := expandDirection(m.Modifier, false)
		adj := expandDirection(m.Modifier, true)
		mods := []string{"", long, adj}
		if m.AdjForm {
			mods = []string{adj, long, ""}
		} else if m.LongForm {
			mods = []string{long, "", adj}
		}
		seen := map[string]bool{}
		for _, mod := range mods {
			mod = ucfirst(mod)
			if seen[mod] {
				continue
			}
			seen[mod] = true
			variants = append(variants, strings.TrimSpace(mod+" "+m.Feature))
		}
	}
	// The verbatim form goes first when it is already in the list.
	for i, v := range variants {
		if v == m.VerbatimText {
			variants = append([]string{v}, append(variants[:i], variants[i+1:]...)...)
			return variants
		}
	}
	if m.VerbatimText == titleCase(strings.ToLower(m.VerbatimText)) {
		variants = append(variants, m.VerbatimText)
	}
	return variants
}

// IsModifiedFeature reports whether a string fits any of the
// direction-plus-feature surface forms.
func IsModifiedFeature(val string) bool {
	val = strings.Trim(val, ",;.:")
	longest := 0
	for _, w := range strings.Split(val, " ") {
		if len(w) > longest {
			longest = len(w)
		}
	}
	if longest <= 2 {
		return false
	}
	for _, re := range reModifiedForms {
		if re.MatchString(val) {
			return true
		}
	}
	return false
}

// ParseModified extracts a feature name plus its directional or
// vicinity modifier.
func ParseModified(val string) (*Modified, error) {
	val = strings.TrimSpace(val)
	m := &Modified{VerbatimText: val}

	// A bare compass direction refers to an unstated feature.
	if _, err := normalizeBearing(val); err == nil && reDirWord.MatchString(val) {
		val += " Feature"
	}

	// A single hyphen can stand in for a comma: "Maine - Northern".
	if !IsModifiedFeature(val) && strings.Count(val, "-") == 1 {
		val = reSingleDash.ReplaceAllString(val, ", ")
	}
	if !IsModifiedFeature(val) {
		return nil, notParseable("not a modified feature", val)
	}

	if IsGenericFeature(val) {
		// Generic names modify a feature named elsewhere in the
		// record, so note the placeholder and force the long
		// adjective rendering.
		val += " of Unspecified Feature"
		m.LongForm = true
		m.AdjForm = true
		m.Intrinsic = true
	} else {
		m.Delimited = isDelimitedModifier(val)
		m.LongForm = reLongForm.MatchString(val) && !reAdjOfForm.MatchString(val)
		m.AdjForm = reAdjForm.MatchString(val) && !reAdjOfForm.MatchString(val)
		m.Intrinsic = isIntrinsicDirection(val)
	}

	if err := m.extractDirection(val); err != nil {
		if err := m.extractVicinity(val); err != nil {
			return nil, notParseable("modifier not found", val)
		}
	}
	m.Feature = strings.ReplaceAll(m.Feature, "Unspecified Feature", "{feature}")
	return m, nil
}

func (m *Modified) extractDirection(val string) error {
	dirString := reDirString.FindString(val)
	if dirString == "" {
		return notParseable("direction not found", val)
	}
	first := strings.ToLower(strings.Split(dirString, " ")[0])
	for _, repl := range []string{"orth", "outh", "ast", "est", "ern", "most"} {
		first = strings.ReplaceAll(first, repl, "")
	}
	var letters []rune
	for _, r := range first {
		if r >= 'a' && r <= 'z' {
			letters = append(letters, r)
		}
	}
	mod := strings.ToUpper(string(letters))
	if !validBearings[mod] {
		return notParseable("invalid modifier", mod)
	}
	feature, err := m.extractFeature(val, dirString)
	if err != nil {
		return err
	}
	m.Modifier = mod
	m.Feature = feature
	return nil
}

func (m *Modified) extractVicinity(val string) error {
	vicinity := reVicinityHead.FindString(val)
	if vicinity == "" {
		vicinity = reVicinityTail.FindString(val)
	}
	if vicinity == "" {
		return notParseable("vicinity not found", val)
	}
	word := strings.ToLower(strings.TrimSpace(
		regexp.MustCompile(`(?i)\b(and|of)\b`).ReplaceAllString(vicinity, "")))

	feature, err := m.extractFeature(val, vicinity)
	if err != nil {
		return err
	}
	m.Feature = feature
	switch word {
	case "center", "central", "middle":
		m.Modifier = "center"
	case "inner", "lower", "outer", "upper":
		m.Modifier = word
	case "area", "near", "surroundings", "vicinity":
		m.Modifier = "near"
	default:
		m.Modifier = ""
	}
	return nil
}

// extractFeature removes the modifier substring and classifies the
// remaining feature name.
func (m *Modified) extractFeature(val, modString string) (string, error) {
	parts := strings.Split(val, modString)
	var kept []string
	for _, p := range parts {
		if strings.Trim(p, ",;() ") != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) > 1 {
		return "", notParseable("modifier in middle of string", val)
	}
	if len(kept) == 0 {
		return "", notParseable("string is empty", val)
	}
	feature := strings.Join(strings.Fields(strings.Trim(kept[0], ",;() ")), " ")
	parsed, err := ParseFeature(feature, true)
	if err != nil {
		return "", err
	}
	m.FeatureDom = parsed.FeatureDom
	m.FeatureClass = parsed.FeatureClass
	m.IsSpecific = parsed.IsSpecific
	if strings.Contains(parsed.FeatureName, "{") {
		return parsed.FeatureName, nil
	}
	return feature, nil
}

// isIntrinsicDirection reports whether the compass word reads as part
// of the name itself, like "North Carolina".
func isIntrinsicDirection(val string) bool {
	if !reDirWord.MatchString(val) {
		return false
	}
	return !reExtrinsic.MatchString(val)
}

func isDelimitedModifier(val string) bool {
	return !strings.Contains(val, ",") || reDelimForm.MatchString(val)
}

// expandDirection spells out a compass abbreviation, optionally in
// adjective form: "NW" becomes "northwest" or "northwestern".
func expandDirection(mod string, adj bool) string {
	dirs := map[byte]string{'N': "north", 'S': "south", 'E': "east", 'W': "west"}
	var b strings.Builder
	isCompass := true
	for i := 0; i < len(mod); i++ {
		word, ok := dirs[mod[i]]
		if !ok {
			isCompass = false
			break
		}
		b.WriteString(word)
	}
	if !isCompass {
		if mod == "center" {
			return "central"
		}
		return mod
	}
	out := b.String()
	if adj {
		out += "ern"
	}
	return out
}

var reSpelledDirection = regexp.MustCompile(`(?i)\b(?:north|south|east|west)+(?:ern)?\b`)

// AbbreviateDirection compresses spelled-out compass words to their
// letter forms, so "Northwestern Kittitas" and "NW Kittitas" compare
// equal.
func AbbreviateDirection(name string) string {
	return reSpelledDirection.ReplaceAllStringFunc(name, func(m string) string {
		m = strings.ToLower(m)
		m = strings.TrimSuffix(m, "ern")
		return strings.NewReplacer(
			"north", "N", "south", "S", "east", "E", "west", "W",
		).Replace(m)
	})
}
