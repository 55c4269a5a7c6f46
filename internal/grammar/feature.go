package grammar

import (
	"regexp"
	"strings"
)

// landFeatures maps terrestrial feature-type words to whether a name
// carrying that word usually denotes a specific place.
var landFeatures = map[string]bool{
	"atoll": true, "bar": true, "borough": true, "butte": true,
	"caldera": true, "camp": true, "canal": true, "cape": true,
	"city": true, "cliff": true, "county": true, "crater": true,
	"creek": true, "department": true, "district": true,
	"escarpment": true, "forest": true, "harbor": true, "hill": true,
	"island": true, "islands": false, "islet": true, "lake": true,
	"maar": true, "meadow": true, "mesa": true, "mine": true,
	"mount": true, "mountain": true, "mountains": true, "mouth": true,
	"municipality": true, "pass": true, "peninsula": true,
	"plateau": true, "province": true, "preserve": true, "point": true,
	"reserve": true, "ridge": true, "river": true, "rock": true,
	"spring": true, "state": true, "stream": true, "sub-province": true,
	"town": true, "tributary": true, "valley": true, "village": true,
	"volcano": true, "well": true,
}

var marineFeatures = map[string]bool{
	"archipelago": false, "bay": true, "beach": true, "channel": true,
	"lagoon": true, "gulf": false, "ocean": false, "passage": true,
	"playa": true, "reef": true, "sea": false, "shore": true,
	"sound": true, "strait": false,
}

var otherFeatures = map[string]bool{
	"core": false, "bridge": true, "dredge": false, "map": true,
	"quad": true, "quadrangle": true, "road": true, "route": true,
	"station": true, "trail": true,
}

// allFeatures is every recognized feature-type word plus the literal
// placeholder "feature".
var allFeatures = func() map[string]bool {
	m := map[string]bool{"feature": true}
	for _, src := range []map[string]bool{landFeatures, marineFeatures, otherFeatures} {
		for k := range src {
			m[k] = true
		}
	}
	return m
}()

// ofWords are generic positional terms that can prefix a feature name
// ("coast of Maine") without naming a feature themselves.
var ofWords = []string{
	"area", "bank", "base", "bottom", "center", "central", "channel",
	"coast", "corner", "crest", "edge", "end", "entrance",
	"escarpment", "exit", "face", "head", "inner", "inside",
	"junction", "lower", "middle", "near", "outer", "part",
	"pinnacle", "point", "portion", "quadrant", "ridge", "rim",
	"section", "side", "shore", "slope", "spur", "summit",
	"surroundings", "top", "tributary", "upper", "vicinity", "wall",
}

var (
	reGenericFeature = regexp.MustCompile(
		`(?i)^(?:(?:N(?:orth)?|S(?:outh)?|E(?:ast)?|W(?:est)?)` +
			`(?:(?:N(?:orth)?|S(?:outh)?|E(?:ast)?|W(?:est)?)){0,2}(?:ern)? )?(` +
			strings.Join(ofWords, "|") + `)$`)
	reFeatureShape = regexp.MustCompile(
		`^(?:U[. ]*[KS][. ]*|[Tt]he )?` +
			`(?:[MS]t\.? )?(?:O'|Ma?c)?[A-Za-z][A-Za-z'.-]*` +
			`(?:[ -][A-Za-z][A-Za-z'.-]*){0,5}(?: (?:# ?)?\d+)?$`)
	reLowerPrefix  = regexp.MustCompile(`^[a-z]{1,3} [A-Z]`)
	reLowerSuffix  = regexp.MustCompile(`\b[a-z]{1,3}$`)
	rePrepEnds     = regexp.MustCompile(`(?i)(^(?:a|aux?|d[aeo]s?|del|of)\b|\b(?:a|aux?|d[aeo]s?|del|of)$)`)
	reNumberedName = regexp.MustCompile(`(?:No\.? |Num(?:ber|\.)? |# ?)\d+$`)
	reConjunction  = regexp.MustCompile(`(?i)\b(?:and|or|to|y|&|\+)\b`)
	reOfModifier   = regexp.MustCompile(`(?i)^(` + strings.Join(ofWords, "|") + `) of\b`)
	reBadFirstLast = regexp.MustCompile(
		`(?i)(^(?:approach(?:es)?|entrances?|and|at|by|in|from|of|or|the|to)\b|` +
			`\b(?:approach(?:es)?|entrances?|and|at|by|in|from|of|or|the|to)$)`)
)

// IsGenericFeature reports whether a name is purely generic, like
// "East Coast" or "summit".
func IsGenericFeature(val string) bool {
	return reGenericFeature.MatchString(strings.TrimSpace(val))
}

// Feature is a plain classified feature name.
type Feature struct {
	VerbatimText string   `json:"verbatim"`
	FeatureName  string   `json:"feature"`
	FeatureClass string   `json:"feature_kind,omitempty"`
	FeatureDom   Domain   `json:"domain,omitempty"`
	IsSpecific   bool     `json:"specific"`
	NameVariants []string `json:"variants,omitempty"`
}

func (f *Feature) Kind() Kind             { return KindFeature }
func (f *Feature) Verbatim() string       { return f.VerbatimText }
func (f *Feature) Name() string           { return f.FeatureName }
func (f *Feature) FeatureNames() []string { return []string{f.FeatureName} }
func (f *Feature) Specific() bool         { return f.IsSpecific }
func (f *Feature) Domain() Domain         { return f.FeatureDom }
func (f *Feature) FeatureKind() string    { return f.FeatureClass }

func (f *Feature) Variants() []string {
	if len(f.NameVariants) > 0 {
		return f.NameVariants
	}
	return []string{f.FeatureName}
}

// ParseFeature accepts proper-noun-like phrases and classifies them
// against the land/marine feature dictionaries. Purely generic names
// are rejected unless allowGeneric is set, in which case they become a
// {placeholder} mask for later expansion against sibling fields.
func ParseFeature(val string, allowGeneric bool) (*Feature, error) {
	val = strings.TrimSpace(val)
	f := &Feature{VerbatimText: val}

	// Conjunctions keep their lowercase form regardless of input case.
	val = reConjunction.ReplaceAllStringFunc(val, strings.ToLower)

	if strings.ContainsAny(val, "|:;,()[]") {
		return nil, notParseable("illegal characters", val)
	}
	if allowGeneric && allFeatures[strings.ToLower(val)] {
		f.FeatureName = placeholderMask(val)
		f.IsSpecific = false
		return f, nil
	}
	if IsGenericFeature(val) {
		return nil, notParseable("generic name", val)
	}
	if allFeatures[singular(strings.ToLower(val))] {
		return nil, notParseable("generic feature", val)
	}
	if val == strings.ToLower(val) {
		return nil, notParseable("all lower", val)
	}
	if isNumeric(val) {
		return nil, notParseable("numeric", val)
	}
	lower := strings.ToLower(val)
	if strings.HasPrefix(lower, "border of") || strings.HasPrefix(lower, "junction of") {
		return nil, notParseable("border/junction", val)
	}
	if strings.HasPrefix(val, "which") || strings.HasPrefix(val, "with") {
		return nil, notParseable("bad first word", val)
	}
	if !reFeatureShape.MatchString(val) {
		return nil, notParseable("invalid name", val)
	}
	if reLowerPrefix.MatchString(val) {
		return nil, notParseable("invalid first", val)
	}
	if reLowerSuffix.MatchString(val) && !allFeatures[lastWord(val)] {
		return nil, notParseable("invalid last", val)
	}
	if len(val) > 0 && val[len(val)-1] >= '0' && val[len(val)-1] <= '9' &&
		!reNumberedName.MatchString(val) {
		return nil, notParseable("invalid num", val)
	}
	if reBadFirstLast.MatchString(val) {
		return nil, notParseable("unlikely name", val)
	}
	if rePrepEnds.MatchString(val) {
		return nil, notParseable("starts/ends with preposition", val)
	}

	cleaned := cleanFeatureName(val)
	if cleaned == "" {
		return nil, notParseable("clean failed", val)
	}
	f.FeatureName = cleaned
	f.FeatureDom, f.FeatureClass, f.IsSpecific = classifyFeature(cleaned)

	// A conjoined name may also read as independent features.
	f.NameVariants = []string{f.FeatureName}
	if names := splitConjoined(val); len(names) > 1 {
		ok := true
		for _, name := range names {
			if _, err := ParseFeature(name, false); err != nil {
				ok = false
				break
			}
		}
		if ok {
			f.NameVariants = append(f.NameVariants, AppendFeatureType(names)...)
		}
	}
	return f, nil
}

// classifyFeature matches a name's leading or trailing feature-type
// word against the domain dictionaries.
func classifyFeature(name string) (Domain, string, bool) {
	for _, dict := range []struct {
		domain Domain
		terms  map[string]bool
	}{
		{DomainLand, landFeatures},
		{DomainMarine, marineFeatures},
		{DomainNone, otherFeatures},
	} {
		if kind, ok := matchFeatureTerm(name, dict.terms); ok {
			return dict.domain, kind, dict.terms[kind]
		}
	}
	return DomainNone, "", false
}

// matchFeatureTerm looks for a dictionary word at the end, then the
// start, of a name, tolerating plural forms.
func matchFeatureTerm(name string, terms map[string]bool) (string, bool) {
	words := strings.Fields(strings.ToLower(name))
	if len(words) < 2 {
		return "", false
	}
	for _, w := range []string{words[len(words)-1], words[0]} {
		if _, ok := terms[w]; ok {
			return w, true
		}
		if s := singular(w); s != w {
			if _, ok := terms[s]; ok {
				return s, true
			}
		}
	}
	return "", false
}

func cleanFeatureName(val string) string {
	val = regexp.MustCompile(`(?i)^the `).ReplaceAllString(val, "")
	val = regexp.MustCompile(`(?i)\bit'?s\b`).ReplaceAllString(val, "")
	return strings.Join(strings.Fields(val), " ")
}

// placeholderMask maps a generic feature word to the sibling record
// field it most likely refers to.
func placeholderMask(val string) string {
	fields := map[string]string{
		"city": "municipality", "islands": "island_group",
		"province": "state_province", "state": "state_province",
		"town": "municipality", "village": "municipality",
	}
	lower := strings.ToLower(val)
	if field, ok := fields[lower]; ok {
		return "{" + field + "}"
	}
	return "{" + lower + "}"
}

func splitConjoined(val string) []string {
	parts := reConjunction.Split(val, -1)
	if len(parts) < 2 {
		return nil
	}
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil
		}
		names = append(names, p)
	}
	return names
}

// AppendFeatureType copies a trailing feature-type word across a list
// of conjoined names: ["Turks", "Caicos Islands"] becomes
// ["Turks Island", "Caicos Island"].
func AppendFeatureType(features []string) []string {
	if len(features) < 2 {
		return features
	}
	out := make([]string, len(features))
	for i, f := range features {
		out[i] = strings.TrimSpace(f)
	}
	lastWords := strings.Fields(out[len(out)-1])
	singularType := strings.ToLower(singular(lastWords[len(lastWords)-1]))
	if !allFeatures[singularType] {
		return out
	}

	// Leave the list alone when an earlier entry already carries its
	// own feature type.
	for _, f := range out[:len(out)-1] {
		lower := strings.ToLower(f)
		if allFeatures[lower] {
			continue
		}
		if w := lastWord(f); allFeatures[w] || allFeatures[singular(w)] {
			return out
		}
	}

	pluralType := plural(singularType)
	for i, f := range out {
		lower := strings.ToLower(f)
		if strings.HasSuffix(lower, pluralType) {
			f = strings.TrimSpace(f[:len(f)-len(pluralType)])
		}
		if !strings.HasSuffix(strings.ToLower(f), singularType) {
			f = titleCase(strings.ToLower(f + " " + singularType))
		}
		out[i] = f
	}
	return out
}

// StripOfModifiers removes generic positional prefixes like "coast
// of" from a feature name.
func StripOfModifiers(feature string) string {
	return strings.TrimSpace(reOfModifier.ReplaceAllString(feature, ""))
}

// FeatureString renders a node for use as a direction or offshore
// reference feature.
func FeatureString(n Node) string {
	name := n.Name()
	lower := strings.ToLower(name)
	if strings.Contains(name, "{") ||
		strings.HasPrefix(lower, "border of") ||
		strings.HasPrefix(lower, "junction of") {
		return strings.Trim(name, `"`)
	}
	return StripOfModifiers(n.Verbatim())
}

func lastWord(s string) string {
	words := strings.Fields(strings.ToLower(s))
	if len(words) == 0 {
		return ""
	}
	return words[len(words)-1]
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
