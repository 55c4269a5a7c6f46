package grammar

import (
	"regexp"
	"strings"
)

// roadTypes maps road-word abbreviations to their long forms.
var roadTypes = map[string]string{
	"ave": "avenue", "blvd": "boulevard", "dr": "drive",
	"hwy": "highway", "rd": "road", "rt": "route",
	"st": "street", "tr": "trail", "way": "way",
}

var roadWords = func() []string {
	words := make([]string, 0, len(roadTypes)*2)
	for abbr, long := range roadTypes {
		words = append(words, abbr, long)
	}
	return words
}()

var (
	highwayPat = `(?:(?:U\.?S\.?|S\.?R\.?|I-?|State |Inter)?(?:Hwy|Highway|Route|Rte?|Road)\.?[ -]?#?\d+[A-Z]?|I-\d+|U\.?S\.? ?\d+)`
	roadNamePat = `(?:[A-Z][\w'.-]*(?:[ -][\w'.-]+){0,4})`
	roadPat     = `(` + roadNamePat + `|` + highwayPat + `)`

	reJunction = regexp.MustCompile(`(?i)\b(?:intersection|jct|junction) (?:(?:between|of|with) )?` +
		roadPat + ` (?:and|with|&) ` + roadPat + `\b`)
	reJunctionRef = regexp.MustCompile(`(?i)\b(?:beyond|it'?s|past) (?:intersection|jct|junction)` +
		` (?:between|of|with) ` + roadPat + `\b`)
	reRoadOnly = regexp.MustCompile(`(?i)^(?:(?:along|off|on|side of) )?` + roadPat + `$`)
	reHighway  = regexp.MustCompile(`(?i)^` + highwayPat + `$`)
	reAtWord   = regexp.MustCompile(`(?i)\bat\b`)
	reRoadWord = regexp.MustCompile(`(?i)\b(` + strings.Join(roadWords, "|") + `)\b`)
)

// Junction is a point where two roads meet, or a single named road.
type Junction struct {
	VerbatimText string   `json:"verbatim"`
	Features     []string `json:"features"`
}

func (j *Junction) Kind() Kind             { return KindJunction }
func (j *Junction) Verbatim() string       { return j.VerbatimText }
func (j *Junction) FeatureNames() []string { return j.Features }
func (j *Junction) Variants() []string     { return []string{j.Name()} }
func (j *Junction) Specific() bool         { return true }
func (j *Junction) Domain() Domain         { return DomainNone }
func (j *Junction) FeatureKind() string    { return "road" }

func (j *Junction) Name() string {
	if len(j.Features) > 1 {
		return "Junction of " + oxfordComma(j.Features)
	}
	return j.Features[0]
}

// ParseJunction parses road intersections and bare road names.
func ParseJunction(val string) (*Junction, error) {
	val = strings.TrimSpace(val)
	features := junctionRoads(val)
	if features == nil {
		if road := singleRoad(val); road != "" {
			features = []string{road}
		}
	}
	if features == nil {
		return nil, notParseable("not a road or junction", val)
	}
	return &Junction{VerbatimText: val, Features: features}, nil
}

// isRoad reports whether a name reads as a road: a numbered highway,
// or a proper name containing a road-type word.
func isRoad(val string) bool {
	val = strings.TrimSpace(val)
	if reAtWord.MatchString(val) {
		return false
	}
	if reHighway.MatchString(val) {
		return true
	}
	lower := strings.ToLower(val)
	for _, w := range roadWords {
		if lower == w {
			return false
		}
	}
	return reRoadWord.MatchString(val) && strings.ContainsAny(val, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
}

func singleRoad(val string) string {
	m := reRoadOnly.FindStringSubmatch(val)
	if m != nil && isRoad(m[1]) {
		return m[1]
	}
	return ""
}

func junctionRoads(val string) []string {
	if m := reJunction.FindStringSubmatch(val); m != nil {
		roads := []string{m[1], m[2]}
		if isRoad(roads[0]) && isRoad(roads[1]) {
			return roads
		}
	}
	// Junctions referencing a road defined elsewhere in the record.
	if m := reJunctionRef.FindStringSubmatch(val); m != nil && isRoad(m[1]) {
		return []string{"{road}", m[1]}
	}
	return nil
}
