package grammar

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// unitToKm converts recognized distance units to kilometers.
var unitToKm = map[string]float64{
	"ft": 0.0003048,
	"km": 1,
	"m":  0.001,
	"mi": 1.609344,
	"yd": 0.0009144,
}

// Defaults applied when a direction gives only a bearing.
const (
	defaultMinDistKm = 0
	defaultMaxDistKm = 16
)

const (
	numPat     = `(\d+/\d+|\d+ \d/\d|\d+\.\d+|\d+)`
	unitPat    = `(f(?:oo|ee)?t|m(?:et[er]{2})?s?|k(?:ilo)?m(?:et[er]{2})?s?|mi(?:les?)?|y(?:ar)?ds?)`
	bearingAtm = `(?:n(?:orth)?|s(?:outh)?|e(?:ast)?|w(?:est)?)\.?`
	bearingPat = `((?:` + bearingAtm + `){1,2}(?: ?\d* ?(?:` + bearingAtm + `))?)`
	distMod    = `(?: or so| \(?(?:air(?:line)?|map|naut(?:ical)?|road|trail)(?: distance)?\)?)?`
	brgMod     = `(?:due |\(?by [a-z\-']+\)? |(?:up|down)stream from |\((?:air(?:line)?|map|road|trail)(?: distance)?\) )?`
	distPat    = `(?:` + numPat + `(?: ?(?:-|or|to) ?` + numPat + `)?` + distMod + ` ?` + unitPat + `\b ?)?`
	featPat    = `([^,(]+?)`
	prepPat    = `(?:de|of|from)(?: [a-z]+ (?:of|in))?`
)

// The four surface orders a direction can take. Each pattern captures
// minDist, maxDist, unit, bearing, feature in a known group order.
var directionPatterns = []struct {
	re *regexp.Regexp
	// order maps capture groups 1..5 onto fields: d=minDist,
	// D=maxDist, u=unit, b=bearing, f=feature.
	order        string
	needDist     bool
	needDistOrOf bool
}{
	// "1 km N of Ellensburg", "N of Ellensburg"
	{regexp.MustCompile(`(?i)^` + distPat + brgMod + bearingPat + `\.? ` + prepPat + ` ` + featPat + `$`),
		"dDubf", false, false},
	// "Ellensburg (1 km N of)"
	{regexp.MustCompile(`(?i)^` + featPat + ` \(` + distPat + brgMod + bearingPat + `(?: ` + prepPat + `)?\s*\)$`),
		"fdDub", false, false},
	// "Ellensburg, 1 km N of"
	{regexp.MustCompile(`(?i)^` + featPat + `, ` + distPat + brgMod + bearingPat + `(?: ` + prepPat + `)?$`),
		"fdDub", false, true},
	// "1 km N Ellensburg"
	{regexp.MustCompile(`(?i)^` + distPat + brgMod + bearingPat + `\.? ` + featPat + `$`),
		"dDubf", true, false},
}

var (
	reBetweenWord  = regexp.MustCompile(`(?i)\bbetween\b`)
	reCompositeDir = regexp.MustCompile(`(?i)\b(?:&|and) \d`)
	reRouteWord    = regexp.MustCompile(`(?i)\b(road|trail)\b`)
	reTrailingBrg  = regexp.MustCompile(`\b[NEWS]{1,3}$`)
	reWordNumber   = regexp.MustCompile(`(?i)\b(one|two|three|four|five|six|seven|eight|nine|ten)([ -](?:f(?:oo|ee)?t|m(?:et[er]{2})?s?|k(?:ilo)?m\w*|mi(?:les?)?|y(?:ar)?ds?)\b)`)
	reCommaPrep    = regexp.MustCompile(`(?i),.*?\b(de|of|from)\b`)
)

var wordNumbers = map[string]string{
	"one": "1", "two": "2", "three": "3", "four": "4", "five": "5",
	"six": "6", "seven": "7", "eight": "8", "nine": "9", "ten": "10",
}

// Direction is a bearing-and-distance displacement from a reference
// feature, like "1 km N of Ellensburg".
type Direction struct {
	VerbatimText string `json:"verbatim"`
	// MinDist and MaxDist keep the literal numerals so significant
	// figures survive for the precision rules.
	MinDist string `json:"min_dist,omitempty"`
	MaxDist string `json:"max_dist,omitempty"`
	Unit    string `json:"unit,omitempty"`
	Bearing string `json:"bearing"`
	Feature string `json:"feature"`
	// Precision is the relative distance uncertainty derived from
	// the significant figures of the stated distance.
	Precision float64 `json:"precision"`
}

func (d *Direction) Kind() Kind             { return KindDirection }
func (d *Direction) Verbatim() string       { return d.VerbatimText }
func (d *Direction) FeatureNames() []string { return []string{d.Feature} }
func (d *Direction) Variants() []string     { return []string{d.Name()} }
func (d *Direction) Domain() Domain         { return DomainNone }
func (d *Direction) FeatureKind() string    { return "" }

// Specific reports whether the direction pins down a small area: a
// stated distance averaging at most 16 km.
func (d *Direction) Specific() bool {
	return (d.MinDist != "" || d.MaxDist != "") && d.AvgDistKm() <= 16
}

// Name renders the canonical "1 km N of Ellensburg" form.
func (d *Direction) Name() string {
	feature := d.Feature
	lower := strings.ToLower(feature)
	if strings.HasPrefix(lower, "border of") || strings.HasPrefix(lower, "junction of") {
		feature = lcfirst(feature)
	}
	dist := d.renderDistance()
	if dist != "" && d.Unit != "" && d.Bearing != "" && feature != "" {
		return fmt.Sprintf("%s %s %s of %s", dist, d.Unit, d.Bearing, feature)
	}
	return fmt.Sprintf("%s of %s", d.Bearing, feature)
}

func (d *Direction) renderDistance() string {
	// Road and trail distances read as maxima, so only the maximum
	// is displayed.
	if d.AlongRoute() {
		return d.MaxDist
	}
	dists := []string{}
	for _, v := range []string{d.MinDist, d.MaxDist} {
		if v != "" && !contains(dists, v) {
			dists = append(dists, v)
		}
	}
	sort.Slice(dists, func(i, j int) bool {
		return numValue(dists[i]) < numValue(dists[j])
	})
	return strings.Join(dists, "-")
}

// AlongRoute reports whether the distance follows a road or trail,
// which makes the stated distance a maximum.
func (d *Direction) AlongRoute() bool {
	return reRouteWord.MatchString(d.VerbatimText)
}

// DistsKm returns the minimum and maximum displacement in km,
// substituting the 0-16 km default when only a bearing was given.
func (d *Direction) DistsKm() (float64, float64) {
	if d.MinDist == "" && d.MaxDist == "" {
		return defaultMinDistKm, defaultMaxDistKm
	}
	factor := unitToKm["km"]
	if d.Unit != "" {
		factor = unitToKm[d.Unit]
	}
	lo := numValue(d.MinDist) * factor
	hi := numValue(d.MaxDist) * factor
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

// AvgDistKm returns the midpoint displacement in km.
func (d *Direction) AvgDistKm() float64 {
	lo, hi := d.DistsKm()
	return (lo + hi) / 2
}

// PrecisionKm converts the relative precision to km at the maximum
// stated distance.
func (d *Direction) PrecisionKm() float64 {
	_, hi := d.DistsKm()
	return hi * d.Precision
}

// DistKmWithPrecision folds the precision into a midpoint distance
// and the relative tolerance needed to cover the min-max span.
func (d *Direction) DistKmWithPrecision() (float64, float64) {
	lo, hi := d.DistsKm()
	if lo == hi {
		lo -= d.Precision * hi
		hi += d.Precision * hi
	}
	mid := (lo + hi) / 2
	if mid == 0 {
		return 0, 0
	}
	return mid, (hi - mid) / mid
}

// ParseDirection parses a displacement phrase in any of its surface
// orders. The whole phrase must be consumed.
func ParseDirection(text string) (*Direction, error) {
	text = strings.TrimSpace(text)
	if reBetweenWord.MatchString(text) {
		return nil, notParseable("between", text)
	}
	if reCompositeDir.MatchString(text) {
		return nil, notParseable("composite direction", text)
	}
	d := &Direction{VerbatimText: text}

	work := StripDiacritics(text)
	work = reWordNumber.ReplaceAllStringFunc(work, func(m string) string {
		sub := reWordNumber.FindStringSubmatch(m)
		return wordNumbers[strings.ToLower(sub[1])] + sub[2]
	})
	if strings.HasPrefix(work, "(") && strings.HasSuffix(work, ")") {
		work = work[1 : len(work)-1]
	}
	work = strings.TrimSpace(work)

	matched := false
	for _, pat := range directionPatterns {
		m := pat.re.FindStringSubmatch(work)
		if m == nil {
			continue
		}
		fields := map[byte]string{}
		for i, c := range []byte(pat.order) {
			fields[c] = strings.TrimSpace(m[i+1])
		}
		d.MinDist = fields['d']
		d.MaxDist = fields['D']
		feature := fields['f']

		unit, err := normalizeUnit(fields['u'])
		if err != nil {
			continue
		}
		d.Unit = unit
		bearing, err := normalizeBearing(fields['b'])
		if err != nil {
			continue
		}
		d.Bearing = bearing

		if pat.needDist && d.MinDist == "" {
			continue
		}
		if pat.needDistOrOf && d.MinDist == "" && d.MaxDist == "" &&
			!reCommaPrep.MatchString(text) {
			continue
		}

		// The reference must itself read as a feature.
		node, err := ParseMultiFeature(feature, true)
		if err != nil {
			continue
		}
		d.Feature = FeatureString(node)
		matched = true
		break
	}
	if !matched {
		return nil, notParseable("no direction pattern", text)
	}

	// A phrase ending in bare compass letters needs a distance, or it
	// is probably a modified feature name.
	if reTrailingBrg.MatchString(text) && d.MinDist == "" {
		return nil, notParseable("distance required", text)
	}
	if d.MaxDist == "" {
		d.MaxDist = d.MinDist
	}
	// Distances along a road or trail are maxima.
	if d.MinDist == d.MaxDist && d.MinDist != "" && d.AlongRoute() {
		d.MinDist = trimFloat(numValue(d.MaxDist) / 2)
	}
	d.Precision = distancePrecision(d.MinDist, d.MaxDist)

	if (d.MinDist != "") != (d.Unit != "") || d.Bearing == "" || d.Feature == "" {
		return nil, notParseable("missing required attributes", text)
	}
	return d, nil
}

// distancePrecision derives relative uncertainty from the significant
// figures of the stated distance, per MaNIS georeferencing practice:
// decimals imply the unit of their last place, fractions their
// denominator, round multiples of ten half a decade, and other
// integers roughly ten percent.
func distancePrecision(minDist, maxDist string) float64 {
	var dists []string
	for _, d := range []string{minDist, maxDist} {
		if d != "" {
			dists = append(dists, d)
		}
	}
	if len(dists) == 0 {
		return 1
	}
	lo, hi := numValue(dists[0]), numValue(dists[len(dists)-1])
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo != hi {
		// Ranges define their own precision.
		mid := (lo + hi) / 2
		return (hi - lo) / 2 / mid
	}

	dist := dists[len(dists)-1]
	val := numValue(dist)
	switch {
	case strings.Contains(dist, "."):
		dec := strings.SplitN(dist, ".", 2)[1]
		return 1 / float64(decimalDenominator(dec)) / val
	case strings.Contains(dist, "/"):
		parts := strings.Split(dist, " ")
		frac := strings.Split(parts[len(parts)-1], "/")
		denom, _ := strconv.ParseFloat(frac[1], 64)
		return 1 / denom / val
	default:
		n := int(val)
		var prec float64
		if n%10 == 0 {
			prec = 0.5 * math.Pow(10, math.Floor(math.Log10(float64(n))))
		} else {
			prec = math.Ceil(0.1 * float64(n))
		}
		return prec / val
	}
}

// decimalDenominator reduces a decimal suffix to the denominator of
// its lowest-terms fraction: "5" is 2, "25" is 4, "1" is 10. An
// all-zero suffix reads as one tenth.
func decimalDenominator(dec string) int64 {
	p, err := strconv.ParseInt(dec, 10, 64)
	if err != nil || p == 0 {
		return 10
	}
	q := int64(1)
	for range dec {
		q *= 10
	}
	g := gcd(p, q)
	return q / g
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func normalizeUnit(unit string) (string, error) {
	if unit == "" {
		return "", nil
	}
	patterns := []struct {
		re  *regexp.Regexp
		std string
	}{
		{regexp.MustCompile(`(?i)^f(?:oo|ee)?t$`), "ft"},
		{regexp.MustCompile(`(?i)^k(?:ilo)?m(?:et[er]{2})?s?$`), "km"},
		{regexp.MustCompile(`(?i)^m(?:et[er]{2})?s?$`), "m"},
		{regexp.MustCompile(`(?i)^mi(?:les?)?$`), "mi"},
		{regexp.MustCompile(`(?i)^y(?:ar)?ds?$`), "yd"},
	}
	for _, p := range patterns {
		if p.re.MatchString(unit) {
			return p.std, nil
		}
	}
	return "", notParseable("unrecognized unit", unit)
}

var validBearings = map[string]bool{
	"N": true, "NNE": true, "NE": true, "ENE": true,
	"E": true, "ESE": true, "SE": true, "SSE": true,
	"S": true, "SSW": true, "SW": true, "WSW": true,
	"W": true, "WNW": true, "NW": true, "NNW": true,
}

var reQuadrantBrg = regexp.MustCompile(`^[NS]\d+[EW]$`)

func normalizeBearing(bearing string) (string, error) {
	if bearing == "" {
		return "", notParseable("missing bearing", bearing)
	}
	b := strings.ToLower(bearing)
	for _, word := range []string{"north", "south", "east", "west"} {
		b = strings.ReplaceAll(b, word, word[:1])
	}
	b = strings.ToUpper(b)
	var kept []byte
	for i := 0; i < len(b); i++ {
		c := b[i]
		if strings.IndexByte("NSEW0123456789", c) >= 0 {
			kept = append(kept, c)
		}
	}
	b = string(kept)
	if validBearings[b] || reQuadrantBrg.MatchString(b) {
		return b, nil
	}
	return "", notParseable("invalid bearing", bearing)
}

func numValue(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	// Mixed numbers like "1 1/2".
	if i := strings.IndexByte(s, ' '); i >= 0 && strings.Contains(s, "/") {
		return numValue(s[:i]) + numValue(s[i+1:])
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		num, err1 := strconv.ParseFloat(s[:i], 64)
		den, err2 := strconv.ParseFloat(s[i+1:], 64)
		if err1 != nil || err2 != nil || den == 0 {
			return 0
		}
		return num / den
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
