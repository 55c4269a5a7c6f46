package grammar

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripDiacritics folds accented characters to their ASCII base form.
func StripDiacritics(s string) string {
	out, _, err := transform.String(deaccent, s)
	if err != nil {
		return s
	}
	return out
}

var (
	reSpaces        = regexp.MustCompile(`\s+`)
	reQuestion      = regexp.MustCompile(`\s*(\?|\(\s*\?\s*\)|\[\s*\?\s*\])`)
	reThousands     = regexp.MustCompile(`(\d),(\d\d\d)\b`)
	reNatl          = regexp.MustCompile(`\bNatl\b`)
	reNatlPark      = regexp.MustCompile(`\bN[. ]*P\.?\b`)
	reNatlForest    = regexp.MustCompile(`\bNational For\.?\b`)
	reCirca         = regexp.MustCompile(`\b[Cc](?:irc)?a?\.? (\d)`)
	reFeetTick      = regexp.MustCompile(`(\d)'(\s|$)`)
	reDupPunc       = regexp.MustCompile(`(\s*[|,;:]+)+`)
	reDoubleHyphen  = regexp.MustCompile(`([a-z])-{2,}([a-z])`)
	reLonePeriod    = regexp.MustCompile(`([A-Za-z]{4,})\.(\s|$)`)
	reLeadingZero   = regexp.MustCompile(`(^|[^\d])\.(\d)`)
	rePeriodBefore  = regexp.MustCompile(`\.([,;:|\-])`)
	rePeriodAfter   = regexp.MustCompile(`([,;:|\-])\.`)
	reCompassAbbrev = regexp.MustCompile(`\b([NSEW](?:[NSEW]{1,2})?)\.`)
)

// abbreviations that keep a trailing period from acting as a phrase
// delimiter.
var softAbbrevs = map[string]bool{
	"mt": true, "st": true, "ft": true, "pt": true, "is": true,
	"sec": true, "no": true, "mtn": true, "mts": true, "isl": true,
	"co": true, "jct": true, "hwy": true, "rte": true,
}

// CleanLocality normalizes a verbatim locality string before parsing:
// diacritics folded, whitespace collapsed, question marks and compass
// abbreviations standardized, common abbreviations expanded.
func CleanLocality(val string) string {
	if val == "" {
		return ""
	}
	if val == strings.ToUpper(val) && val != strings.ToLower(val) {
		val = titleCase(val)
	}
	val = StripDiacritics(val)
	val = strings.Trim(val, " ,;:|")
	val = strings.Trim(val, `"`)
	val = strings.TrimRight(val, ".")

	val = reSpaces.ReplaceAllString(val, " ")
	val = reDoubleHyphen.ReplaceAllString(val, "$1-$2")
	val = reQuestion.ReplaceAllString(val, "?")
	val = reCompassAbbrev.ReplaceAllString(val, "$1")
	val = reThousands.ReplaceAllString(val, "$1$2")
	val = reNatl.ReplaceAllString(val, "National")
	val = reNatlPark.ReplaceAllString(val, "National Park")
	val = reNatlForest.ReplaceAllString(val, "National Forest")
	val = reCirca.ReplaceAllString(val, "$1")
	val = reFeetTick.ReplaceAllString(val, "$1 ft$2")
	val = reLeadingZero.ReplaceAllString(val, "${1}0.$2")
	val = rePeriodBefore.ReplaceAllString(val, "$1")
	val = rePeriodAfter.ReplaceAllString(val, "$1")
	val = deperiod(val)

	val = reSpaces.ReplaceAllString(val, " ")
	val = reDupPunc.ReplaceAllStringFunc(val, func(m string) string {
		return string(strings.TrimSpace(m)[0])
	})
	return strings.TrimSpace(val)
}

// deperiod turns periods that end long plain words into phrase
// delimiters, leaving decimals and known abbreviations alone.
func deperiod(val string) string {
	return reLonePeriod.ReplaceAllStringFunc(val, func(m string) string {
		sub := reLonePeriod.FindStringSubmatch(m)
		if softAbbrevs[strings.ToLower(sub[1])] {
			return m
		}
		return sub[1] + ";" + sub[2]
	})
}

// titleCase converts an all-caps string to title case.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = ucfirst(w)
	}
	return strings.Join(words, " ")
}

func ucfirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func lcfirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// oxfordComma joins names as "A", "A and B", or "A, B, and C".
func oxfordComma(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}

// singular strips a plural suffix from a feature-type word.
func singular(s string) string {
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "ies"):
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(lower, "es") && (strings.HasSuffix(lower, "ches") ||
		strings.HasSuffix(lower, "shes") || strings.HasSuffix(lower, "sses")):
		return s[:len(s)-2]
	case strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss"):
		return s[:len(s)-1]
	default:
		return s
	}
}

// plural appends a plural suffix to a feature-type word.
func plural(s string) string {
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "y") && len(s) > 1 &&
		!strings.ContainsRune("aeiou", rune(lower[len(lower)-2])):
		return s[:len(s)-1] + "ies"
	case strings.HasSuffix(lower, "s") || strings.HasSuffix(lower, "ch") ||
		strings.HasSuffix(lower, "sh"):
		return s + "es"
	default:
		return s + "s"
	}
}
