package grammar

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// maxComboWords bounds the quadratic phrase generation; longer inputs
// fall back to delimiter-split segments.
const maxComboWords = 20

const phrasePunc = ",;:.|/-"

var (
	reWordToken  = regexp.MustCompile(`\d+\.\d+|[A-Za-z0-9_'\-]+`)
	reOneWord    = regexp.MustCompile(`^[A-Za-z\-]+$`)
	reSegDelims  = regexp.MustCompile(`[,;:|]|(?:[^\d\s])\.(?:[^\d])`)
	reBalParens  = regexp.MustCompile(`\(.*?\)`)
)

// tryParse is one grammar's attempt at a whole phrase.
type tryParse func(string) (Node, error)

// dispatchParsers is the fixed priority order: compound constructs
// before simpler ones, with measurement as a negative filter.
var dispatchParsers = []struct {
	kind Kind
	fn   tryParse
}{
	{KindPLSS, func(s string) (Node, error) { return undecorate(ParsePLSS(s)) }},
	{KindDirection, func(s string) (Node, error) { return undecorate(ParseDirection(s)) }},
	{KindBetween, func(s string) (Node, error) { return undecorate(ParseBetween(s)) }},
	{KindMeasurement, func(s string) (Node, error) { return undecorate(ParseMeasurement(s)) }},
	{KindMultiFeature, func(s string) (Node, error) { return undecorate(ParseMultiFeature(s, false)) }},
}

// undecorate narrows a concrete parse result to the Node interface
// without wrapping a typed nil.
func undecorate[T Node](n T, err error) (Node, error) {
	if err != nil {
		return nil, err
	}
	return n, nil
}

type span struct {
	i, j   int
	lb, rb bool
}

// ParseLocalities segments a verbatim locality string into the best
// non-overlapping set of feature references, in source order.
// Unparseable text never fails the call; retrieve it with Leftover.
func ParseLocalities(val string) []Node {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	cleaned := CleanLocality(val)
	if cleaned == "" {
		return nil
	}

	accepted := map[span]Node{}
	for _, phrase := range candidatePhrases(cleaned) {
		orig := phrase
		phrase = strings.TrimRight(phrase, "?")
		core := trimPhrase(phrase)
		if core == "" {
			continue
		}
		i := strings.Index(cleaned, core)
		if i < 0 {
			continue
		}
		j := i + len(core)
		lb := boundedLeft(cleaned, i)
		rb := boundedRight(cleaned, j)

		// Single words must sit against punctuation or the string
		// boundaries, or they are probably part of a longer name.
		if reOneWord.MatchString(core) && !(lb && rb) {
			continue
		}

		for _, parser := range dispatchParsers {
			node, err := parser.fn(core)
			if err != nil {
				continue
			}
			s := span{i: i, j: j, lb: lb, rb: rb}
			if parser.kind == KindPLSS {
				// PLSS strings carry internal punctuation that makes
				// their components look like independent phrases.
				s.lb, s.rb = true, true
			}
			if overlapsAccepted(s, accepted) {
				break
			}
			if strings.Contains(orig, "?") {
				node = &Uncertain{Wrapped: node}
			}
			accepted[s] = node
			break
		}
	}

	if len(accepted) == 0 {
		node, err := ParseSimple(cleaned)
		if err != nil {
			zap.L().Debug("no features extracted", zap.String("locality", val))
			return nil
		}
		return []Node{node}
	}

	// Measurements are recognized only so they never read as places.
	type placed struct {
		at   int
		node Node
	}
	var ordered []placed
	for s, node := range accepted {
		if node.Kind() == KindMeasurement {
			continue
		}
		ordered = append(ordered, placed{at: s.i, node: node})
	}
	sort.Slice(ordered, func(a, b int) bool { return ordered[a].at < ordered[b].at })

	nodes := make([]Node, 0, len(ordered))
	for _, p := range ordered {
		nodes = append(nodes, p.node)
	}
	return nodes
}

// Leftover returns the residue of a locality string not covered by
// the given nodes.
func Leftover(val string, nodes []Node) string {
	leftover := CleanLocality(val)
	for _, node := range nodes {
		verbatim := CleanLocality(strings.TrimRight(node.Verbatim(), "?"))
		leftover = strings.Replace(leftover, verbatim, "", 1)
	}
	return strings.Trim(leftover, ",;:./|-? ")
}

// candidatePhrases generates the substrings offered to the parsers:
// the full string first, then every maximal span between word
// boundaries, longest first, with internally punctuated spans last.
func candidatePhrases(cleaned string) []string {
	words := reWordToken.FindAllStringIndex(cleaned, -1)
	if len(words) <= 1 {
		return []string{cleaned}
	}
	if len(words) > maxComboWords {
		return segmentPhrases(cleaned)
	}

	seen := map[string]string{}
	for i := 0; i < len(words); i++ {
		for j := i; j < len(words); j++ {
			phrase := strings.TrimSpace(cleaned[words[i][0]:words[j][1]])
			core := strings.Trim(phrase, phrasePunc+"() ")
			if core == "" {
				continue
			}
			if prev, ok := seen[core]; !ok || len(phrase) > len(prev) {
				seen[core] = phrase
			}
		}
	}
	phrases := make([]string, 0, len(seen))
	for _, p := range seen {
		if p != cleaned {
			phrases = append(phrases, p)
		}
	}
	sort.Slice(phrases, func(a, b int) bool {
		ap, bp := hasInternalPunc(phrases[a]), hasInternalPunc(phrases[b])
		if ap != bp {
			return !ap
		}
		if len(phrases[a]) != len(phrases[b]) {
			return len(phrases[a]) > len(phrases[b])
		}
		return phrases[a] < phrases[b]
	})
	return append([]string{cleaned}, phrases...)
}

// segmentPhrases is the fallback for very long strings: the full
// string plus each delimiter-bounded segment.
func segmentPhrases(cleaned string) []string {
	phrases := []string{cleaned}
	for _, seg := range reSegDelims.Split(cleaned, -1) {
		seg = strings.TrimSpace(seg)
		if seg != "" && seg != cleaned {
			phrases = append(phrases, seg)
		}
	}
	return phrases
}

func trimPhrase(phrase string) string {
	if reBalParens.MatchString(phrase) {
		return strings.Trim(phrase, phrasePunc+" ")
	}
	return strings.Trim(phrase, phrasePunc+"() ")
}

func hasInternalPunc(phrase string) bool {
	return strings.ContainsAny(strings.Trim(phrase, phrasePunc+"() "), phrasePunc)
}

func boundedLeft(cleaned string, i int) bool {
	for i > 0 && cleaned[i-1] == ' ' {
		i--
	}
	if i == 0 {
		return true
	}
	return strings.ContainsRune(phrasePunc+"()", rune(cleaned[i-1]))
}

func boundedRight(cleaned string, j int) bool {
	for j < len(cleaned) && cleaned[j] == ' ' {
		j++
	}
	if j >= len(cleaned) {
		return true
	}
	return strings.ContainsRune(phrasePunc+"()?", rune(cleaned[j]))
}

// overlapsAccepted tests a new span against the accepted set. Longer
// bounded spans evict strictly contained, less bounded spans; any
// other overlap rejects the newcomer. Never both.
func overlapsAccepted(s span, accepted map[span]Node) bool {
	var evict []span
	overlapping := false
	for sx := range accepted {
		superLeft := s.i <= sx.i && s.j > sx.j && (s.rb || !sx.rb)
		superRight := s.j >= sx.j && s.i < sx.i && (s.lb || !sx.lb)
		if superLeft || superRight {
			evict = append(evict, sx)
		} else if (sx.i <= s.i && s.i <= sx.j) || (sx.i <= s.j && s.j <= sx.j) {
			overlapping = true
		}
	}
	for _, k := range evict {
		delete(accepted, k)
	}
	return overlapping && len(evict) == 0
}
