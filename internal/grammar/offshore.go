package grammar

import (
	"regexp"
	"strings"
)

var reOffshore = regexp.MustCompile(`(?i)^(?:` + strings.Join([]string{
	`approach(?:es)? to(?: the)?`,
	`entrance(?:s)? (?:of|to)(?: the)?`,
	`off(?: of)?(?: the)?`,
	`offshore(?: of)?(?: the)?`,
}, "|") + `) (.*)$`)

// Offshore marks a locality in the water off a named feature. It only
// identifies the reference feature; extending its geometry seaward is
// the resolution engine's job.
type Offshore struct {
	VerbatimText string `json:"verbatim"`
	Feature      string `json:"feature"`
}

func (o *Offshore) Kind() Kind             { return KindOffshore }
func (o *Offshore) Verbatim() string       { return o.VerbatimText }
func (o *Offshore) Name() string           { return "Off of " + o.Feature }
func (o *Offshore) FeatureNames() []string { return []string{o.Feature} }
func (o *Offshore) Variants() []string     { return []string{o.Name()} }
func (o *Offshore) Specific() bool         { return true }
func (o *Offshore) Domain() Domain         { return DomainMarine }
func (o *Offshore) FeatureKind() string    { return "offshore" }

// ParseOffshore parses phrases like "off the coast of Maine".
func ParseOffshore(val string) (*Offshore, error) {
	m := reOffshore.FindStringSubmatch(val)
	if m == nil {
		return nil, notParseable("no offshore prefix", val)
	}
	ref := strings.TrimSpace(m[1])
	if isRoad(ref) {
		return nil, notParseable("reference is a road", val)
	}
	if node, err := ParseBorder(ref); err == nil {
		return &Offshore{VerbatimText: val, Feature: FeatureString(node)}, nil
	}
	if node, err := ParseModified(ref); err == nil {
		return &Offshore{VerbatimText: val, Feature: FeatureString(node)}, nil
	}
	if node, err := ParseFeature(ref, false); err == nil {
		return &Offshore{VerbatimText: val, Feature: FeatureString(node)}, nil
	}
	return nil, notParseable("reference is not a feature", val)
}
