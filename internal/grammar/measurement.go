package grammar

import (
	"regexp"
	"strings"
)

var reMeasurement = regexp.MustCompile(`(?i)^(elev(\.|ation)? )?` +
	`\d+(\.\d+)?( ?(-|to|thro?ug?h?) ?\d+(\.\d+)?)? ?` +
	`[a-z]{1,3}\.?( (deep|depth|elev(\.|ation)|high))?$`)

// Measurement is a bare number-with-unit phrase such as a depth or
// elevation. It exists so the dispatcher can recognize and exclude
// these phrases from locality candidates.
type Measurement struct {
	VerbatimText string `json:"verbatim"`
}

func (m *Measurement) Kind() Kind             { return KindMeasurement }
func (m *Measurement) Verbatim() string       { return m.VerbatimText }
func (m *Measurement) Name() string           { return m.VerbatimText }
func (m *Measurement) FeatureNames() []string { return nil }
func (m *Measurement) Variants() []string     { return []string{m.VerbatimText} }
func (m *Measurement) Specific() bool         { return false }
func (m *Measurement) Domain() Domain         { return DomainNone }
func (m *Measurement) FeatureKind() string    { return "" }

// ParseMeasurement matches simple numbers and ranges with units.
func ParseMeasurement(val string) (*Measurement, error) {
	val = strings.TrimSpace(val)
	if !reMeasurement.MatchString(val) {
		return nil, notParseable("not a measurement", val)
	}
	return &Measurement{VerbatimText: val}, nil
}
