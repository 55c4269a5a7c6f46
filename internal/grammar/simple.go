package grammar

import (
	"regexp"
	"strings"
)

var reSimpleDelims = regexp.MustCompile(`[,;:]`)

// Simple is the fallback node for apparent place names no other
// grammar matched. It carries no classification.
type Simple struct {
	VerbatimText string `json:"verbatim"`
	Feature      string `json:"feature"`
}

func (s *Simple) Kind() Kind             { return KindSimple }
func (s *Simple) Verbatim() string       { return s.VerbatimText }
func (s *Simple) Name() string           { return s.Feature }
func (s *Simple) FeatureNames() []string { return []string{s.Feature} }
func (s *Simple) Variants() []string     { return []string{s.Feature} }
func (s *Simple) Specific() bool         { return false }
func (s *Simple) Domain() Domain         { return DomainNone }
func (s *Simple) FeatureKind() string    { return "" }

// ParseSimple accepts any undelimited, non-generic phrase as a place
// name of last resort.
func ParseSimple(val string) (*Simple, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, notParseable("empty", val)
	}
	if IsGenericFeature(val) {
		return nil, notParseable("generic name", val)
	}
	if reSimpleDelims.MatchString(val) {
		return nil, notParseable("delimited", val)
	}
	return &Simple{VerbatimText: val, Feature: val}, nil
}
