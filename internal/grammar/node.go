// Package grammar segments verbatim locality strings into typed
// feature references. Each parser accepts a whole phrase or signals
// ErrNotParseable; the dispatcher in ParseLocalities finds the best
// non-overlapping cover of the input.
package grammar

import "github.com/rotisserie/eris"

// ErrNotParseable is the recoverable signal a parser returns when a
// phrase does not fit its grammar. Anything else is a real error.
var ErrNotParseable = eris.New("grammar: not parseable")

func notParseable(reason, phrase string) error {
	return eris.Wrapf(ErrNotParseable, "%s: %q", reason, phrase)
}

// Kind identifies which grammar produced a node.
type Kind string

const (
	KindSimple       Kind = "simple"
	KindFeature      Kind = "feature"
	KindModified     Kind = "modified"
	KindMultiFeature Kind = "multifeature"
	KindDirection    Kind = "direction"
	KindBetween      Kind = "between"
	KindBorder       Kind = "border"
	KindJunction     Kind = "junction"
	KindOffshore     Kind = "offshore"
	KindPLSS         Kind = "plss"
	KindMeasurement  Kind = "measurement"
	KindUncertain    Kind = "uncertain"
)

// Domain is the coarse land/marine classification of a feature.
type Domain string

const (
	DomainNone   Domain = ""
	DomainLand   Domain = "land"
	DomainMarine Domain = "marine"
)

// Node is one parsed feature reference. Implementations form a closed
// set, one per Kind.
type Node interface {
	// Kind reports which grammar matched.
	Kind() Kind
	// Verbatim returns the exact source substring the node covers.
	Verbatim() string
	// Name renders the canonical form of the reference. For
	// well-formed input, reparsing Name() yields an equivalent node.
	Name() string
	// FeatureNames lists the leaf feature names referenced, for
	// gazetteer lookup.
	FeatureNames() []string
	// Variants lists alternate renderings of the reference, best
	// first.
	Variants() []string
	// Specific reports whether the reference denotes a small,
	// precise place rather than a generic or regional one.
	Specific() bool
	// Domain reports the land/marine classification, if known.
	Domain() Domain
	// FeatureKind returns the coarse class token ("river",
	// "island", "border", ...) if one was recognized.
	FeatureKind() string
}

// Uncertain wraps another node to mark a parse the source text itself
// flagged as doubtful with a trailing question mark.
type Uncertain struct {
	Wrapped Node `json:"wrapped"`
}

func (u *Uncertain) Kind() Kind             { return KindUncertain }
func (u *Uncertain) Verbatim() string       { return u.Wrapped.Verbatim() + "?" }
func (u *Uncertain) Name() string           { return u.Wrapped.Name() }
func (u *Uncertain) FeatureNames() []string { return u.Wrapped.FeatureNames() }
func (u *Uncertain) Variants() []string     { return u.Wrapped.Variants() }
func (u *Uncertain) Specific() bool         { return u.Wrapped.Specific() }
func (u *Uncertain) Domain() Domain         { return u.Wrapped.Domain() }
func (u *Uncertain) FeatureKind() string    { return u.Wrapped.FeatureKind() }

// Unwrap returns the innermost node behind any uncertain wrappers.
func Unwrap(n Node) Node {
	for {
		u, ok := n.(*Uncertain)
		if !ok {
			return n
		}
		n = u.Wrapped
	}
}
