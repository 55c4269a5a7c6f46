package resolver

import "github.com/rotisserie/eris"

// Sentinel errors for the failure modes a caller may want to branch
// on. Batch drivers treat ErrNoCandidates as a recoverable miss and
// the rest as per-record failures.
var (
	ErrNoCandidates      = eris.New("resolver: no candidate sites found")
	ErrTooManyCandidates = eris.New("resolver: too many candidate sites")
	ErrResolutionFailure = eris.New("resolver: could not reconcile candidate sites")
	ErrGeometry          = eris.New("resolver: geometry operation failed")
)
