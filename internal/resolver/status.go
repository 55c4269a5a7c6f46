// Package resolver reconciles the candidate sites matched for one
// locality record into a single geometry with an uncertainty radius.
// Candidates are tagged with an interpretation status as the evaluator
// works through them; a resolution succeeds when every surviving
// candidate is accounted for by the selected geometry.
package resolver

import "strings"

// Status tags one candidate site with how the evaluator accounted for
// it. Rejected statuses remove a site from consideration entirely;
// the rest keep it available as context for later steps.
type Status string

const (
	StatusAdmin        Status = "admin"
	StatusConstrained  Status = "constrained"
	StatusEncompassing Status = "encompassing"
	StatusIntersecting Status = "intersecting"
	StatusLessSpecific Status = "less specific"
	StatusMoreSpecific Status = "more specific"
	StatusSelected     Status = "selected"
	StatusVeryLarge    Status = "very large"

	StatusRejectedDuplicate    Status = "rejected (duplicate)"
	StatusRejectedAsAdmin      Status = "rejected (interpreted as admin)"
	StatusRejectedElsewhere    Status = "rejected (interpreted elsewhere)"
	StatusRejectedHigherGeo    Status = "rejected (disjoint on higher geo)"
	StatusRejectedDisjoint     Status = "rejected (disjoint)"
	StatusRejectedUnreconciled Status = "rejected (not reconciled)"
	StatusRejectedOutlier      Status = "rejected (outlier)"
	StatusRejectedEncompassed  Status = "rejected (encompassed)"
)

// Rejected reports whether the status removes a site from play.
func (s Status) Rejected() bool {
	return strings.HasPrefix(string(s), "rejected")
}

// similarRemap is the status given to a site that shares a key with a
// site interpreted under the map's key. Same-name duplicates of an
// admin match are not themselves admin matches, they are casualties of
// one.
var similarRemap = map[Status]Status{
	StatusAdmin:        StatusRejectedAsAdmin,
	StatusEncompassing: StatusRejectedEncompassed,
	StatusVeryLarge:    StatusRejectedElsewhere,
	StatusSelected:     StatusRejectedElsewhere,
}
