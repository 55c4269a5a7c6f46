package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
)

// explanation renders a prose account of the resolution for the
// determination remarks of the output record.
func (e *Evaluator) explanation() string {
	var parts []string

	sel := e.interpretedAs(StatusSelected)
	if len(sel) > 0 {
		fields := distinct(func(s *gazetteer.Site) string { return s.Field }, sel)
		parts = append(parts, fmt.Sprintf("Feature matched on %s.", oxfordComma(fields)))
	}

	if enc := append(e.interpretedAs(StatusEncompassing), e.interpretedAs(StatusConstrained)...); len(enc) > 0 {
		names := distinct(func(s *gazetteer.Site) string { return s.Name }, enc)
		parts = append(parts, fmt.Sprintf(
			"The following place names mentioned in this record appear to encompass the selected feature: %s.",
			oxfordComma(names)))
	}

	if inter := e.interpretedAs(StatusIntersecting); len(inter) > 0 {
		names := distinct(func(s *gazetteer.Site) string { return s.Name }, inter)
		parts = append(parts, fmt.Sprintf(
			"The selected feature intersects %s.", oxfordComma(names)))
	}

	parts = append(parts, e.siteNotes()...)

	if missed := e.out.Missed(); len(missed) > 0 {
		quoted := make([]string, len(missed))
		for i, term := range missed {
			quoted[i] = fmt.Sprintf("%q", term)
		}
		parts = append(parts, fmt.Sprintf(
			"The following terms could not be matched: %s.", oxfordComma(quoted)))
	}

	if len(e.out.Leftovers) > 0 {
		fields := make([]string, 0, len(e.out.Leftovers))
		for field := range e.out.Leftovers {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		parts = append(parts, fmt.Sprintf(
			"Some text in %s could not be parsed and was ignored.", oxfordComma(fields)))
	}

	return strings.Join(parts, " ")
}

func (e *Evaluator) siteNotes() []string {
	ids := make([]string, 0, len(e.notes))
	for id := range e.notes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []string
	for _, id := range ids {
		name := id
		for _, s := range e.sites {
			if s.LocationID == id {
				name = s.Name
				break
			}
		}
		for _, msg := range e.notes[id] {
			out = append(out, fmt.Sprintf("%s %s.", name, msg))
		}
	}
	return out
}

func distinct(key func(*gazetteer.Site) string, sites []*gazetteer.Site) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range sites {
		k := key(s)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func oxfordComma(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}
