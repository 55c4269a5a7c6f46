package resolver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
	"github.com/collections-lab/georef-cli/internal/geometry"
	"github.com/collections-lab/georef-cli/internal/matcher"
)

func mustBox(t *testing.T, minLat, minLng, maxLat, maxLng float64) *geometry.Shape {
	t.Helper()
	box, err := geometry.NewBox(minLat, minLng, maxLat, maxLng)
	require.NoError(t, err)
	return box
}

func testSite(id, name, class, kind, field string, geom *geometry.Shape) *gazetteer.Site {
	return &gazetteer.Site{
		LocationID: id,
		Name:       name,
		SiteClass:  class,
		SiteKind:   kind,
		Field:      field,
		Geometry:   geom,
		Sources:    []string{"GeoNames"},
		Filter:     map[string]int{"name": 1},
	}
}

func matched(field, term string, sites ...*gazetteer.Site) matcher.MatchResult {
	res := matcher.MatchResult{
		Field:        field,
		Term:         term,
		Sites:        sites,
		TermsChecked: []string{term},
	}
	if len(sites) > 0 {
		res.TermsMatched = []string{term}
	}
	return res
}

func washingtonRecord() *matcher.Record {
	return &matcher.Record{
		Country:       "United States",
		CountryCode:   "US",
		StateProvince: []string{"Washington"},
		Admin1:        []string{"WA"},
	}
}

func adminResults(t *testing.T) []matcher.MatchResult {
	t.Helper()
	country := testSite("6252001", "United States", "A", "PCLI", "country",
		mustBox(t, 24.5, -124.8, 49.4, -66.9))
	state := testSite("5815135", "Washington", "A", "ADM1", "state_province",
		mustBox(t, 45.5, -124.8, 49.0, -116.9))
	return []matcher.MatchResult{
		matched("country", "United States", country),
		matched("state_province", "Washington", state),
	}
}

func TestResolveTownWithAdminContext(t *testing.T) {
	t.Parallel()

	town := testSite("5793933", "Ellensburg", "P", "PPL", "locality",
		geometry.NewPoint(46.9965, -120.5478))
	out := &matcher.Output{
		Results: append(adminResults(t), matched("locality", "Ellensburg", town)),
	}

	res, err := NewEvaluator(DefaultConfig(), washingtonRecord(), out).Resolve()
	require.NoError(t, err)

	assert.Equal(t, StatusSelected, res.Interpretations["5793933"])
	assert.Equal(t, StatusAdmin, res.Interpretations["6252001"])
	assert.Equal(t, StatusAdmin, res.Interpretations["5815135"])

	lat, lng := res.Geometry.Centroid()
	assert.InDelta(t, 46.9965, lat, 0.1)
	assert.InDelta(t, -120.5478, lng, 0.2)
	assert.Less(t, res.RadiusKm, 25.0)
	assert.Contains(t, res.Sources, "GeoNames")
	assert.Contains(t, res.Explanation, "Feature matched on locality")
	assert.Empty(t, res.Missed)
}

func TestResolveEncompassingCollapse(t *testing.T) {
	t.Parallel()

	park := testSite("5800001", "Olympic National Park", "L", "PRK", "features",
		mustBox(t, 47.5, -124.4, 48.2, -123.2))
	lake := testSite("5800002", "Lake Crescent", "H", "LK", "water_body",
		geometry.NewPoint(48.06, -123.8))
	out := &matcher.Output{Results: []matcher.MatchResult{
		matched("features", "Olympic National Park", park),
		matched("water_body", "Lake Crescent", lake),
	}}

	res, err := NewEvaluator(DefaultConfig(), &matcher.Record{
		WaterBody: []string{"Lake Crescent"},
		Features:  []string{"Olympic National Park"},
	}, out).Resolve()
	require.NoError(t, err)

	assert.Equal(t, StatusSelected, res.Interpretations["5800002"])
	assert.Equal(t, StatusEncompassing, res.Interpretations["5800001"])
	assert.Contains(t, res.Explanation, "appear to encompass")

	lat, lng := res.Geometry.Centroid()
	assert.InDelta(t, 48.06, lat, 0.2)
	assert.InDelta(t, -123.8, lng, 0.3)
	assert.Less(t, res.RadiusKm, 30.0)
}

func TestResolveOutlierRejection(t *testing.T) {
	t.Parallel()

	town := testSite("5802001", "Liberty", "P", "PPL", "locality",
		geometry.NewPoint(47.25, -120.66))
	mine := testSite("5802002", "Liberty Mine", "S", "MN", "mine",
		geometry.NewPoint(47.23, -120.70))
	stray := testSite("5802003", "Camas Land", "P", "PPL", "features",
		geometry.NewPoint(45.0, -110.0))
	out := &matcher.Output{Results: []matcher.MatchResult{
		matched("locality", "Liberty", town),
		matched("mine", "Liberty Mine", mine),
		matched("features", "Camas Land", stray),
	}}

	res, err := NewEvaluator(DefaultConfig(), &matcher.Record{
		Mine:     "Liberty Mine",
		Features: []string{"Camas Land"},
		Locality: "Liberty",
	}, out).Resolve()
	require.NoError(t, err)

	assert.Equal(t, StatusRejectedOutlier, res.Interpretations["5802003"])
	assert.Equal(t, StatusSelected, res.Interpretations["5802001"])
	assert.Equal(t, StatusSelected, res.Interpretations["5802002"])

	lat, lng := res.Geometry.Centroid()
	assert.InDelta(t, 47.24, lat, 0.2)
	assert.InDelta(t, -120.68, lng, 0.3)
	assert.Less(t, res.RadiusKm, 50.0)
	assert.Contains(t, res.Explanation, "far from every other feature")
}

func TestResolveAdminOnlyRelaxation(t *testing.T) {
	t.Parallel()

	out := &matcher.Output{Results: adminResults(t)}
	res, err := NewEvaluator(DefaultConfig(), washingtonRecord(), out).Resolve()
	require.NoError(t, err)

	// The state is the most specific thing the record ever named, so
	// its polygon is the right answer even though it dwarfs the
	// normal distance cap.
	assert.Equal(t, StatusSelected, res.Interpretations["5815135"])
	assert.Equal(t, StatusAdmin, res.Interpretations["6252001"])
	assert.Greater(t, res.RadiusKm, 100.0)

	minLat, minLng, maxLat, maxLng := res.Geometry.LatLngBounds()
	assert.InDelta(t, 45.5, minLat, 0.01)
	assert.InDelta(t, -124.8, minLng, 0.01)
	assert.InDelta(t, 49.0, maxLat, 0.01)
	assert.InDelta(t, -116.9, maxLng, 0.01)
}

func TestResolveMarineExtension(t *testing.T) {
	t.Parallel()

	island := testSite("5803001", "Destruction Island", "T", "ISL", "island",
		geometry.NewPoint(47.675, -124.49))
	ocean := testSite("5803002", "Pacific Ocean", "H", "OCN", "ocean",
		mustBox(t, 30.0, -160.0, 55.0, -124.2))
	out := &matcher.Output{Results: []matcher.MatchResult{
		matched("ocean", "Pacific Ocean", ocean),
		matched("island", "Destruction Island", island),
	}}

	res, err := NewEvaluator(DefaultConfig(), &matcher.Record{
		Ocean:  "Pacific Ocean",
		Island: "Destruction Island",
	}, out).Resolve()
	require.NoError(t, err)

	assert.Equal(t, StatusSelected, res.Interpretations["5803001"])
	assert.Equal(t, StatusEncompassing, res.Interpretations["5803002"])

	// The envelope reaches offshore past the island itself.
	_, minLng, _, _ := res.Geometry.LatLngBounds()
	assert.Less(t, minLng, -124.5)
	assert.Greater(t, res.RadiusKm, 20.0)
}

func TestResolveNearDoublesRadius(t *testing.T) {
	t.Parallel()

	town := testSite("5793933", "Ellensburg", "P", "PPL", "locality",
		geometry.NewPoint(46.9965, -120.5478))
	out := &matcher.Output{Results: []matcher.MatchResult{
		matched("locality", "Near Ellensburg", town),
	}}

	res, err := NewEvaluator(DefaultConfig(), &matcher.Record{
		Locality: "Near Ellensburg",
	}, out).Resolve()
	require.NoError(t, err)

	assert.Equal(t, StatusSelected, res.Interpretations["5793933"])
	assert.InDelta(t, 2*res.Geometry.RadiusKm(), res.RadiusKm, 0.001)
}

func TestResolveNoCandidates(t *testing.T) {
	t.Parallel()

	out := &matcher.Output{Results: []matcher.MatchResult{
		matched("locality", "Umtanum Creek"),
	}}
	_, err := NewEvaluator(DefaultConfig(), &matcher.Record{
		Locality: "Umtanum Creek",
	}, out).Resolve()
	assert.True(t, errors.Is(err, ErrNoCandidates))
}

func TestResolveTooManyCandidates(t *testing.T) {
	t.Parallel()

	var sites []*gazetteer.Site
	for i := 0; i < 151; i++ {
		sites = append(sites, testSite(
			fmt.Sprintf("58%05d", i), "Springfield", "P", "PPL", "locality",
			geometry.NewPoint(40.0+float64(i)*0.01, -90.0)))
	}
	out := &matcher.Output{Results: []matcher.MatchResult{
		matched("locality", "Springfield", sites...),
	}}
	_, err := NewEvaluator(DefaultConfig(), &matcher.Record{
		Locality: "Springfield",
	}, out).Resolve()
	assert.True(t, errors.Is(err, ErrTooManyCandidates))
}

func TestResolveDeterministic(t *testing.T) {
	t.Parallel()

	build := func() *matcher.Output {
		town := testSite("5802001", "Liberty", "P", "PPL", "locality",
			geometry.NewPoint(47.25, -120.66))
		mine := testSite("5802002", "Liberty Mine", "S", "MN", "mine",
			geometry.NewPoint(47.23, -120.70))
		stray := testSite("5802003", "Camas Land", "P", "PPL", "features",
			geometry.NewPoint(45.0, -110.0))
		return &matcher.Output{Results: []matcher.MatchResult{
			matched("locality", "Liberty", town),
			matched("mine", "Liberty Mine", mine),
			matched("features", "Camas Land", stray),
		}}
	}
	rec := &matcher.Record{Mine: "Liberty Mine", Features: []string{"Camas Land"}, Locality: "Liberty"}

	first, err := NewEvaluator(DefaultConfig(), rec, build()).Resolve()
	require.NoError(t, err)
	second, err := NewEvaluator(DefaultConfig(), rec, build()).Resolve()
	require.NoError(t, err)

	wktFirst, err := first.Geometry.WKT()
	require.NoError(t, err)
	wktSecond, err := second.Geometry.WKT()
	require.NoError(t, err)
	assert.Equal(t, wktFirst, wktSecond)
	assert.Equal(t, first.Interpretations, second.Interpretations)
	assert.Equal(t, first.Explanation, second.Explanation)
}

func TestStatusRejected(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusRejectedDisjoint.Rejected())
	assert.True(t, StatusRejectedEncompassed.Rejected())
	assert.False(t, StatusSelected.Rejected())
	assert.False(t, StatusAdmin.Rejected())
}
