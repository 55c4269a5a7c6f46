package matcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
	"github.com/collections-lab/georef-cli/internal/geometry"
)

// fakeLookup answers searches from a fixed site list, honoring the
// name, code, admin, and size constraints the way the real backends
// do. Results are cloned so annotation never touches the fixtures.
type fakeLookup struct {
	sites []*gazetteer.Site
}

func (f *fakeLookup) Search(_ context.Context, params gazetteer.SearchParams) ([]*gazetteer.Site, error) {
	want := gazetteer.StandardizeName(params.Name)
	var out []*gazetteer.Site
	for _, site := range f.sites {
		if !matchesName(site, want) {
			continue
		}
		if len(params.Codes) > 0 && !containsCode(params.Codes, site.SiteKind) {
			continue
		}
		if params.CountryCode != "" && site.CountryCode != params.CountryCode {
			continue
		}
		if params.Admin1 != "" && site.Admin1 != "" && site.Admin1 != params.Admin1 {
			continue
		}
		if params.Admin2 != "" && site.Admin2 != "" && site.Admin2 != params.Admin2 {
			continue
		}
		if site.RadiusKm() < params.Size.MinRadiusKm() {
			continue
		}
		out = append(out, site.Clone())
	}
	return out, nil
}

func (f *fakeLookup) Get(_ context.Context, locationID string) (*gazetteer.Site, error) {
	for _, site := range f.sites {
		if site.LocationID == locationID {
			return site.Clone(), nil
		}
	}
	return nil, nil
}

func (f *fakeLookup) Close() error { return nil }

func matchesName(site *gazetteer.Site, want string) bool {
	for _, name := range site.Names() {
		if gazetteer.StandardizeName(name) == want {
			return true
		}
	}
	return false
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func mustBox(t *testing.T, minLat, minLng, maxLat, maxLng float64) *geometry.Shape {
	t.Helper()
	shape, err := geometry.NewBox(minLat, minLng, maxLat, maxLng)
	require.NoError(t, err)
	return shape
}

func kittitasFixtures(t *testing.T) *fakeLookup {
	t.Helper()
	return &fakeLookup{sites: []*gazetteer.Site{
		{
			LocationID:  "6252001",
			Name:        "United States",
			SiteClass:   "A",
			SiteKind:    "PCLI",
			CountryCode: "US",
			Geometry:    mustBox(t, 24.5, -124.8, 49.0, -66.9),
		},
		{
			LocationID:  "5815135",
			Name:        "Washington",
			SiteClass:   "A",
			SiteKind:    "ADM1",
			CountryCode: "US",
			Admin1:      "WA",
			Geometry:    mustBox(t, 45.5, -124.8, 49.0, -116.9),
		},
		{
			LocationID:  "5793933",
			Name:        "Ellensburg",
			SiteClass:   "P",
			SiteKind:    "PPL",
			CountryCode: "US",
			Admin1:      "WA",
			Admin2:      "037",
			Geometry:    geometry.NewPoint(46.9965, -120.5478),
			Sources:     []string{"GeoNames"},
		},
		{
			LocationID:  "5799783",
			Name:        "Kittitas",
			SiteClass:   "P",
			SiteKind:    "PPL",
			CountryCode: "US",
			Admin1:      "WA",
			Admin2:      "037",
			Geometry:    geometry.NewPoint(46.9829, -120.4170),
			Sources:     []string{"GeoNames"},
		},
	}}
}

func kittitasRecord() *Record {
	return &Record{
		Country:       "United States",
		StateProvince: []string{"Washington"},
		CountryCode:   "US",
		Admin1:        []string{"WA"},
	}
}

func resultForField(t *testing.T, out *Output, field string) MatchResult {
	t.Helper()
	for _, res := range out.Results {
		if res.Field == field {
			return res
		}
	}
	t.Fatalf("no result for field %q", field)
	return MatchResult{}
}

func TestProcessNameMatch(t *testing.T) {
	t.Parallel()
	pipe := New(kittitasFixtures(t))
	rec := kittitasRecord()
	rec.Locality = "Ellensburg"

	out, err := pipe.Process(context.Background(), rec)
	require.NoError(t, err)

	res := resultForField(t, out, "locality")
	require.Len(t, res.Sites, 1)
	site := res.Sites[0]
	assert.Equal(t, "5793933", site.LocationID)
	assert.Equal(t, "locality", site.Field)
	assert.Equal(t, 1, site.Filter["name"])
	assert.Equal(t, 1, site.Filter["country_code"])
	assert.Equal(t, 1, site.Filter["admin_code_1"])
	assert.False(t, site.Contradicted())

	country := resultForField(t, out, "country")
	require.Len(t, country.Sites, 1)
	assert.Equal(t, "6252001", country.Sites[0].LocationID)

	assert.Empty(t, out.Missed())
	assert.Empty(t, out.Leftovers)
}

func TestProcessDirection(t *testing.T) {
	t.Parallel()
	pipe := New(kittitasFixtures(t))
	rec := kittitasRecord()
	rec.Locality = "5 mi W of Ellensburg"

	out, err := pipe.Process(context.Background(), rec)
	require.NoError(t, err)

	res := resultForField(t, out, "locality")
	require.Len(t, res.Sites, 1)
	site := res.Sites[0]
	assert.Equal(t, "5793933_DIR", site.LocationID)
	assert.Equal(t, "direction", site.SiteKind)
	require.Len(t, site.RelatedSites, 1)
	assert.Equal(t, "5793933", site.RelatedSites[0].LocationID)
	assert.Equal(t, []string{"GeoNames"}, site.Sources)

	// The displaced envelope sits west of the anchor.
	require.NotNil(t, site.Geometry)
	_, lng := site.Geometry.Centroid()
	assert.Less(t, lng, -120.5478)
	lat, _ := site.Geometry.Centroid()
	assert.InDelta(t, 46.9965, lat, 0.2)
}

func TestProcessBetween(t *testing.T) {
	t.Parallel()
	pipe := New(kittitasFixtures(t))
	rec := kittitasRecord()
	rec.Locality = "Between Ellensburg and Kittitas"

	out, err := pipe.Process(context.Background(), rec)
	require.NoError(t, err)

	res := resultForField(t, out, "locality")
	require.Len(t, res.Sites, 1)
	site := res.Sites[0]
	assert.Equal(t, "5793933_5799783_BETWEEN", site.LocationID)
	assert.Equal(t, "between", site.SiteKind)
	assert.Len(t, site.RelatedSites, 2)
	assert.Equal(t, "US", site.CountryCode)
	assert.Equal(t, "WA", site.Admin1)

	require.NotNil(t, site.Geometry)
	lat, lng := site.Geometry.Centroid()
	assert.InDelta(t, 46.99, lat, 0.05)
	assert.Greater(t, lng, -120.5478)
	assert.Less(t, lng, -120.4170)
}

func TestProcessVeryLargeRetry(t *testing.T) {
	t.Parallel()
	// The ocean carries no country code, so the admin-constrained
	// search misses and the very large retry has to find it.
	pipe := New(&fakeLookup{sites: []*gazetteer.Site{
		{
			LocationID: "2363254",
			Name:       "Pacific Ocean",
			SiteClass:  "H",
			SiteKind:   "OCN",
			Geometry:   geometry.NewPoint(0, -160),
		},
	}})
	rec := &Record{CountryCode: "US", Ocean: "Pacific Ocean"}

	out, err := pipe.Process(context.Background(), rec)
	require.NoError(t, err)

	res := resultForField(t, out, "ocean")
	require.Len(t, res.Sites, 1)
	assert.Equal(t, "2363254", res.Sites[0].LocationID)
}

func TestProcessMissedAndLeftovers(t *testing.T) {
	t.Parallel()
	pipe := New(&fakeLookup{})
	rec := &Record{Locality: "Umtanum Creek"}

	out, err := pipe.Process(context.Background(), rec)
	require.NoError(t, err)

	assert.Empty(t, out.Sites())
	missed := out.Missed()
	require.NotEmpty(t, missed)
	assert.True(t, strings.Contains(strings.Join(missed, " "), "Umtanum"))
}

func TestRecordIsAdminOnly(t *testing.T) {
	t.Parallel()
	rec := &Record{Country: "United States", StateProvince: []string{"Washington"}}
	assert.True(t, rec.IsAdminOnly())

	rec.Locality = "Ellensburg"
	assert.False(t, rec.IsAdminOnly())

	assert.False(t, (&Record{}).IsAdminOnly())
}
