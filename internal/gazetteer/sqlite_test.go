package gazetteer

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collections-lab/georef-cli/internal/geometry"
)

const testDump = `5805687	Olympia	Olympia	Olimpia,Olympie	47.03787	-122.9007	P	PPLA	US		WA	067			55605	29	32	America/Los_Angeles	2023-01-01
264637	Olympia	Olympia		37.63333	21.63333	P	PPL	GR		13				150	50	52	Europe/Athens	2023-01-01
5793933	Ellensburg	Ellensburg		46.99654	-120.54785	P	PPL	US		WA	037			18728	462	464	America/Los_Angeles	2023-01-01
4574324	Columbia River	Columbia River		46.24652	-124.05351	H	STM	US		WA				0	0	1	America/Los_Angeles	2023-01-01
5815135	Washington	Washington	State of Washington	47.50012	-120.50147	A	ADM1	US		WA				7705281	0	478	America/Los_Angeles	2023-01-01
`

func newTestGazetteer(t *testing.T) *SQLiteGazetteer {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "gazetteer.db")
	g, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() }) //nolint:errcheck
	require.NoError(t, g.Migrate(context.Background()))

	n, err := LoadTSV(context.Background(), g, strings.NewReader(testDump))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	return g
}

func TestSQLiteGazetteer_Get(t *testing.T) {
	g := newTestGazetteer(t)
	ctx := context.Background()

	site, err := g.Get(ctx, "5805687")
	require.NoError(t, err)
	require.NotNil(t, site)
	assert.Equal(t, "Olympia", site.Name)
	assert.Equal(t, "PPLA", site.SiteKind)
	assert.Equal(t, []string{"Olimpia", "Olympie"}, site.Synonyms)
	assert.Equal(t, []string{"GeoNames"}, site.Sources)
	require.NotNil(t, site.Geometry)
	assert.True(t, site.Geometry.IsPoint())

	missing, err := g.Get(ctx, "0")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteGazetteer_Search(t *testing.T) {
	g := newTestGazetteer(t)
	ctx := context.Background()

	t.Run("by name", func(t *testing.T) {
		sites, err := g.Search(ctx, SearchParams{Name: "Olympia"})
		require.NoError(t, err)
		require.Len(t, sites, 2)
		// The state capital outranks the Greek village by population.
		assert.Equal(t, "5805687", sites[0].LocationID)
	})

	t.Run("country filter", func(t *testing.T) {
		sites, err := g.Search(ctx, SearchParams{Name: "Olympia", CountryCode: "GR"})
		require.NoError(t, err)
		require.Len(t, sites, 1)
		assert.Equal(t, "264637", sites[0].LocationID)
	})

	t.Run("admin filter", func(t *testing.T) {
		sites, err := g.Search(ctx, SearchParams{
			Name: "Ellensburg", CountryCode: "US", Admin1: "WA",
		})
		require.NoError(t, err)
		require.Len(t, sites, 1)
		assert.Equal(t, "037", sites[0].Admin2)
	})

	t.Run("synonym", func(t *testing.T) {
		sites, err := g.Search(ctx, SearchParams{Name: "Olimpia"})
		require.NoError(t, err)
		require.Len(t, sites, 1)
		assert.Equal(t, "5805687", sites[0].LocationID)
	})

	t.Run("code restriction", func(t *testing.T) {
		sites, err := g.Search(ctx, SearchParams{Name: "Columbia River", Codes: CodesRivers})
		require.NoError(t, err)
		require.Len(t, sites, 1)
		assert.Equal(t, "STM", sites[0].SiteKind)
	})

	t.Run("class restriction", func(t *testing.T) {
		sites, err := g.Search(ctx, SearchParams{Name: "Washington", Classes: []string{"A"}})
		require.NoError(t, err)
		require.Len(t, sites, 1)
		assert.Equal(t, "ADM1", sites[0].SiteKind)
	})

	t.Run("prefix fallback", func(t *testing.T) {
		sites, err := g.Search(ctx, SearchParams{Name: "Ellensbur"})
		require.NoError(t, err)
		require.Len(t, sites, 1)
		assert.Equal(t, "5793933", sites[0].LocationID)
	})

	t.Run("no match", func(t *testing.T) {
		sites, err := g.Search(ctx, SearchParams{Name: "Atlantis"})
		require.NoError(t, err)
		assert.Empty(t, sites)
	})

	t.Run("blank name", func(t *testing.T) {
		sites, err := g.Search(ctx, SearchParams{Name: "  "})
		require.NoError(t, err)
		assert.Empty(t, sites)
	})

	t.Run("size hint", func(t *testing.T) {
		sites, err := g.Search(ctx, SearchParams{Name: "Washington", Size: SizeVeryLarge})
		require.NoError(t, err)
		require.Len(t, sites, 1)
		assert.Equal(t, "ADM1", sites[0].SiteKind)
	})
}

func TestSQLiteGazetteer_PolygonRoundTrip(t *testing.T) {
	g := newTestGazetteer(t)
	ctx := context.Background()

	box, err := geometry.NewBox(46.5, -121.5, 47.5, -120.0)
	require.NoError(t, err)
	require.NoError(t, g.insertSites(ctx, []*Site{{
		LocationID: "custom-1",
		Name:       "Kittitas County",
		SiteClass:  "A",
		SiteKind:   "ADM2",
		CountryCode: "US",
		Admin1:     "WA",
		Geometry:   box,
		Sources:    []string{"custom"},
	}}))

	site, err := g.Get(ctx, "custom-1")
	require.NoError(t, err)
	require.NotNil(t, site)
	require.NotNil(t, site.Geometry)
	assert.False(t, site.Geometry.IsPoint())
	minLat, minLng, maxLat, maxLng := site.Geometry.LatLngBounds()
	assert.InDelta(t, 46.5, minLat, 1e-6)
	assert.InDelta(t, -121.5, minLng, 1e-6)
	assert.InDelta(t, 47.5, maxLat, 1e-6)
	assert.InDelta(t, -120.0, maxLng, 1e-6)
	assert.Equal(t, []string{"custom"}, site.Sources)
	assert.Greater(t, site.RadiusKm(), 50.0)

	t.Run("reload is idempotent", func(t *testing.T) {
		require.NoError(t, g.insertSites(ctx, []*Site{{
			LocationID: "custom-1",
			Name:       "Kittitas County",
			SiteClass:  "A",
			SiteKind:   "ADM2",
			Geometry:   box,
		}}))
		sites, err := g.Search(ctx, SearchParams{Name: "Kittitas County"})
		require.NoError(t, err)
		assert.Len(t, sites, 1)
	})
}
