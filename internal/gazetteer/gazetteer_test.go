package gazetteer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collections-lab/georef-cli/internal/geometry"
)

func TestStandardizeName(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"Ellensburg":      "ellensburg",
		"St. Paul's Río":  "st-paul-s-rio",
		"Mount  Rainier":  "mount-rainier",
		"  O'Hara Creek ": "o-hara-creek",
		"---":             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, StandardizeName(in), in)
	}
}

func TestSortedNameKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, SortedNameKey("Lake Andrew"), SortedNameKey("Andrew Lake"))
	assert.NotEqual(t, SortedNameKey("Lake Andrew"), SortedNameKey("Lake Andrews"))
	assert.Equal(t, "", SortedNameKey("  "))
}

func TestSearchNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"pike-s-peak", "pikespeak"}, searchNames("Pike's Peak"))
	assert.Equal(t, []string{"olympia"}, searchNames("Olympia"))
	assert.Nil(t, searchNames(""))
}

func TestCodesForFeature(t *testing.T) {
	t.Parallel()
	assert.Equal(t, CodesRivers, CodesForFeature("creek"))
	assert.Equal(t, CodesStatesProvinces, CodesForFeature("state_province"))
	assert.Equal(t, CodesMarine, CodesForFeature("Sea"))
	assert.Nil(t, CodesForFeature("unknown-kind"))
}

func TestClassRank(t *testing.T) {
	t.Parallel()
	assert.Less(t, ClassRank("A"), ClassRank("P"))
	assert.Less(t, ClassRank("P"), ClassRank("H"))
	assert.Less(t, ClassRank("U"), ClassRank(""))
}

func TestCodePredicates(t *testing.T) {
	t.Parallel()
	assert.True(t, IsMarineCode("SEA"))
	assert.False(t, IsMarineCode("PPL"))
	assert.True(t, IsAdminCode("ADM2"))
	assert.True(t, IsCountryCode("PCLI"))
	assert.True(t, IsRiverCode("STM"))
	assert.True(t, IsIslandCode("ATOL"))
	assert.True(t, IsUnderseaCode("TRGU"))
	assert.True(t, IsCapitalCode("PPLC"))
	assert.False(t, IsCapitalCode("PPL"))
}

func TestSizeIndexKm(t *testing.T) {
	t.Parallel()
	assert.Equal(t, float64(1000), SizeIndexKm("PCLI"))
	assert.Equal(t, float64(5), SizeIndexKm("PPL"))
	assert.Equal(t, float64(10), SizeIndexKm("XXXX"))
}

func TestSiteHasName(t *testing.T) {
	t.Parallel()
	site := &Site{Name: "Andrew Lake", Synonyms: []string{"Lac André"}}
	assert.True(t, site.HasName("Lake Andrew"))
	assert.True(t, site.HasName("lac andre"))
	assert.False(t, site.HasName("Lake Andrews"))
}

func TestSiteCompareAttr(t *testing.T) {
	t.Parallel()
	site := &Site{Name: "Olympia", CountryCode: "US", Admin1: "WA"}

	assert.Equal(t, 1, site.CompareAttr("country", []string{site.CountryCode}, []string{"US"}))
	assert.Equal(t, -1, site.CompareAttr("admin1", []string{site.Admin1}, []string{"OR"}))
	assert.Equal(t, 0, site.CompareAttr("admin2", nil, []string{"Thurston"}))
	assert.True(t, site.Contradicted())
	assert.Equal(t, "admin1=-|admin2=0|country=+", site.FilterKey())
}

func TestSiteClone(t *testing.T) {
	t.Parallel()
	site := &Site{
		LocationID: "5805687",
		Name:       "Olympia",
		Filter:     map[string]int{"name": 1},
		Sources:    []string{"GeoNames"},
	}
	clone := site.Clone()
	clone.Filter["country"] = -1
	clone.Sources = append(clone.Sources, "other")

	assert.NotContains(t, site.Filter, "country")
	assert.Len(t, site.Sources, 1)
}

func TestSiteSubsection(t *testing.T) {
	t.Parallel()
	box, err := geometry.NewBox(40, -110, 44, -106)
	require.NoError(t, err)
	site := &Site{LocationID: "1", Name: "Test Area", Geometry: box}

	sub := site.Subsection("NE")
	require.NotSame(t, site, sub)
	assert.Equal(t, "1_NE", sub.LocationID)
	assert.Equal(t, "NE Test Area", sub.Name)
	require.Len(t, sub.RelatedSites, 1)
	assert.Same(t, site, sub.RelatedSites[0])

	minLat, minLng, maxLat, maxLng := sub.Geometry.LatLngBounds()
	assert.InDelta(t, 42, minLat, 1e-9)
	assert.InDelta(t, -108, minLng, 1e-9)
	assert.InDelta(t, 44, maxLat, 1e-9)
	assert.InDelta(t, -106, maxLng, 1e-9)

	// Unrecognized directions leave the site alone.
	assert.Same(t, site, site.Subsection("across"))
}

func TestApplySizeHint(t *testing.T) {
	t.Parallel()
	country := &Site{LocationID: "1", SiteKind: "PCLI"}
	town := &Site{LocationID: "2", SiteKind: "PPL"}

	kept := applySizeHint([]*Site{country, town}, SizeVeryLarge)
	require.Len(t, kept, 1)
	assert.Equal(t, "1", kept[0].LocationID)

	// The hint never empties the result set.
	kept = applySizeHint([]*Site{town}, SizeVeryLarge)
	require.Len(t, kept, 1)

	kept = applySizeHint([]*Site{country, town}, SizeNormal)
	assert.Len(t, kept, 2)
}

func TestSortSites(t *testing.T) {
	t.Parallel()
	sites := []*Site{
		{LocationID: "3", SiteClass: "H"},
		{LocationID: "2", SiteClass: "P", Population: 100},
		{LocationID: "1", SiteClass: "P", Population: 5000},
		{LocationID: "0", SiteClass: "A"},
	}
	sortSites(sites)
	ids := make([]string, len(sites))
	for i, s := range sites {
		ids[i] = s.LocationID
	}
	assert.Equal(t, []string{"0", "1", "2", "3"}, ids)
}

func TestParseDumpRow(t *testing.T) {
	t.Parallel()
	line := "5805687\tOlympia\tOlympia\tOlimpia,Olympie\t47.03787\t-122.9007\tP\tPPLA\tUS\t\tWA\t067\t\t\t55605\t29\t32\tAmerica/Los_Angeles\t2023-01-01"
	site, err := parseDumpRow(strings.Split(line, "\t"))
	require.NoError(t, err)

	assert.Equal(t, "5805687", site.LocationID)
	assert.Equal(t, "Olympia", site.Name)
	assert.Equal(t, []string{"Olimpia", "Olympie"}, site.Synonyms)
	assert.Equal(t, "P", site.SiteClass)
	assert.Equal(t, "PPLA", site.SiteKind)
	assert.Equal(t, "US", site.CountryCode)
	assert.Equal(t, "NA", site.ContinentCode)
	assert.Equal(t, "WA", site.Admin1)
	assert.Equal(t, "067", site.Admin2)
	assert.Equal(t, int64(55605), site.Population)
	require.NotNil(t, site.Geometry)
	lat, lng := site.Geometry.Centroid()
	assert.InDelta(t, 47.03787, lat, 1e-6)
	assert.InDelta(t, -122.9007, lng, 1e-6)

	_, err = parseDumpRow([]string{"too", "short"})
	assert.Error(t, err)
}
