package gazetteer

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockGazetteer(t *testing.T) (*PostgresGazetteer, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresGazetteer{pool: mock}, mock
}

var siteColumnNames = []string{
	"location_id", "name", "site_class", "site_kind", "continent_code",
	"country_code", "admin1", "admin2", "population", "lat", "lng",
	"geometry", "synonyms", "source",
}

func TestPostgresGazetteer_Get(t *testing.T) {
	g, mock := newMockGazetteer(t)

	rows := pgxmock.NewRows(siteColumnNames).AddRow(
		"5805687", "Olympia", "P", "PPLA", "NA", "US", "WA", "067",
		int64(55605), 47.03787, -122.9007, nil, `["Olimpia"]`, "GeoNames")
	mock.ExpectQuery(`SELECT .+ FROM features WHERE location_id = \$1`).
		WithArgs("5805687").
		WillReturnRows(rows)

	site, err := g.Get(context.Background(), "5805687")
	require.NoError(t, err)
	require.NotNil(t, site)
	assert.Equal(t, "Olympia", site.Name)
	assert.Equal(t, "WA", site.Admin1)
	assert.Equal(t, []string{"Olimpia"}, site.Synonyms)
	require.NotNil(t, site.Geometry)
	assert.True(t, site.Geometry.IsPoint())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGazetteer_Get_NotFound(t *testing.T) {
	g, mock := newMockGazetteer(t)

	mock.ExpectQuery(`SELECT .+ FROM features WHERE location_id = \$1`).
		WithArgs("0").
		WillReturnError(pgx.ErrNoRows)

	site, err := g.Get(context.Background(), "0")
	require.NoError(t, err)
	assert.Nil(t, site)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGazetteer_Search(t *testing.T) {
	g, mock := newMockGazetteer(t)

	rows := pgxmock.NewRows(siteColumnNames).AddRow(
		"5805687", "Olympia", "P", "PPLA", "NA", "US", "WA", "067",
		int64(55605), 47.03787, -122.9007, nil, nil, "GeoNames")
	mock.ExpectQuery(`SELECT DISTINCT f\.location_id.+n\.st_name = ANY\(\$1\)`).
		WithArgs([]string{"olympia"}, "US", 1).
		WillReturnRows(rows)

	sites, err := g.Search(context.Background(), SearchParams{
		Name: "Olympia", CountryCode: "US", Limit: 1,
	})
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "5805687", sites[0].LocationID)
	assert.Equal(t, []string{"GeoNames"}, sites[0].Sources)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGazetteer_Search_NoMatch(t *testing.T) {
	g, mock := newMockGazetteer(t)

	empty := pgxmock.NewRows(siteColumnNames)
	mock.ExpectQuery(`n\.st_name = ANY\(\$1\)`).
		WithArgs([]string{"atlantis"}, 100).
		WillReturnRows(empty)
	mock.ExpectQuery(`n\.st_name LIKE \$1`).
		WithArgs("atlantis%", 100).
		WillReturnRows(pgxmock.NewRows(siteColumnNames))

	sites, err := g.Search(context.Background(), SearchParams{Name: "Atlantis"})
	require.NoError(t, err)
	assert.Empty(t, sites)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGazetteer_InsertSites(t *testing.T) {
	g, mock := newMockGazetteer(t)

	mock.ExpectCopyFrom(pgx.Identifier{"features"}, featureColumnList).WillReturnResult(1)
	mock.ExpectCopyFrom(pgx.Identifier{"names"}, []string{"location_id", "st_name"}).WillReturnResult(1)

	err := g.insertSites(context.Background(), []*Site{{
		LocationID: "5793933",
		Name:       "Ellensburg",
		SiteClass:  "P",
		SiteKind:   "PPL",
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}