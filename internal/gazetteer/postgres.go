package gazetteer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/collections-lab/georef-cli/internal/db"
)

// PostgresGazetteer implements Lookup over the same schema as the
// SQLite backend, for shared installs where several workers read one
// gazetteer.
type PostgresGazetteer struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects a gazetteer to an existing Postgres database.
func NewPostgres(ctx context.Context, connString string) (*PostgresGazetteer, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "gazetteer: parse postgres config")
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gazetteer: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "gazetteer: ping")
	}
	return &PostgresGazetteer{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS features (
	location_id    TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	site_class     TEXT,
	site_kind      TEXT,
	continent_code TEXT,
	country_code   TEXT,
	admin1         TEXT,
	admin2         TEXT,
	population     BIGINT NOT NULL DEFAULT 0,
	lat            DOUBLE PRECISION,
	lng            DOUBLE PRECISION,
	geometry       TEXT,
	synonyms       TEXT,
	source         TEXT NOT NULL DEFAULT 'GeoNames'
);

CREATE TABLE IF NOT EXISTS names (
	location_id TEXT NOT NULL REFERENCES features(location_id),
	st_name     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_names_st_name ON names(st_name);
CREATE INDEX IF NOT EXISTS idx_names_location_id ON names(location_id);
CREATE INDEX IF NOT EXISTS idx_features_country ON features(country_code, admin1);
`

// Migrate creates the gazetteer tables if they do not exist.
func (g *PostgresGazetteer) Migrate(ctx context.Context) error {
	_, err := g.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "gazetteer: migrate")
}

// Close releases the connection pool.
func (g *PostgresGazetteer) Close() error {
	if g.closeFn != nil {
		g.closeFn()
	}
	return nil
}

// Get retrieves a single site by location id. A missing id returns
// nil, not an error.
func (g *PostgresGazetteer) Get(ctx context.Context, locationID string) (*Site, error) {
	row := g.pool.QueryRow(ctx,
		`SELECT `+siteColumns+` FROM features WHERE location_id = $1`, locationID)
	site, err := scanSite(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "gazetteer: get site")
	}
	return site, nil
}

// Search looks up sites by standardized name, constrained by the
// params. It returns an empty slice when nothing matches.
func (g *PostgresGazetteer) Search(ctx context.Context, params SearchParams) ([]*Site, error) {
	stNames := searchNames(params.Name)
	if len(stNames) == 0 {
		return nil, nil
	}
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	exactArgs := []any{stNames}
	where, args := pgSearchFilter(params, len(exactArgs)+1)
	exactArgs = append(exactArgs, args...)
	sites, err := g.query(ctx, `n.st_name = ANY($1)`+where,
		append(exactArgs, limit))
	if err != nil {
		return nil, err
	}

	if len(sites) < limit && len(stNames[0]) >= 3 {
		prefixArgs := []any{stNames[0] + "%"}
		where, args := pgSearchFilter(params, len(prefixArgs)+1)
		prefixArgs = append(prefixArgs, args...)
		more, err := g.query(ctx, `n.st_name LIKE $1`+where,
			append(prefixArgs, limit-len(sites)))
		if err != nil {
			return nil, err
		}
		sites = append(sites, more...)
	}

	sites = dedupeSites(sites)
	sites = applySizeHint(sites, params.Size)
	sortSites(sites)
	return sites, nil
}

func (g *PostgresGazetteer) query(ctx context.Context, where string, args []any) ([]*Site, error) {
	rows, err := g.pool.Query(ctx,
		`SELECT DISTINCT f.location_id, f.name, f.site_class, f.site_kind,
			f.continent_code, f.country_code, f.admin1, f.admin2,
			f.population, f.lat, f.lng, f.geometry, f.synonyms, f.source
		FROM features f JOIN names n ON n.location_id = f.location_id
		WHERE `+where+`
		ORDER BY `+classOrderSQL+`, f.population DESC, f.location_id
		LIMIT $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, eris.Wrap(err, "gazetteer: search")
	}
	defer rows.Close()

	var sites []*Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "gazetteer: scan site")
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "gazetteer: iterate sites")
	}
	return sites, nil
}

// pgSearchFilter renders the optional constraints as AND clauses with
// numbered placeholders starting at next.
func pgSearchFilter(params SearchParams, next int) (string, []any) {
	var b strings.Builder
	var args []any
	add := func(column string, val any) {
		fmt.Fprintf(&b, " AND %s = $%d", column, next)
		args = append(args, val)
		next++
	}
	addIn := func(column string, vals []string) {
		fmt.Fprintf(&b, " AND %s = ANY($%d)", column, next)
		args = append(args, vals)
		next++
	}
	if params.CountryCode != "" {
		add("f.country_code", params.CountryCode)
	}
	if params.Admin1 != "" {
		add("f.admin1", params.Admin1)
	}
	if params.Admin2 != "" {
		add("f.admin2", params.Admin2)
	}
	if params.ContinentCode != "" {
		add("f.continent_code", params.ContinentCode)
	}
	if len(params.Codes) > 0 {
		addIn("f.site_kind", params.Codes)
	}
	if len(params.Classes) > 0 {
		addIn("f.site_class", params.Classes)
	}
	return b.String(), args
}

// featureColumnList orders the columns for bulk COPY loads.
var featureColumnList = []string{
	"location_id", "name", "site_class", "site_kind", "continent_code",
	"country_code", "admin1", "admin2", "population", "lat", "lng",
	"geometry", "synonyms", "source",
}

// insertSites bulk-loads one batch of features and their name keys
// using the COPY protocol.
func (g *PostgresGazetteer) insertSites(ctx context.Context, sites []*Site) error {
	if len(sites) == 0 {
		return nil
	}
	featureRows := make([][]any, 0, len(sites))
	var nameRows [][]any
	for _, site := range sites {
		row, err := featureValues(site)
		if err != nil {
			return err
		}
		featureRows = append(featureRows, row)
		for _, st := range nameKeys(site) {
			nameRows = append(nameRows, []any{site.LocationID, st})
		}
	}
	if _, err := db.CopyFrom(ctx, g.pool, "features", featureColumnList, featureRows); err != nil {
		return eris.Wrap(err, "gazetteer: copy features")
	}
	if _, err := db.CopyFrom(ctx, g.pool, "names", []string{"location_id", "st_name"}, nameRows); err != nil {
		return eris.Wrap(err, "gazetteer: copy names")
	}
	return nil
}

// featureValues renders a site as one row in featureColumnList order.
func featureValues(site *Site) ([]any, error) {
	var lat, lng, geomJSON any
	if site.Geometry != nil {
		la, ln := site.Geometry.Centroid()
		lat, lng = la, ln
		if !site.Geometry.IsPoint() {
			data, err := site.Geometry.GeoJSON()
			if err != nil {
				return nil, eris.Wrapf(err, "gazetteer: encode geometry for %s", site.LocationID)
			}
			geomJSON = string(data)
		}
	}
	var synonyms any
	if len(site.Synonyms) > 0 {
		data, err := json.Marshal(site.Synonyms)
		if err != nil {
			return nil, eris.Wrapf(err, "gazetteer: encode synonyms for %s", site.LocationID)
		}
		synonyms = string(data)
	}
	source := "GeoNames"
	if len(site.Sources) > 0 {
		source = site.Sources[0]
	}
	return []any{site.LocationID, site.Name, site.SiteClass, site.SiteKind,
		site.ContinentCode, site.CountryCode, site.Admin1, site.Admin2,
		site.Population, lat, lng, geomJSON, synonyms, source}, nil
}
