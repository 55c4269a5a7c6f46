package gazetteer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/collections-lab/georef-cli/internal/geometry"
)

// SQLiteGazetteer implements Lookup over a local SQLite database in
// the GeoNames dump schema: one features table, one standardized-name
// table joining back to it.
type SQLiteGazetteer struct {
	db *sql.DB
}

// NewSQLite opens a SQLite gazetteer at the given path and configures
// WAL mode.
func NewSQLite(dsn string) (*SQLiteGazetteer, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "gazetteer: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "gazetteer: exec %s", pragma)
		}
	}
	return &SQLiteGazetteer{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS features (
	location_id    TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	site_class     TEXT,
	site_kind      TEXT,
	continent_code TEXT,
	country_code   TEXT,
	admin1         TEXT,
	admin2         TEXT,
	population     INTEGER NOT NULL DEFAULT 0,
	lat            REAL,
	lng            REAL,
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
func (g *SQLiteGazetteer) Migrate(ctx context.Context) error {
	_, err := g.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "gazetteer: migrate")
}

// Close releases the underlying database handle.
func (g *SQLiteGazetteer) Close() error {
	return g.db.Close()
}

const siteColumns = `location_id, name, site_class, site_kind, continent_code,
	country_code, admin1, admin2, population, lat, lng, geometry, synonyms, source`

// Get retrieves a single site by location id. A missing id returns
// nil, not an error.
func (g *SQLiteGazetteer) Get(ctx context.Context, locationID string) (*Site, error) {
	row := g.db.QueryRowContext(ctx,
		`SELECT `+siteColumns+` FROM features WHERE location_id = ?`, locationID)
	site, err := scanSite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "gazetteer: get site")
	}
	return site, nil
}

// Search looks up sites by standardized name, constrained by the
// params. It returns an empty slice when nothing matches.
func (g *SQLiteGazetteer) Search(ctx context.Context, params SearchParams) ([]*Site, error) {
	stNames := searchNames(params.Name)
	if len(stNames) == 0 {
		return nil, nil
	}
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	where, args := searchFilter(params)
	exact := fmt.Sprintf(`n.st_name IN (%s)`, placeholders(len(stNames)))
	exactArgs := make([]any, 0, len(stNames)+len(args)+1)
	for _, n := range stNames {
		exactArgs = append(exactArgs, n)
	}
	exactArgs = append(exactArgs, args...)

	sites, err := g.query(ctx, exact+where, append(exactArgs, limit))
	if err != nil {
		return nil, err
	}

	// Extend short result sets with a prefix match so clipped or
	// partially transcribed names still hit.
	if len(sites) < limit && len(stNames[0]) >= 3 {
		prefixArgs := make([]any, 0, len(args)+2)
		prefixArgs = append(prefixArgs, stNames[0]+"%")
		prefixArgs = append(prefixArgs, args...)
		more, err := g.query(ctx, `n.st_name LIKE ?`+where, append(prefixArgs, limit-len(sites)))
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

func (g *SQLiteGazetteer) query(ctx context.Context, where string, args []any) ([]*Site, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT DISTINCT f.location_id, f.name, f.site_class, f.site_kind,
			f.continent_code, f.country_code, f.admin1, f.admin2,
			f.population, f.lat, f.lng, f.geometry, f.synonyms, f.source
		FROM features f JOIN names n ON n.location_id = f.location_id
		WHERE `+where+`
		ORDER BY `+classOrderSQL+`, f.population DESC, f.location_id
		LIMIT ?`, args...)
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

// classOrderSQL ranks feature classes the same way ClassRank does.
const classOrderSQL = `CASE f.site_class
	WHEN 'A' THEN 1 WHEN 'P' THEN 2 WHEN 'H' THEN 3
	WHEN 'L' THEN 4 WHEN 'T' THEN 5 WHEN 'V' THEN 6
	WHEN 'S' THEN 7 WHEN 'R' THEN 8 WHEN 'U' THEN 9
	ELSE 10 END`

// searchFilter renders the optional constraints as AND clauses.
func searchFilter(params SearchParams) (string, []any) {
	var b strings.Builder
	var args []any
	add := func(clause string, vals ...any) {
		b.WriteString(" AND ")
		b.WriteString(clause)
		args = append(args, vals...)
	}
	if params.CountryCode != "" {
		add("f.country_code = ?", params.CountryCode)
	}
	if params.Admin1 != "" {
		add("f.admin1 = ?", params.Admin1)
	}
	if params.Admin2 != "" {
		add("f.admin2 = ?", params.Admin2)
	}
	if params.ContinentCode != "" {
		add("f.continent_code = ?", params.ContinentCode)
	}
	if len(params.Codes) > 0 {
		add(fmt.Sprintf("f.site_kind IN (%s)", placeholders(len(params.Codes))),
			toAnys(params.Codes)...)
	}
	if len(params.Classes) > 0 {
		add(fmt.Sprintf("f.site_class IN (%s)", placeholders(len(params.Classes))),
			toAnys(params.Classes)...)
	}
	return b.String(), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toAnys(vals []string) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSite(row scannable) (*Site, error) {
	var site Site
	var class, kind, continent, country, admin1, admin2 sql.NullString
	var lat, lng sql.NullFloat64
	var geomJSON, synonyms, source sql.NullString
	err := row.Scan(&site.LocationID, &site.Name, &class, &kind, &continent,
		&country, &admin1, &admin2, &site.Population, &lat, &lng,
		&geomJSON, &synonyms, &source)
	if err != nil {
		return nil, err
	}
	site.SiteClass = class.String
	site.SiteKind = kind.String
	site.ContinentCode = continent.String
	site.CountryCode = country.String
	site.Admin1 = admin1.String
	site.Admin2 = admin2.String
	if synonyms.Valid && synonyms.String != "" {
		if err := json.Unmarshal([]byte(synonyms.String), &site.Synonyms); err != nil {
			return nil, eris.Wrapf(err, "gazetteer: decode synonyms for %s", site.LocationID)
		}
	}
	if source.Valid && source.String != "" {
		site.Sources = []string{source.String}
	}
	switch {
	case geomJSON.Valid && geomJSON.String != "":
		shape, err := geometry.FromGeoJSON([]byte(geomJSON.String))
		if err != nil {
			return nil, eris.Wrapf(err, "gazetteer: decode geometry for %s", site.LocationID)
		}
		site.Geometry = shape
	case lat.Valid && lng.Valid:
		site.Geometry = geometry.NewPoint(lat.Float64, lng.Float64)
	}
	return &site, nil
}

// insertSites writes one batch of features and their name keys inside
// a single transaction. Existing rows with the same location id are
// replaced, so reloading a dump is idempotent.
func (g *SQLiteGazetteer) insertSites(ctx context.Context, sites []*Site) error {
	if len(sites) == 0 {
		return nil
	}
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "gazetteer: begin insert")
	}
	defer tx.Rollback()

	insertFeature, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO features (`+siteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "gazetteer: prepare feature insert")
	}
	defer insertFeature.Close()

	deleteNames, err := tx.PrepareContext(ctx,
		`DELETE FROM names WHERE location_id = ?`)
	if err != nil {
		return eris.Wrap(err, "gazetteer: prepare name delete")
	}
	defer deleteNames.Close()

	insertName, err := tx.PrepareContext(ctx,
		`INSERT INTO names (location_id, st_name) VALUES (?, ?)`)
	if err != nil {
		return eris.Wrap(err, "gazetteer: prepare name insert")
	}
	defer insertName.Close()

	for _, site := range sites {
		var lat, lng any
		var geomJSON any
		if site.Geometry != nil {
			if site.Geometry.IsPoint() {
				la, ln := site.Geometry.Centroid()
				lat, lng = la, ln
			} else {
				data, err := site.Geometry.GeoJSON()
				if err != nil {
					return eris.Wrapf(err, "gazetteer: encode geometry for %s", site.LocationID)
				}
				geomJSON = string(data)
				la, ln := site.Geometry.Centroid()
				lat, lng = la, ln
			}
		}
		var synonyms any
		if len(site.Synonyms) > 0 {
			data, err := json.Marshal(site.Synonyms)
			if err != nil {
				return eris.Wrapf(err, "gazetteer: encode synonyms for %s", site.LocationID)
			}
			synonyms = string(data)
		}
		source := "GeoNames"
		if len(site.Sources) > 0 {
			source = site.Sources[0]
		}
		_, err := insertFeature.ExecContext(ctx, site.LocationID, site.Name,
			site.SiteClass, site.SiteKind, site.ContinentCode, site.CountryCode,
			site.Admin1, site.Admin2, site.Population, lat, lng, geomJSON,
			synonyms, source)
		if err != nil {
			return eris.Wrapf(err, "gazetteer: insert feature %s", site.LocationID)
		}

		if _, err := deleteNames.ExecContext(ctx, site.LocationID); err != nil {
			return eris.Wrapf(err, "gazetteer: clear names for %s", site.LocationID)
		}
		for _, st := range nameKeys(site) {
			if _, err := insertName.ExecContext(ctx, site.LocationID, st); err != nil {
				return eris.Wrapf(err, "gazetteer: insert name for %s", site.LocationID)
			}
		}
	}
	return eris.Wrap(tx.Commit(), "gazetteer: commit insert")
}

// nameKeys returns the deduped standardized keys for a site's name
// and synonyms.
func nameKeys(site *Site) []string {
	seen := map[string]struct{}{}
	var keys []string
	for _, name := range site.Names() {
		for _, st := range searchNames(name) {
			if _, ok := seen[st]; ok {
				continue
			}
			seen[st] = struct{}{}
			keys = append(keys, st)
		}
	}
	return keys
}
