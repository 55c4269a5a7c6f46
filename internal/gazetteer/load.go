package gazetteer

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/collections-lab/georef-cli/internal/geometry"
)

// Store is a writable gazetteer backend.
type Store interface {
	Lookup
	Migrate(ctx context.Context) error
	insertSites(ctx context.Context, sites []*Site) error
}

// loadBatchSize bounds how many sites go into one insert transaction.
const loadBatchSize = 5000

// LoadTSV fills a gazetteer from a GeoNames text dump. Lines that do
// not parse are skipped and counted, not fatal; the dump ships with a
// handful of malformed rows. Returns the number of sites loaded.
func LoadTSV(ctx context.Context, store Store, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var batch []*Site
	var loaded, skipped int
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		site, err := parseDumpRow(strings.Split(line, "\t"))
		if err != nil {
			skipped++
			continue
		}
		batch = append(batch, site)
		if len(batch) >= loadBatchSize {
			if err := store.insertSites(ctx, batch); err != nil {
				return loaded, err
			}
			loaded += len(batch)
			batch = batch[:0]
			zap.L().Debug("gazetteer: load progress", zap.Int("loaded", loaded))
		}
	}
	if err := scanner.Err(); err != nil {
		return loaded, eris.Wrap(err, "gazetteer: read dump")
	}
	if err := store.insertSites(ctx, batch); err != nil {
		return loaded, err
	}
	loaded += len(batch)
	if skipped > 0 {
		zap.L().Warn("gazetteer: skipped dump rows", zap.Int("skipped", skipped))
	}
	zap.L().Info("gazetteer: load complete", zap.Int("loaded", loaded))
	return loaded, nil
}

// parseDumpRow maps one GeoNames dump line to a site. The dump has 19
// tab-separated columns: id, name, ascii name, alternate names,
// lat, lng, feature class, feature code, country, cc2, admin1-4,
// population, elevation, dem, timezone, modification date.
func parseDumpRow(fields []string) (*Site, error) {
	if len(fields) < 15 {
		return nil, eris.Errorf("gazetteer: dump row has %d columns", len(fields))
	}
	lat, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return nil, eris.Wrap(err, "gazetteer: parse latitude")
	}
	lng, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return nil, eris.Wrap(err, "gazetteer: parse longitude")
	}

	name := strings.TrimSpace(fields[1])
	var synonyms []string
	// A few dump rows pack several names into the name column.
	if strings.Contains(name, ",") {
		parts := strings.Split(name, ",")
		name = strings.TrimSpace(parts[0])
		for _, p := range parts[1:] {
			if p = strings.TrimSpace(p); p != "" {
				synonyms = append(synonyms, p)
			}
		}
	}
	if ascii := strings.TrimSpace(fields[2]); ascii != "" && ascii != name {
		synonyms = append(synonyms, ascii)
	}
	for _, alt := range strings.Split(fields[3], ",") {
		if alt = strings.TrimSpace(alt); alt != "" && alt != name {
			synonyms = append(synonyms, alt)
		}
	}

	var population int64
	if fields[14] != "" {
		population, _ = strconv.ParseInt(fields[14], 10, 64)
	}

	country := strings.TrimSpace(fields[8])
	return &Site{
		LocationID:    fields[0],
		Name:          name,
		SiteClass:     strings.TrimSpace(fields[6]),
		SiteKind:      strings.TrimSpace(fields[7]),
		ContinentCode: continentForCountry(country),
		CountryCode:   country,
		Admin1:        strings.TrimSpace(fields[10]),
		Admin2:        strings.TrimSpace(fields[11]),
		Population:    population,
		Synonyms:      synonyms,
		Geometry:      geometry.NewPoint(lat, lng),
		Sources:       []string{"GeoNames"},
	}, nil
}

// ShapefileOptions names the attribute fields to read when loading
// polygonal features from a shapefile.
type ShapefileOptions struct {
	// IDField and NameField name the attribute columns holding the
	// location id and feature name. IDField may be empty, in which
	// case ids are derived from the name and record number.
	IDField   string
	NameField string

	SiteClass   string
	SiteKind    string
	CountryCode string
	Admin1      string
	Source      string
}

// LoadShapefile fills a gazetteer with polygonal features from a
// shapefile, one site per record. Non-polygon shapes fall back to
// their bounding box. Returns the number of sites loaded.
func LoadShapefile(ctx context.Context, store Store, shpPath string, opts ShapefileOptions) (int, error) {
	if opts.NameField == "" {
		return 0, eris.New("gazetteer: shapefile load needs a name field")
	}
	reader, err := shp.Open(shpPath)
	if err != nil {
		return 0, eris.Wrapf(err, "gazetteer: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	attr := func(rec int, field string) string {
		idx, ok := fieldIdx[strings.ToLower(field)]
		if !ok {
			return ""
		}
		val := strings.TrimRight(reader.Attribute(idx), "\x00")
		return strings.TrimSpace(val)
	}

	source := opts.Source
	if source == "" {
		source = shpPath
	}

	var batch []*Site
	var loaded, skipped int
	for rec := 0; reader.Next(); rec++ {
		_, shape := reader.Shape()
		name := attr(rec, opts.NameField)
		if name == "" || shape == nil {
			skipped++
			continue
		}
		geomShape, err := shapeGeometry(shape)
		if err != nil {
			skipped++
			continue
		}
		id := ""
		if opts.IDField != "" {
			id = attr(rec, opts.IDField)
		}
		if id == "" {
			id = StandardizeName(name) + "-" + strconv.Itoa(rec)
		}
		batch = append(batch, &Site{
			LocationID:  id,
			Name:        name,
			SiteClass:   opts.SiteClass,
			SiteKind:    opts.SiteKind,
			CountryCode: opts.CountryCode,
			Admin1:      opts.Admin1,
			ContinentCode: continentForCountry(opts.CountryCode),
			Geometry:    geomShape,
			Sources:     []string{source},
		})
		if len(batch) >= loadBatchSize {
			if err := store.insertSites(ctx, batch); err != nil {
				return loaded, err
			}
			loaded += len(batch)
			batch = batch[:0]
		}
	}
	if err := store.insertSites(ctx, batch); err != nil {
		return loaded, err
	}
	loaded += len(batch)
	if skipped > 0 {
		zap.L().Debug("gazetteer: skipped shapefile records",
			zap.String("path", shpPath), zap.Int("skipped", skipped))
	}
	return loaded, nil
}

// shapeGeometry converts a shapefile shape to a lat/lng geometry.
// Polygons keep their outer ring; everything else uses its bounding
// box, which over-covers but never under-covers.
func shapeGeometry(shape shp.Shape) (*geometry.Shape, error) {
	switch s := shape.(type) {
	case *shp.Point:
		return geometry.NewPoint(s.Y, s.X), nil
	case *shp.Polygon:
		end := len(s.Points)
		if len(s.Parts) > 1 {
			end = int(s.Parts[1])
		}
		ring := make([][]float64, 0, end)
		for _, p := range s.Points[:end] {
			ring = append(ring, []float64{p.X, p.Y})
		}
		return geometry.NewPolygon(ring)
	default:
		box := shape.BBox()
		return geometry.NewBox(box.MinY, box.MinX, box.MaxY, box.MaxX)
	}
}

// continentForCountry maps ISO country codes to GeoNames continent
// codes. The dump itself does not carry the continent.
func continentForCountry(country string) string {
	return countryToContinent[strings.ToUpper(country)]
}

var countryToContinent = map[string]string{
	"AD": "EU", "AE": "AS", "AF": "AS", "AG": "NA", "AI": "NA", "AL": "EU",
	"AM": "AS", "AO": "AF", "AQ": "AN", "AR": "SA", "AS": "OC", "AT": "EU",
	"AU": "OC", "AW": "NA", "AX": "EU", "AZ": "AS", "BA": "EU", "BB": "NA",
	"BD": "AS", "BE": "EU", "BF": "AF", "BG": "EU", "BH": "AS", "BI": "AF",
	"BJ": "AF", "BL": "NA", "BM": "NA", "BN": "AS", "BO": "SA", "BQ": "NA",
	"BR": "SA", "BS": "NA", "BT": "AS", "BV": "AN", "BW": "AF", "BY": "EU",
	"BZ": "NA", "CA": "NA", "CC": "AS", "CD": "AF", "CF": "AF", "CG": "AF",
	"CH": "EU", "CI": "AF", "CK": "OC", "CL": "SA", "CM": "AF", "CN": "AS",
	"CO": "SA", "CR": "NA", "CU": "NA", "CV": "AF", "CW": "NA", "CX": "AS",
	"CY": "AS", "CZ": "EU", "DE": "EU", "DJ": "AF", "DK": "EU", "DM": "NA",
	"DO": "NA", "DZ": "AF", "EC": "SA", "EE": "EU", "EG": "AF", "EH": "AF",
	"ER": "AF", "ES": "EU", "ET": "AF", "FI": "EU", "FJ": "OC", "FK": "SA",
	"FM": "OC", "FO": "EU", "FR": "EU", "GA": "AF", "GB": "EU", "GD": "NA",
	"GE": "AS", "GF": "SA", "GG": "EU", "GH": "AF", "GI": "EU", "GL": "NA",
	"GM": "AF", "GN": "AF", "GP": "NA", "GQ": "AF", "GR": "EU", "GS": "AN",
	"GT": "NA", "GU": "OC", "GW": "AF", "GY": "SA", "HK": "AS", "HM": "AN",
	"HN": "NA", "HR": "EU", "HT": "NA", "HU": "EU", "ID": "AS", "IE": "EU",
	"IL": "AS", "IM": "EU", "IN": "AS", "IO": "AS", "IQ": "AS", "IR": "AS",
	"IS": "EU", "IT": "EU", "JE": "EU", "JM": "NA", "JO": "AS", "JP": "AS",
	"KE": "AF", "KG": "AS", "KH": "AS", "KI": "OC", "KM": "AF", "KN": "NA",
	"KP": "AS", "KR": "AS", "KW": "AS", "KY": "NA", "KZ": "AS", "LA": "AS",
	"LB": "AS", "LC": "NA", "LI": "EU", "LK": "AS", "LR": "AF", "LS": "AF",
	"LT": "EU", "LU": "EU", "LV": "EU", "LY": "AF", "MA": "AF", "MC": "EU",
	"MD": "EU", "ME": "EU", "MF": "NA", "MG": "AF", "MH": "OC", "MK": "EU",
	"ML": "AF", "MM": "AS", "MN": "AS", "MO": "AS", "MP": "OC", "MQ": "NA",
	"MR": "AF", "MS": "NA", "MT": "EU", "MU": "AF", "MV": "AS", "MW": "AF",
	"MX": "NA", "MY": "AS", "MZ": "AF", "NA": "AF", "NC": "OC", "NE": "AF",
	"NF": "OC", "NG": "AF", "NI": "NA", "NL": "EU", "NO": "EU", "NP": "AS",
	"NR": "OC", "NU": "OC", "NZ": "OC", "OM": "AS", "PA": "NA", "PE": "SA",
	"PF": "OC", "PG": "OC", "PH": "AS", "PK": "AS", "PL": "EU", "PM": "NA",
	"PN": "OC", "PR": "NA", "PS": "AS", "PT": "EU", "PW": "OC", "PY": "SA",
	"QA": "AS", "RE": "AF", "RO": "EU", "RS": "EU", "RU": "EU", "RW": "AF",
	"SA": "AS", "SB": "OC", "SC": "AF", "SD": "AF", "SE": "EU", "SG": "AS",
	"SH": "AF", "SI": "EU", "SJ": "EU", "SK": "EU", "SL": "AF", "SM": "EU",
	"SN": "AF", "SO": "AF", "SR": "SA", "SS": "AF", "ST": "AF", "SV": "NA",
	"SX": "NA", "SY": "AS", "SZ": "AF", "TC": "NA", "TD": "AF", "TF": "AN",
	"TG": "AF", "TH": "AS", "TJ": "AS", "TK": "OC", "TL": "AS", "TM": "AS",
	"TN": "AF", "TO": "OC", "TR": "AS", "TT": "NA", "TV": "OC", "TW": "AS",
	"TZ": "AF", "UA": "EU", "UG": "AF", "UM": "OC", "US": "NA", "UY": "SA",
	"UZ": "AS", "VA": "EU", "VC": "NA", "VE": "SA", "VG": "NA", "VI": "NA",
	"VN": "AS", "VU": "OC", "WF": "OC", "WS": "OC", "YE": "AS", "YT": "AF",
	"ZA": "AF", "ZM": "AF", "ZW": "AF",
}
