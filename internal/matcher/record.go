// Package matcher routes parsed locality references to the lookup
// strategy appropriate to their grammar kind and collects candidate
// sites for the evaluator. Each locality field is parsed once, then
// every reference is matched against the gazetteer (or the PLSS
// webservice) under the record's administrative constraints.
package matcher

import (
	"strings"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
)

// Record is one specimen locality record. String fields hold verbatim
// text; slice fields allow multiple values separated in the source
// data. The *Code fields carry ISO / GeoNames admin codes when the
// source provides them and are used to constrain gazetteer searches.
type Record struct {
	LocationID string

	Continent      string
	Country        string
	StateProvince  []string
	County         []string
	Municipality   string
	Island         string
	IslandGroup    string
	WaterBody      []string
	Features       []string
	Mine           string
	MiningDistrict string
	Volcano        string
	Ocean          string
	SeaGulf        string
	BaySound       string
	Locality       string

	ContinentCode string
	CountryCode   string
	Admin1        []string
	Admin2        []string
}

// fieldSpec binds a record field to the feature codes worth searching
// for names found in it. Nil codes leave the search unrestricted.
type fieldSpec struct {
	name  string
	codes []string
}

// orderedFields lists the locality fields in resolution order, most
// constrained first. Admin fields come before named features so their
// matches are available as search context for everything below them.
var orderedFields = []fieldSpec{
	{"country", gazetteer.CodesCountries},
	{"state_province", gazetteer.CodesStatesProvinces},
	{"county", gazetteer.CodesAdmin},
	{"municipality", gazetteer.CodesMunicipalities},
	{"island", gazetteer.CodesIslands},
	{"island_group", gazetteer.CodesIslands},
	{"ocean", []string{"OCN"}},
	{"sea_gulf", gazetteer.CodesMarine},
	{"bay_sound", gazetteer.CodesShores},
	{"water_body", waterBodyCodes()},
	{"mine", []string{"MN", "MNA", "MNC", "MNCR", "MNCU", "MNFE", "MNMT", "MNN", "MNQ", "MNQR"}},
	{"mining_district", []string{"MNA"}},
	{"volcano", gazetteer.CodesVolcanoes},
	{"features", nil},
	{"locality", nil},
}

func waterBodyCodes() []string {
	var out []string
	out = append(out, gazetteer.CodesLakes...)
	out = append(out, gazetteer.CodesRivers...)
	out = append(out, gazetteer.CodesCanals...)
	return out
}

// adminFields are the fields whose matches constrain searches on the
// remaining fields, broadest first.
var adminFields = []string{"country", "state_province", "county"}

// Values returns the raw text values for a named field. Unknown field
// names return nil.
func (r *Record) Values(field string) []string {
	switch field {
	case "country":
		return single(r.Country)
	case "state_province":
		return nonBlank(r.StateProvince)
	case "county":
		return nonBlank(r.County)
	case "municipality":
		return single(r.Municipality)
	case "island":
		return single(r.Island)
	case "island_group":
		return single(r.IslandGroup)
	case "ocean":
		return single(r.Ocean)
	case "sea_gulf":
		return single(r.SeaGulf)
	case "bay_sound":
		return single(r.BaySound)
	case "water_body":
		return nonBlank(r.WaterBody)
	case "mine":
		return single(r.Mine)
	case "mining_district":
		return single(r.MiningDistrict)
	case "volcano":
		return single(r.Volcano)
	case "features":
		return nonBlank(r.Features)
	case "locality":
		return single(r.Locality)
	}
	return nil
}

// IsAdminOnly reports whether the record names administrative units
// and nothing else. Such records resolve to the broadest declared
// admin polygon when nothing more specific is available.
func (r *Record) IsAdminOnly() bool {
	populated := false
	for _, spec := range orderedFields {
		if len(r.Values(spec.name)) == 0 {
			continue
		}
		populated = true
		if !isAdminField(spec.name) {
			return false
		}
	}
	return populated
}

func isAdminField(field string) bool {
	for _, f := range adminFields {
		if f == field {
			return true
		}
	}
	return false
}

func single(val string) []string {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil
	}
	return []string{val}
}

func nonBlank(vals []string) []string {
	var out []string
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// FieldMinRadiusKm returns the smallest nominal radius among the
// feature codes a field accepts, a floor on the uncertainty implied by
// a value in that field that could not be matched.
func FieldMinRadiusKm(field string) float64 {
	for _, spec := range orderedFields {
		if spec.name != field {
			continue
		}
		if len(spec.codes) == 0 {
			return 10
		}
		min := gazetteer.SizeIndexKm(spec.codes[0])
		for _, code := range spec.codes[1:] {
			if r := gazetteer.SizeIndexKm(code); r < min {
				min = r
			}
		}
		return min
	}
	return 10
}
