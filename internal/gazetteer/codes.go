// Package gazetteer defines the candidate-site model and the lookup
// backends used to resolve feature names to places. The schema and code
// sets follow the GeoNames text dump (feature class + feature code per
// record, alternate names in a side table).
package gazetteer

import "strings"

// GeoNames feature-code sets grouped by the coarse feature kinds the
// locality grammar produces. A site's SiteKind is its GeoNames feature
// code; its SiteClass is the one-letter feature class.
var (
	CodesAdmin = []string{
		"ADM1", "ADM2", "ADM3", "ADM4", "ADM5",
		"ADM1H", "ADM2H", "ADM3H", "ADM4H", "ADM5H",
		"ADMD", "ZONE",
	}
	CodesCanals = []string{
		"CNL", "CNLA", "CNLB", "CNLD", "CNLI", "CNLN", "CNLQ", "CNLX",
		"DTCH", "DTCHD", "DTCHI", "DTCHM", "TNLC",
	}
	CodesCountries = []string{
		"PCL", "PCLD", "PCLF", "PCLH", "PCLI", "PCLIX", "PCLS", "TERR",
	}
	CodesDeserts = []string{"DSRT", "DUNE", "ERG", "HMDA", "REG", "SAND"}
	CodesIslands = []string{
		"ATOL", "ISL", "ISLET", "ISLF", "ISLM", "ISLS", "ISLT",
		"RK", "RKS", "SMU", "SMSU", "TMSU", "TMTU",
	}
	CodesLakes = []string{
		"LBED", "LGN", "LGNS", "LGNX", "LK", "LKC", "LKI", "LKN", "LKNI",
		"LKO", "LKOI", "LKS", "LKSB", "LKSC", "LKSI", "LKSN", "LKSNI",
		"LKX", "MFGN", "OAS", "PND", "PNDI", "PNDN", "PNDNI", "PNDS",
		"PNDSF", "PNDSI", "PNDSN", "POOL", "POOLI", "RSV", "RSVI", "RSVT",
	}
	CodesMarine         = []string{"CHN", "CHNL", "CHNM", "CHNN", "GULF", "OCN", "SEA", "STRT"}
	CodesMountains      = []string{"MT", "NTK", "PK", "RDGE", "SPUR", "VLC"}
	CodesMountainRanges = []string{"MTS", "NTKS", "PKS", "UPLD", "VLC"}
	CodesMunicipalities = []string{
		"PPL", "PPLA", "PPLA2", "PPLA3", "PPLA4", "PPLA5", "PPLC",
		"PPLCH", "PPLF", "PPLG", "PPLH", "PPLL", "PPLQ", "PPLR",
		"PPLS", "PPLW", "PPLX", "STLMT",
	}
	CodesParks = []string{
		"PRK", "RES", "RESA", "RESF", "RESH", "RESN", "RESP", "RESV", "RESW",
	}
	CodesReefs = []string{"ATOL", "RF", "RFC", "RFX", "RFSU", "RFU"}
	CodesRivers = []string{
		"CNFL", "CRKT", "RCH", "RPDS", "SBED", "STM", "STMA", "STMB",
		"STMC", "STMD", "STMH", "STMI", "STMIX", "STMM", "STMQ", "STMS",
		"STMSB", "STMX", "WTRC",
	}
	CodesShores = []string{
		"BAY", "BAYS", "BGHT", "COVE", "FJD", "FJDS", "LGN", "LGNS",
		"GULF", "INLT", "INLTQ", "SD", "SHOR",
	}
	CodesStatesProvinces = []string{"ADM1", "ADM1H"}
	CodesValleys         = []string{
		"GRGE", "RVN", "VAL", "VALG", "VALS", "VALX",
		"WAD", "WADB", "WADJ", "WADM", "WADS", "WADX",
	}
	CodesVolcanoes = []string{"CLDA", "CONE", "FSR", "VLC", "VLF", "VLS"}
	CodesWetlands  = []string{"CRKT", "MRSH", "MRSHN", "SWMP", "WTLD", "WTLDI"}
	CodesUndersea  = []string{
		"APNU", "ARCU", "ARRU", "BDLU", "BKSU", "BNKU", "BSNU", "CDAU",
		"CNSU", "CNYU", "CRSU", "DEPU", "EDGU", "ESCU", "FANU", "FLTU",
		"FRZU", "FURU", "GAPU", "GLYU", "HLLU", "HLSU", "HOLU", "KNLU",
		"KNSU", "LDGU", "LEVU", "MESU", "MNDU", "MOTU", "MTU", "PKSU",
		"PKU", "PLNU", "PLTU", "PNLU", "PRVU", "RDGU", "RDSU", "RFSU",
		"RFU", "RISU", "SCNU", "SCSU", "SDLU", "SHFU", "SHLU", "SHSU",
		"SHVU", "SILU", "SLPU", "SMSU", "SMU", "SPRU", "TERU", "TMSU",
		"TMTU", "TNGU", "TRGU", "TRNU", "VALU", "VLSU",
	}
)

// featureToCodes maps the grammar's coarse feature-kind tokens to the
// GeoNames codes worth searching for that kind. Kinds without an entry
// search unrestricted.
var featureToCodes = map[string][]string{
	"admin":          CodesAdmin,
	"county":         CodesAdmin,
	"district":       CodesAdmin,
	"department":     CodesAdmin,
	"province":       CodesStatesProvinces,
	"state":          CodesStatesProvinces,
	"state_province": CodesStatesProvinces,
	"country":        CodesCountries,

	"city":         CodesMunicipalities,
	"town":         CodesMunicipalities,
	"village":      CodesMunicipalities,
	"municipality": CodesMunicipalities,

	"bay":     CodesShores,
	"cove":    CodesShores,
	"inlet":   CodesShores,
	"shore":   CodesShores,
	"sound":   CodesShores,
	"lagoon":  CodesShores,
	"canal":   CodesCanals,
	"channel": CodesMarine,
	"gulf":    CodesMarine,
	"ocean":   CodesMarine,
	"sea":     CodesMarine,
	"strait":  CodesMarine,
	"marine":  CodesMarine,

	"island":        CodesIslands,
	"islet":         CodesIslands,
	"atoll":         CodesIslands,
	"archipelago":   CodesIslands,
	"island_group":  CodesIslands,
	"islands":       CodesIslands,
	"reef":          CodesReefs,
	"bank":          CodesUndersea,
	"seamount":      CodesUndersea,
	"trench":        CodesUndersea,
	"ridge":         CodesMountains,
	"mountain":      CodesMountains,
	"peak":          CodesMountains,
	"summit":        CodesMountains,
	"butte":         CodesMountains,
	"mesa":          CodesMountains,
	"mountains":     CodesMountainRanges,
	"range":         CodesMountainRanges,
	"plateau":       CodesMountainRanges,
	"volcano":       CodesVolcanoes,
	"crater":        {"CRTR"},
	"caldera":       CodesVolcanoes,
	"maar":          CodesVolcanoes,
	"lake":          CodesLakes,
	"pond":          CodesLakes,
	"reservoir":     CodesLakes,
	"river":         CodesRivers,
	"creek":         CodesRivers,
	"stream":        CodesRivers,
	"tributary":     CodesRivers,
	"spring":        CodesRivers,
	"valley":        CodesValleys,
	"canyon":        CodesValleys,
	"gorge":         CodesValleys,
	"desert":        CodesDeserts,
	"marsh":         CodesWetlands,
	"swamp":         CodesWetlands,
	"forest":        CodesParks,
	"park":          CodesParks,
	"preserve":      CodesParks,
	"reserve":       CodesParks,
}

// CodesForFeature returns the GeoNames codes to search for a grammar
// feature kind. A nil result means no code restriction applies.
func CodesForFeature(kind string) []string {
	if codes, ok := featureToCodes[strings.ToLower(kind)]; ok {
		return codes
	}
	return nil
}

// classRank orders GeoNames feature classes for result sorting. Lower
// is better: administrative and populated places ahead of hydrographic
// and terrain features, undersea last.
var classRank = map[string]int{
	"A": 1, "P": 2, "H": 3, "L": 4, "T": 5, "V": 6, "S": 7, "R": 8, "U": 9,
}

// ClassRank returns the sort rank for a feature class. Unknown classes
// sort after all known ones.
func ClassRank(class string) int {
	if r, ok := classRank[class]; ok {
		return r
	}
	return len(classRank) + 1
}

func codeSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

var (
	marineSet   = codeSet(CodesMarine)
	adminSet    = codeSet(CodesAdmin)
	countrySet  = codeSet(CodesCountries)
	riverSet    = codeSet(CodesRivers)
	islandSet   = codeSet(CodesIslands)
	shoreSet    = codeSet(CodesShores)
	underseaSet = codeSet(CodesUndersea)
)

// IsMarineCode reports whether a feature code names open water.
func IsMarineCode(code string) bool {
	_, ok := marineSet[code]
	return ok
}

// IsAdminCode reports whether a feature code names an administrative
// division below the country level.
func IsAdminCode(code string) bool {
	_, ok := adminSet[code]
	return ok
}

// IsCountryCode reports whether a feature code names a country or
// country-like political entity.
func IsCountryCode(code string) bool {
	_, ok := countrySet[code]
	return ok
}

// IsRiverCode reports whether a feature code names a stream feature.
// Streams matter to resolution because their gazetteer geometries are
// usually points far less precise than the feature itself.
func IsRiverCode(code string) bool {
	_, ok := riverSet[code]
	return ok
}

// IsIslandCode reports whether a feature code names an island feature.
func IsIslandCode(code string) bool {
	_, ok := islandSet[code]
	return ok
}

// IsShoreCode reports whether a feature code names a coastal feature.
func IsShoreCode(code string) bool {
	_, ok := shoreSet[code]
	return ok
}

// IsUnderseaCode reports whether a feature code names an undersea
// feature.
func IsUnderseaCode(code string) bool {
	_, ok := underseaSet[code]
	return ok
}

// IsCapitalCode reports whether a populated-place code marks a seat of
// government (national or first-order administrative).
func IsCapitalCode(code string) bool {
	return code == "PPLC" || code == "PPLA"
}

// sizeIndexKm gives a nominal radius per feature code for codes whose
// extent differs markedly from the 10 km default. Used when a record
// carries only a point geometry.
var sizeIndexKm = map[string]float64{
	"PCL": 1000, "PCLD": 1000, "PCLF": 1000, "PCLH": 1000, "PCLI": 1000,
	"PCLIX": 1000, "PCLS": 1000, "TERR": 500,
	"ADM1": 250, "ADM1H": 250, "ADM2": 50, "ADM2H": 50,
	"ADM3": 25, "ADM4": 10, "ADM5": 5, "ADMD": 50, "ZONE": 50,
	"OCN": 5000, "SEA": 1000, "GULF": 500, "STRT": 100,
	"CHN": 50, "CHNL": 50, "CHNM": 50, "CHNN": 50,
	"CONT": 5000, "RGN": 250, "UPLD": 100,
	"MTS": 100, "PKS": 100, "DSRT": 250,
	"ISLS": 50, "ATOL": 25,
	"STM": 50, "STMA": 50, "WTRC": 25,
	"PPL": 5, "PPLA": 25, "PPLC": 25, "PPLX": 2, "PPLL": 2,
	"MT": 5, "PK": 2, "VLC": 5, "HLL": 2,
	"SPNG": 1, "WLL": 1, "CRTR": 2, "RK": 1, "RKS": 2, "ISLET": 1,
}

// SizeIndexKm returns the nominal radius in km for a feature code.
func SizeIndexKm(code string) float64 {
	if r, ok := sizeIndexKm[code]; ok {
		return r
	}
	return 10
}
