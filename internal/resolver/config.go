package resolver

// Config holds the heuristic constants the evaluator steers by. The
// defaults reproduce the tuning the resolution rules were developed
// against; override MaxDistKm per record when the source data carries
// its own uncertainty.
type Config struct {
	// MaxDistKm is the largest acceptable uncertainty radius for a
	// routine resolution.
	MaxDistKm float64

	// MaxSites aborts resolution when a record matches more
	// candidates than can be meaningfully reconciled.
	MaxSites int

	// ResizeFactor scales geometries before containment and
	// intersection tests to absorb digitization slop.
	ResizeFactor float64

	// AdminBufferKm pads the smallest administrative polygon before
	// rejecting candidates that fall outside it.
	AdminBufferKm float64

	// ShelfWidthKm is how far a terrestrial geometry extends into
	// open water when the record names an ocean or sea.
	ShelfWidthKm float64

	// SpecificityFactor and SpecificityFloorKm bound which name
	// groups count as specific relative to the most specific group.
	SpecificityFactor  float64
	SpecificityFloorKm float64

	// OutlierRadiusFactor and OutlierFloorKm set the distance beyond
	// which a candidate disjoint from every other name is an outlier.
	OutlierRadiusFactor float64
	OutlierFloorKm      float64

	// AdminRelaxKm replaces MaxDistKm when the record never held
	// anything more specific than administrative divisions.
	AdminRelaxKm float64
}

// DefaultConfig returns the standard evaluator tuning.
func DefaultConfig() Config {
	return Config{
		MaxDistKm:           100,
		MaxSites:            150,
		ResizeFactor:        1.1,
		AdminBufferKm:       100,
		ShelfWidthKm:        50,
		SpecificityFactor:   1.5,
		SpecificityFloorKm:  10,
		OutlierRadiusFactor: 5,
		OutlierFloorKm:      25,
		AdminRelaxKm:        10000,
	}
}
