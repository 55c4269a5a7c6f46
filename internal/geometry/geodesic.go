package geometry

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// EarthRadiusKm is the mean earth radius used for all geodesic math.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometers between
// two lat/lng pairs.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dphi := (lat2 - lat1) * math.Pi / 180
	dlam := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dphi/2)*math.Sin(dphi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dlam/2)*math.Sin(dlam/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// TranslateKm moves a lat/lng point distKm kilometers along the given
// azimuth (degrees clockwise from north) using the spherical direct
// formula.
func TranslateKm(lat, lng, azimuth, distKm float64) (float64, float64) {
	phi1 := lat * math.Pi / 180
	lam1 := lng * math.Pi / 180
	brg := azimuth * math.Pi / 180
	ang := distKm / EarthRadiusKm

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(ang) +
		math.Cos(phi1)*math.Sin(ang)*math.Cos(brg))
	lam2 := lam1 + math.Atan2(
		math.Sin(brg)*math.Sin(ang)*math.Cos(phi1),
		math.Cos(ang)-math.Sin(phi1)*math.Sin(phi2))

	return phi2 * 180 / math.Pi, NormalizeLng(lam2 * 180 / math.Pi)
}

// compassAzimuths maps 16-point compass bearings to azimuths in
// degrees clockwise from north.
var compassAzimuths = map[string]float64{
	"N": 0, "NNE": 22.5, "NE": 45, "ENE": 67.5,
	"E": 90, "ESE": 112.5, "SE": 135, "SSE": 157.5,
	"S": 180, "SSW": 202.5, "SW": 225, "WSW": 247.5,
	"W": 270, "WNW": 292.5, "NW": 315, "NNW": 337.5,
}

var quadrantBearing = regexp.MustCompile(`^([NS])\s*(\d+(?:\.\d+)?)\s*([EW])$`)

// Azimuth converts a compass bearing ("NNE") or a quadrant bearing
// ("N30E") to an azimuth in degrees clockwise from north.
func Azimuth(bearing string) (float64, error) {
	b := stripAbbrevDots(strings.ToUpper(strings.TrimSpace(bearing)))
	b = strings.Join(strings.Fields(b), "")
	if az, ok := compassAzimuths[b]; ok {
		return az, nil
	}
	if m := quadrantBearing.FindStringSubmatch(b); m != nil {
		deg, _ := strconv.ParseFloat(m[2], 64)
		if deg > 90 {
			return 0, eris.Errorf("geometry: quadrant bearing out of range: %q", bearing)
		}
		switch m[1] + m[3] {
		case "NE":
			return deg, nil
		case "SE":
			return 180 - deg, nil
		case "SW":
			return 180 + deg, nil
		case "NW":
			return 360 - deg, nil
		}
	}
	return 0, eris.Errorf("geometry: unrecognized bearing: %q", bearing)
}

// stripAbbrevDots drops abbreviation periods ("N.W.") while keeping
// decimal points inside numbers ("N22.5E").
func stripAbbrevDots(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r == '.' {
			prevDigit := i > 0 && s[i-1] >= '0' && s[i-1] <= '9'
			nextDigit := i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9'
			if !prevDigit || !nextDigit {
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// AzimuthUncertainty returns the angular error in degrees implied by
// the coarseness of a stated azimuth. Cardinal directions imply up to
// 45 degrees of slop, intercardinals 22.5, and so on down to 5.75 for
// azimuths finer than the 16-point compass.
func AzimuthUncertainty(azimuth float64) float64 {
	switch {
	case math.Mod(azimuth, 90) == 0:
		return 45
	case math.Mod(azimuth, 45) == 0:
		return 22.5
	case math.Mod(azimuth, 22.5) == 0:
		return 11.25
	default:
		return 5.75
	}
}

// SpokeKm returns the half-diagonal of a square box with the given
// inradius, the radius needed for a circle to cover the box.
func SpokeKm(distKm float64) float64 {
	return math.Sqrt2 * distKm
}

// TranslateWithUncertainty displaces a point along a bearing and
// returns the envelope covering the angular and distance uncertainty
// of the displacement. Distance toward the extreme bearings is scaled
// up so the envelope still covers the stated distance along the
// nominal azimuth.
func TranslateWithUncertainty(lat, lng, minKm, maxKm float64, bearing string) (*Shape, error) {
	azimuth, err := Azimuth(bearing)
	if err != nil {
		return nil, err
	}
	errDeg := AzimuthUncertainty(azimuth)
	scale := 1 / math.Cos(errDeg*math.Pi/180)
	if minKm < 0 || maxKm <= 0 || minKm > maxKm {
		return nil, eris.Errorf("geometry: bad distance range: %g-%g km", minKm, maxKm)
	}

	coords := make([][]float64, 0, 5)
	for _, az := range []float64{azimuth - errDeg, azimuth + errDeg} {
		for _, d := range []float64{minKm, maxKm * scale} {
			clat, clng := TranslateKm(lat, lng, math.Mod(az+360, 360), d)
			coords = append(coords, []float64{clng, clat})
		}
	}
	// Close the ring in corner order min/max on one arm, max/min on
	// the other so the polygon does not self-intersect.
	ring := [][]float64{coords[0], coords[1], coords[3], coords[2], coords[0]}
	return NewPolygon(ring)
}
