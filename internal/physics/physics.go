// Package physics implements the radio-propagation cost model: great-circle
// distance, Earth-curvature bulge, and the combined link-cost
// negative-log-likelihood penalty used to prune the candidate transition
// graph (section 4.A).
package physics

import (
	"math"

	"github.com/meshpath/reconstructor/internal/model"
	"github.com/meshpath/reconstructor/internal/terrain"
)

// EarthRadiusKm is the sphere radius used for the haversine approximation.
const EarthRadiusKm = 6371.0

// EarthRadiusM is EarthRadiusKm expressed in meters, used by EarthBulge.
const EarthRadiusM = EarthRadiusKm * 1000.0

// MaxLinkRangeKm is the hard distance cutoff beyond which no direct radio
// link is considered feasible.
const MaxLinkRangeKm = 150.0

// BlockedPenalty is the finite penalty assigned to a link whose line of
// sight is blocked by terrain. It is large enough to be avoided whenever
// any alternative exists, but finite so the decoder can still make
// progress when it is the only option (section 4.A step 3, "Open question
// — terrain-blocked penalty" in spec.md section 9).
const BlockedPenalty = 2000.0

// UnderflowCap is returned in place of -ln(p) when the combined link
// probability underflows below the cutoff, avoiding -ln(0) = +Inf for
// links that are merely very unlikely rather than geometrically blocked.
const UnderflowCap = 1000.0

const probabilityFloor = 1e-10

// AntennaHeightM is the assumed antenna height above ground level at both
// ends of a candidate link, used only for the optional line-of-sight check.
const AntennaHeightM = 30.0

// Haversine returns the great-circle distance in kilometers between two
// WGS-84 points on a sphere of radius EarthRadiusKm. The result is
// non-negative, symmetric, and zero iff the two points coincide.
func Haversine(a, b model.Point) float64 {
	lat1, lon1 := deg2rad(a.Lat), deg2rad(a.Lon)
	lat2, lon2 := deg2rad(b.Lat), deg2rad(b.Lon)

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// EarthBulge returns the apparent rise, in meters, of the Earth's surface
// above the chord connecting two points dKm kilometers apart. Returns 0 for
// non-positive input.
func EarthBulge(dKm float64) float64 {
	if dKm <= 0 {
		return 0
	}
	dM := dKm * 1000.0
	return (dM * dM) / (8 * EarthRadiusM)
}

// ErrMissingTerrain is returned by LinkCost when a terrain map is supplied
// but lacks elevation data somewhere along the candidate ray. Per section
// 4.B, this must propagate as a distinguished error rather than be treated
// as sea level.
var ErrMissingTerrain = terrain.ErrMissingData

// LinkCost computes the negative-log-likelihood transition penalty for a
// direct radio link between a and b, optionally checking line-of-sight
// against tm. A nil tm skips the terrain check entirely. The result is
// always >= 0, or +Inf if the pair is beyond MaxLinkRangeKm.
func LinkCost(a, b model.Point, tm *terrain.Map) (float64, error) {
	dKm := Haversine(a, b)
	if dKm > MaxLinkRangeKm {
		return math.Inf(1), nil
	}

	if tm != nil {
		clear, err := tm.CheckLineOfSight(a, AntennaHeightM, b, AntennaHeightM)
		if err != nil {
			return 0, err
		}
		if !clear {
			return BlockedPenalty, nil
		}
	}

	bulgeM := EarthBulge(dKm)

	pd := 1 / (1 + math.Exp(0.15*(dKm-60)))
	pb := 1 / (1 + math.Exp(0.5*(bulgeM-40)))
	p := pd * pb

	if p < probabilityFloor {
		return UnderflowCap, nil
	}
	return -math.Log(p), nil
}

func deg2rad(d float64) float64 {
	return d * math.Pi / 180
}
