package terrain

import (
	"fmt"
	"math"

	"github.com/meshpath/reconstructor/internal/model"
)

// sampleStepM is the along-ray sampling interval used by the line-of-sight
// scan.
const sampleStepM = 30.0

// Map is an ordered collection of Tiles. Overlapping tiles are resolved by
// first-match lookup order: the first registered tile that contains a
// query point decides its elevation.
type Map struct {
	tiles []*Tile
}

// NewMap builds a Map from tiles in registration order.
func NewMap(tiles ...*Tile) *Map {
	return &Map{tiles: tiles}
}

// Add registers an additional tile, consulted after all previously
// registered tiles.
func (m *Map) Add(t *Tile) {
	m.tiles = append(m.tiles, t)
}

// Elevation returns the elevation in meters at (lat, lon) and true, or
// (0, false) if no registered tile covers the point.
func (m *Map) Elevation(lat, lon float64) (float64, bool) {
	for _, t := range m.tiles {
		if t.Contains(lat, lon) {
			return t.Elevation(lat, lon), true
		}
	}
	return 0, false
}

// CheckLineOfSight samples the great-circle chord between p1 (at height h1
// meters AGL) and p2 (at height h2 meters AGL) at ~sampleStepM increments
// and reports whether the direct path clears both terrain and Earth
// curvature along the way. Returns ErrMissingData if any sample, including
// the endpoints, falls outside every registered tile. A link of at most one
// sampling step is reported clear without any terrain lookup.
func (m *Map) CheckLineOfSight(p1 model.Point, h1 float64, p2 model.Point, h2 float64) (bool, error) {
	dKm := haversine(p1, p2)
	dM := dKm * 1000.0

	steps := int(math.Ceil(dM / sampleStepM))
	if steps <= 1 {
		return true, nil
	}

	elev1, ok := m.Elevation(p1.Lat, p1.Lon)
	if !ok {
		return false, fmt.Errorf("terrain: endpoint 1: %w", ErrMissingData)
	}
	elev2, ok := m.Elevation(p2.Lat, p2.Lon)
	if !ok {
		return false, fmt.Errorf("terrain: endpoint 2: %w", ErrMissingData)
	}
	alt1 := elev1 + h1
	alt2 := elev2 + h2

	for i := 1; i < steps; i++ {
		t := float64(i) / float64(steps)

		lat := p1.Lat + t*(p2.Lat-p1.Lat)
		lon := p1.Lon + t*(p2.Lon-p1.Lon)

		rayAlt := alt1 + t*(alt2-alt1)

		d1M := t * dM
		d2M := (1 - t) * dM
		curvature := (d1M * d2M) / (2 * physicsEarthRadiusM)

		groundElev, ok := m.Elevation(lat, lon)
		if !ok {
			return false, fmt.Errorf("terrain: sample %d/%d: missing terrain along path: %w", i, steps, ErrMissingData)
		}

		if rayAlt < groundElev+curvature {
			return false, nil
		}
	}

	return true, nil
}

// physicsEarthRadiusM mirrors physics.EarthRadiusM. Duplicated as an
// untyped constant (rather than importing internal/physics) to keep
// terrain free of a dependency on the package that depends on it.
const physicsEarthRadiusM = 6371000.0

func haversine(a, b model.Point) float64 {
	const earthRadiusKm = 6371.0
	lat1 := a.Lat * math.Pi / 180
	lon1 := a.Lon * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	lon2 := b.Lon * math.Pi / 180

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	h = math.Min(1, math.Max(0, h))

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
