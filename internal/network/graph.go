// Package network builds the immutable adjacency structure (section 4.D)
// consumed by the trellis decoder: for each known repeater, the list of
// other repeaters it can feasibly link to, at what cost.
package network

import (
	"fmt"
	"math"
	"sort"

	"github.com/meshpath/reconstructor/internal/model"
	"github.com/meshpath/reconstructor/internal/physics"
	"github.com/meshpath/reconstructor/internal/spatial"
	"github.com/meshpath/reconstructor/internal/terrain"
)

// Edge is a single directed adjacency entry: a link to repeater index J at
// the given finite cost.
type Edge struct {
	J    int
	Cost float64
}

// maxCost excludes edges the physics model could still theoretically
// return a finite-but-unusable cost for (section 4.C step 2: "strictly <
// 1000").
const maxCost = 1000.0

// searchDegreesPerKm is the conversion used to size the envelope query
// radius (150km cutoff * 1.2 safety margin, applied in Build), assuming
// ~111 km per degree of latitude. The resulting box overshoots the cutoff
// in latitude, but the same degree width is used for longitude without a
// cos(lat) correction, so at high latitude (longitude degrees compress
// toward the poles) it covers less than 150km east-west and pairs in range
// outside the box are never considered. LinkCost re-checks true distance
// for every candidate the box does return (spec.md section 9, "Edge bound
// search-radius at high latitude").
const searchDegreesPerKm = 1.0 / 111.0

// Graph is the immutable adjacency structure produced once from a
// repeater table and optional terrain map. Decoding never recomputes
// costs against it.
type Graph struct {
	Repeaters []model.Repeater
	Adjacency [][]Edge
	ByPrefix  [256][]int
}

// Build constructs a Graph from repeaters, optionally consulting tm for
// line-of-sight checks. An edge that cannot be certified clear by terrain
// (ErrMissingData along the ray) is simply omitted, never aborts the build
// (section 7: "an edge that cannot be certified clear by terrain is simply
// omitted").
func Build(repeaters []model.Repeater, tm *terrain.Map) (*Graph, error) {
	g := &Graph{
		Repeaters: repeaters,
		Adjacency: make([][]Edge, len(repeaters)),
	}

	for i, r := range repeaters {
		g.ByPrefix[r.Prefix] = append(g.ByPrefix[r.Prefix], i)
	}

	lons := make([]float64, len(repeaters))
	lats := make([]float64, len(repeaters))
	for i, r := range repeaters {
		lons[i] = r.Lon
		lats[i] = r.Lat
	}
	idx, err := spatial.NewIndex(lons, lats)
	if err != nil {
		return nil, fmt.Errorf("network: building spatial index: %w", err)
	}

	delta := physics.MaxLinkRangeKm * searchDegreesPerKm * 1.2

	for i, r := range repeaters {
		candidates := idx.Query(i, r.Lon-delta, r.Lon+delta, r.Lat-delta, r.Lat+delta)
		sort.Ints(candidates)

		for _, j := range candidates {
			cost, err := physics.LinkCost(r.Point(), repeaters[j].Point(), tm)
			if err != nil {
				// Terrain data missing along this candidate ray: omit the
				// edge rather than fail the whole build.
				continue
			}
			if math.IsInf(cost, 1) || cost >= maxCost {
				continue
			}
			g.Adjacency[i] = append(g.Adjacency[i], Edge{J: j, Cost: cost})
		}
	}

	return g, nil
}

// Stats summarizes the built graph: repeater count, directed edge count,
// and average out-degree. This is not part of the core decode path; it
// mirrors a startup log line present in the system this spec was
// distilled from (see SPEC_FULL.md section 10).
type Stats struct {
	Repeaters     int
	DirectedEdges int
	AvgOutDegree  float64
}

// ComputeStats summarizes g.
func (g *Graph) ComputeStats() Stats {
	total := 0
	for _, edges := range g.Adjacency {
		total += len(edges)
	}
	avg := 0.0
	if len(g.Repeaters) > 0 {
		avg = float64(total) / float64(len(g.Repeaters))
	}
	return Stats{
		Repeaters:     len(g.Repeaters),
		DirectedEdges: total,
		AvgOutDegree:  avg,
	}
}
