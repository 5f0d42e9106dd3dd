// Package localization turns decoded paths into position estimates for
// repeaters absent from the database (section 4.F): it slides a
// Known-Unknown-Known window over every path, clusters the resulting
// midpoints per prefix with DBSCAN, and emits a sorted InferredRepeater
// list.
package localization

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/meshpath/reconstructor/internal/model"
	"github.com/meshpath/reconstructor/internal/physics"
)

// epsilonKm is the DBSCAN neighborhood radius.
const epsilonKm = 50.0

// minPts is fixed at 1: every midpoint joins some cluster, including a
// singleton, per spec.md section 9's "Open question — DBSCAN border-point
// semantics" (minPts=1 makes every point its own core point; the classical
// Noise->border transition never fires and is not implemented).
const minPts = 1

// Midpoints extracts the naive Known-Unknown-Known midpoints from a set of
// decoded paths, grouped by the Unknown hop's observed prefix byte.
func Midpoints(paths [][]model.PathNode, table []model.Repeater) map[byte][]model.Point {
	out := make(map[byte][]model.Point)
	for _, path := range paths {
		for i := 0; i+2 < len(path); i++ {
			a, u, b := path[i], path[i+1], path[i+2]
			if !a.IsKnown() || u.IsKnown() || !b.IsKnown() {
				continue
			}
			pa := table[a.Index()].Point()
			pb := table[b.Index()].Point()
			mid := model.Point{
				Lat: (pa.Lat + pb.Lat) / 2,
				Lon: (pa.Lon + pb.Lon) / 2,
			}
			prefix := u.Prefix(table)
			out[prefix] = append(out[prefix], mid)
		}
	}
	return out
}

// cluster runs DBSCAN (epsilonKm, minPts) over pts and returns the cluster
// assignment: clusters[c] is the list of indices into pts belonging to
// cluster c. With minPts=1 every point belongs to exactly one cluster;
// clusters merge transitively through chains of points within epsilonKm of
// each other.
func cluster(pts []model.Point) [][]int {
	n := len(pts)
	visited := make([]bool, n)
	var clusters [][]int

	neighbors := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if physics.Haversine(pts[i], pts[j]) <= epsilonKm {
				out = append(out, j)
			}
		}
		return out
	}

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		// Expand a new cluster by breadth-first traversal over the
		// epsilon-neighborhood graph, the standard DBSCAN expansion with
		// minPts=1 so every reached point is itself a core point.
		queue := []int{i}
		visited[i] = true
		members := []int{i}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, nb := range neighbors(cur) {
				if visited[nb] {
					continue
				}
				visited[nb] = true
				members = append(members, nb)
				queue = append(queue, nb)
			}
		}
		sort.Ints(members)
		clusters = append(clusters, members)
	}

	return clusters
}

// Localize turns paths into the final sorted InferredRepeater list
// (section 4.F steps 2-3).
func Localize(paths [][]model.PathNode, table []model.Repeater) []model.InferredRepeater {
	byPrefix := Midpoints(paths, table)

	var out []model.InferredRepeater
	for prefix, pts := range byPrefix {
		for _, members := range cluster(pts) {
			lats := make([]float64, len(members))
			lons := make([]float64, len(members))
			for i, idx := range members {
				lats[i] = pts[idx].Lat
				lons[i] = pts[idx].Lon
			}
			out = append(out, model.InferredRepeater{
				Prefix:           hexByte(prefix),
				Lat:              stat.Mean(lats, nil),
				Lon:              stat.Mean(lons, nil),
				ObservationCount: len(members),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Prefix != out[j].Prefix {
			return out[i].Prefix < out[j].Prefix
		}
		return out[i].Lat < out[j].Lat
	})

	return out
}

func hexByte(b byte) string {
	const hexDigits = "0123456789abcdef"
	return string([]byte{hexDigits[b>>4], hexDigits[b&0xf]})
}
