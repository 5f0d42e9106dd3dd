// Package spatial provides the bounding-box neighbor index used during
// graph construction (section 4.C): bulk-load repeater positions, then
// query an axis-aligned envelope for candidate indices. It is backed by an
// R-tree (github.com/dhconnelly/rtreego), grounded on the same library's
// usage in the geo-index-rtree reference package. The index is consulted
// only while building the adjacency list; decoding never touches it.
package spatial

import (
	"fmt"

	"github.com/dhconnelly/rtreego"
)

const (
	dimensions  = 2
	minChildren = 2
	maxChildren = 8
)

// entry adapts a single indexed point to rtreego.Spatial.
type entry struct {
	index int
	rect  *rtreego.Rect
}

func (e *entry) Bounds() *rtreego.Rect { return e.rect }

// Index is a bulk-loaded, read-only spatial index over (lon, lat) points,
// keyed by their position in the caller's original slice.
type Index struct {
	tree *rtreego.Rtree
}

// NewIndex bulk-loads lons/lats (parallel slices, same convention as
// section 4.C: points are (lon, lat) pairs) into an R-tree keyed by
// position.
func NewIndex(lons, lats []float64) (*Index, error) {
	if len(lons) != len(lats) {
		return nil, fmt.Errorf("spatial: lons and lats length mismatch (%d vs %d)", len(lons), len(lats))
	}
	tree := rtreego.NewTree(dimensions, minChildren, maxChildren)
	for i := range lons {
		p := rtreego.Point{lons[i], lats[i]}
		rect, err := rtreego.NewRect(p, []float64{1e-9, 1e-9})
		if err != nil {
			return nil, fmt.Errorf("spatial: invalid point at index %d: %w", i, err)
		}
		tree.Insert(&entry{index: i, rect: rect})
	}
	return &Index{tree: tree}, nil
}

// Query returns the indices of every point whose (lon, lat) falls within
// the axis-aligned rectangle [lonMin,lonMax] x [latMin,latMax], excluding
// center itself (by index identity, per section 4.C).
func (idx *Index) Query(center int, lonMin, lonMax, latMin, latMax float64) []int {
	p := rtreego.Point{lonMin, latMin}
	size := []float64{lonMax - lonMin, latMax - latMin}
	rect, err := rtreego.NewRect(p, size)
	if err != nil {
		return nil
	}

	results := idx.tree.SearchIntersect(rect)
	out := make([]int, 0, len(results))
	for _, r := range results {
		e := r.(*entry)
		if e.index == center {
			continue
		}
		out = append(out, e.index)
	}
	return out
}
