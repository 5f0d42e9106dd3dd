package localization

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/meshpath/reconstructor/internal/model"
)

func tableFor(aLat, aLon, bLat, bLon float64) []model.Repeater {
	return []model.Repeater{
		model.NewRepeater("A00000", "A", aLat, aLon),
		model.NewRepeater("B00000", "B", bLat, bLon),
	}
}

// TestLocalize_CentroidOfTwoCoincidentMidpoints is scenario S6.
func TestLocalize_CentroidOfTwoCoincidentMidpoints(t *testing.T) {
	table := tableFor(-1, 1, 1, 1) // midpoint (0,1)
	path := []model.PathNode{model.Known(0), model.Unknown(0xBB), model.Known(1)}

	out := Localize([][]model.PathNode{path, path}, table)

	require.Len(t, out, 1)
	require.Equal(t, "bb", out[0].Prefix)
	require.InDelta(t, 0, out[0].Lat, 1e-9)
	require.InDelta(t, 1, out[0].Lon, 1e-9)
	require.Equal(t, 2, out[0].ObservationCount)
}

// TestLocalize_SplitClusters is scenario S7: two far-apart midpoints for
// the same prefix form two separate clusters, sorted by latitude.
func TestLocalize_SplitClusters(t *testing.T) {
	sharedTable := []model.Repeater{
		model.NewRepeater("A00000", "A", 0, 0),
		model.NewRepeater("B00000", "B", 0, 0),
		model.NewRepeater("C00000", "C", 10, 10),
		model.NewRepeater("D00000", "D", 10, 10),
	}
	nearPath := []model.PathNode{model.Known(0), model.Unknown(0xCC), model.Known(1)}
	farPath := []model.PathNode{model.Known(2), model.Unknown(0xCC), model.Known(3)}

	out := Localize([][]model.PathNode{nearPath, farPath}, sharedTable)

	require.Len(t, out, 2)
	require.Equal(t, "cc", out[0].Prefix)
	require.Equal(t, "cc", out[1].Prefix)
	require.Less(t, out[0].Lat, out[1].Lat)
}

func TestLocalize_ObservationCountConservation(t *testing.T) {
	sharedTable := []model.Repeater{
		model.NewRepeater("A00000", "A", 0, 0),
		model.NewRepeater("B00000", "B", 0, 0),
		model.NewRepeater("C00000", "C", 10, 10),
		model.NewRepeater("D00000", "D", 10, 10),
	}
	paths := [][]model.PathNode{
		{model.Known(0), model.Unknown(0xCC), model.Known(1)},
		{model.Known(0), model.Unknown(0xCC), model.Known(1)},
		{model.Known(2), model.Unknown(0xCC), model.Known(3)},
	}

	out := Localize(paths, sharedTable)

	total := 0
	for _, ir := range out {
		total += ir.ObservationCount
	}
	require.Equal(t, 3, total)
}

func TestLocalize_NoTripletsYieldsEmpty(t *testing.T) {
	table := tableFor(0, 0, 1, 1)
	path := []model.PathNode{model.Known(0), model.Known(1)}
	out := Localize([][]model.PathNode{path}, table)
	require.Empty(t, out)
}

// TestLocalize_ExactOutput pins down the full InferredRepeater slice for a
// simple two-cluster input, diffed field-by-field with cmp.Diff so any
// drift in prefix formatting, centroid math, or sort order shows up as a
// precise mismatch rather than a handful of separate assertions.
func TestLocalize_ExactOutput(t *testing.T) {
	sharedTable := []model.Repeater{
		model.NewRepeater("A00000", "A", 5, 0),
		model.NewRepeater("B00000", "B", 5, 0),
		model.NewRepeater("C00000", "C", -5, 0),
		model.NewRepeater("D00000", "D", -5, 0),
	}
	paths := [][]model.PathNode{
		{model.Known(0), model.Unknown(0xFF), model.Known(1)},
		{model.Known(2), model.Unknown(0x00), model.Known(3)},
	}

	out := Localize(paths, sharedTable)

	want := []model.InferredRepeater{
		{Prefix: "00", Lat: -5, Lon: 0, ObservationCount: 1},
		{Prefix: "ff", Lat: 5, Lon: 0, ObservationCount: 1},
	}

	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("Localize output mismatch (-want +got):\n%s", diff)
	}
}

func TestLocalize_SortOrder(t *testing.T) {
	sharedTable := []model.Repeater{
		model.NewRepeater("A00000", "A", 5, 0),
		model.NewRepeater("B00000", "B", 5, 0),
		model.NewRepeater("C00000", "C", -5, 0),
		model.NewRepeater("D00000", "D", -5, 0),
	}
	paths := [][]model.PathNode{
		{model.Known(0), model.Unknown(0xFF), model.Known(1)}, // prefix ff, midpoint lat 5
		{model.Known(2), model.Unknown(0x00), model.Known(3)}, // prefix 00, midpoint lat -5
	}
	out := Localize(paths, sharedTable)
	require.Len(t, out, 2)
	for i := 1; i < len(out); i++ {
		prev, cur := out[i-1], out[i]
		require.True(t, prev.Prefix < cur.Prefix || (prev.Prefix == cur.Prefix && prev.Lat <= cur.Lat))
	}
}
