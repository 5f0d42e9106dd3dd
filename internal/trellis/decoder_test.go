package trellis

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/meshpath/reconstructor/internal/model"
	"github.com/meshpath/reconstructor/internal/network"
)

func buildGraph(t *testing.T, repeaters []model.Repeater) *network.Graph {
	t.Helper()
	g, err := network.Build(repeaters, nil)
	require.NoError(t, err)
	return g
}

// TestDecode_WindingPath is scenario S1: five collinear repeaters, one
// observation per hop, each with a unique prefix.
func TestDecode_WindingPath(t *testing.T) {
	repeaters := []model.Repeater{
		model.NewRepeater("A00000", "A", 0.0, 0),
		model.NewRepeater("B00000", "B", 0.4, 0),
		model.NewRepeater("C00000", "C", 0.8, 0),
		model.NewRepeater("D00000", "D", 1.2, 0),
		model.NewRepeater("E00000", "E", 1.6, 0),
	}
	g := buildGraph(t, repeaters)

	path, err := Decode(g, []byte{0xA0, 0xB0, 0xC0, 0xD0, 0xE0})
	require.NoError(t, err)
	require.Len(t, path, 5)
	for i, n := range path {
		require.True(t, n.IsKnown(), "hop %d should be Known", i)
		require.Equal(t, i, n.Index(), "hop %d should reference repeater %d", i, i)
	}
}

// TestDecode_DisconnectedComponents is scenario S2: two repeaters ~1,100km
// apart, far beyond the 150km link range, so the second hop cannot be
// Known(1) and must fall back to Unknown.
func TestDecode_DisconnectedComponents(t *testing.T) {
	repeaters := []model.Repeater{
		model.NewRepeater("A00000", "A", 0, 0),
		model.NewRepeater("B00000", "B", 0, 10),
	}
	g := buildGraph(t, repeaters)

	path, err := Decode(g, []byte{0xA0, 0xB0})
	require.NoError(t, err)
	require.Len(t, path, 2)
	require.True(t, path[0].IsKnown())
	require.Equal(t, 0, path[0].Index())
	require.False(t, path[1].IsKnown())
	require.Equal(t, byte(0xB0), path[1].Prefix(repeaters))
}

// TestDecode_SinglePrefixGapRecovery is scenario S3: the middle hop's
// prefix matches no nearby repeater, so it decodes as Unknown between two
// Known endpoints.
func TestDecode_SinglePrefixGapRecovery(t *testing.T) {
	repeaters := []model.Repeater{
		model.NewRepeater("A00000", "A", 0, 0),
		model.NewRepeater("C00000", "C", 0.5, 0),
	}
	g := buildGraph(t, repeaters)

	path, err := Decode(g, []byte{0xA0, 0xB0, 0xC0})
	require.NoError(t, err)
	require.Len(t, path, 3)
	require.True(t, path[0].IsKnown())
	require.Equal(t, 0, path[0].Index())
	require.False(t, path[1].IsKnown())
	require.Equal(t, byte(0xB0), path[1].Prefix(repeaters))
	require.True(t, path[2].IsKnown())
	require.Equal(t, 1, path[2].Index())
}

// TestDecode_ConfoundingBadPrefixImpostor is scenario S4: a geographically
// perfect mid-node exists but its prefix doesn't match the observation, so
// emission rules forbid it from being selected.
func TestDecode_ConfoundingBadPrefixImpostor(t *testing.T) {
	repeaters := []model.Repeater{
		model.NewRepeater("A00000", "A", 0, 0),
		model.NewRepeater("C00000", "C", 0.5, 0),
		model.NewRepeater("D00000", "D", 0.25, 0), // perfect midpoint, wrong prefix
	}
	g := buildGraph(t, repeaters)

	path, err := Decode(g, []byte{0xA0, 0xB0, 0xC0})
	require.NoError(t, err)
	require.Len(t, path, 3)
	require.True(t, path[0].IsKnown())
	require.False(t, path[1].IsKnown(), "emission forbids Known(D) for observation 0xB0")
	require.True(t, path[2].IsKnown())
	require.Equal(t, 1, path[2].Index())
}

// TestDecode_ConfoundingFarPrefixMatch is scenario S5: a far-away node
// shares the observed prefix, but its link cost outweighs the Unknown
// transition penalty.
func TestDecode_ConfoundingFarPrefixMatch(t *testing.T) {
	repeaters := []model.Repeater{
		model.NewRepeater("A00000", "A", 0, 0),
		model.NewRepeater("C00000", "C", 0.5, 0),
		model.NewRepeater("B00000", "B_far", 2, 0),
	}
	g := buildGraph(t, repeaters)

	path, err := Decode(g, []byte{0xA0, 0xB0, 0xC0})
	require.NoError(t, err)
	require.Len(t, path, 3)
	require.True(t, path[0].IsKnown())
	require.False(t, path[1].IsKnown(), "far Known(B) should cost more than the Unknown penalty")
	require.True(t, path[2].IsKnown())
	require.Equal(t, 1, path[2].Index())
}

func TestDecode_EmptyObservationsReturnsEmptyPath(t *testing.T) {
	g := buildGraph(t, nil)
	path, err := Decode(g, nil)
	require.NoError(t, err)
	require.Empty(t, path)
}

func TestDecode_Deterministic(t *testing.T) {
	repeaters := []model.Repeater{
		model.NewRepeater("A00000", "A", 0, 0),
		model.NewRepeater("B00000", "B", 0.3, 0),
		model.NewRepeater("C00000", "C", 0.6, 0),
	}
	g := buildGraph(t, repeaters)
	obs := []byte{0xA0, 0xB0, 0xC0}

	first, err := Decode(g, obs)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Decode(g, obs)
		require.NoError(t, err)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("decode not deterministic on run %d (-first +again):\n%s", i, diff)
		}
	}
}

func TestDecode_PathLengthMatchesObservations(t *testing.T) {
	repeaters := []model.Repeater{
		model.NewRepeater("A00000", "A", 0, 0),
	}
	g := buildGraph(t, repeaters)
	obs := []byte{0xA0, 0xFF, 0xFF, 0xA0}
	path, err := Decode(g, obs)
	require.NoError(t, err)
	require.Len(t, path, len(obs))
}
