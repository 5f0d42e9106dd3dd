// Command meshgen emits a synthetic repeater table and packet stream for
// manually exercising meshpath. It is test-fixture tooling, explicitly out
// of core scope (see SPEC_FULL.md section 10), grounded in the same role
// cmd/tools/gen-vrlog plays for its own package: a small, seeded generator
// living in its own cmd/ binary.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/meshpath/reconstructor/internal/model"
	"github.com/meshpath/reconstructor/internal/network"
)

func main() {
	seed := flag.Int64("seed", 42, "PRNG seed (fixed, for reproducible fixtures)")
	gridSize := flag.Int("grid", 8, "repeaters are laid out on a gridSize x gridSize lattice")
	spacingKm := flag.Float64("spacing-km", 40, "approximate grid spacing in kilometers")
	jitterKm := flag.Float64("jitter-km", 8, "max random offset applied to each grid point")
	numPackets := flag.Int("packets", 50, "number of synthetic packets to generate")
	minHops := flag.Int("min-hops", 3, "minimum random-walk length per packet")
	maxHops := flag.Int("max-hops", 8, "maximum random-walk length per packet")
	centerLat := flag.Float64("center-lat", 51.5074, "center latitude of the synthetic mesh")
	centerLon := flag.Float64("center-lon", -0.1278, "center longitude of the synthetic mesh")
	outRepeaters := flag.String("out-repeaters", "repeaters.csv", "output path for the repeater table")
	outPackets := flag.String("out-packets", "packets.csv", "output path for the packet stream")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	repeaters := generateRepeaters(rng, *gridSize, *spacingKm, *jitterKm, *centerLat, *centerLon)

	g, err := network.Build(repeaters, nil)
	if err != nil {
		log.Fatalf("meshgen: building adjacency for random walk: %v", err)
	}

	packets := generatePackets(rng, g, repeaters, *numPackets, *minHops, *maxHops)

	if err := writeRepeaters(*outRepeaters, repeaters); err != nil {
		log.Fatalf("meshgen: %v", err)
	}
	if err := writePackets(*outPackets, packets); err != nil {
		log.Fatalf("meshgen: %v", err)
	}

	log.Printf("generated %d repeaters, %d packets -> %s, %s", len(repeaters), len(packets), *outRepeaters, *outPackets)
}

// generateRepeaters lays repeaters out on a grid near (centerLat,
// centerLon) with random jitter, assigning each a random hex ID (and
// therefore a random prefix byte, so prefix collisions naturally arise
// the way they do in the field).
func generateRepeaters(rng *rand.Rand, gridSize int, spacingKm, jitterKm, centerLat, centerLon float64) []model.Repeater {
	const kmPerDegLat = 111.0
	degLat := spacingKm / kmPerDegLat
	jitterDeg := jitterKm / kmPerDegLat

	var out []model.Repeater
	i := 0
	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize; col++ {
			lat := centerLat + (float64(row)-float64(gridSize)/2)*degLat + jitter(rng, jitterDeg)
			lon := centerLon + (float64(col)-float64(gridSize)/2)*degLat + jitter(rng, jitterDeg)
			id := fmt.Sprintf("%06X", rng.Intn(0xFFFFFF))
			name := fmt.Sprintf("Node_%d", i)
			out = append(out, model.NewRepeater(id, name, lat, lon))
			i++
		}
	}
	return out
}

func jitter(rng *rand.Rand, maxDeg float64) float64 {
	return (rng.Float64()*2 - 1) * maxDeg
}

type packet struct {
	timestamp string
	startLat  float64
	startLon  float64
	endLat    float64
	endLon    float64
	prefixes  []byte
}

// generatePackets samples random walks over the true adjacency graph g,
// producing the prefix stream meshpath is expected to reconstruct.
func generatePackets(rng *rand.Rand, g *network.Graph, repeaters []model.Repeater, n, minHops, maxHops int) []packet {
	out := make([]packet, 0, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < n; i++ {
		hops := minHops + rng.Intn(maxHops-minHops+1)
		walk := randomWalk(rng, g, hops)
		if len(walk) == 0 {
			continue
		}
		prefixes := make([]byte, len(walk))
		for j, idx := range walk {
			prefixes[j] = repeaters[idx].Prefix
		}
		out = append(out, packet{
			timestamp: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			startLat:  repeaters[walk[0]].Lat,
			startLon:  repeaters[walk[0]].Lon,
			endLat:    repeaters[walk[len(walk)-1]].Lat,
			endLon:    repeaters[walk[len(walk)-1]].Lon,
			prefixes:  prefixes,
		})
	}
	return out
}

// randomWalk returns a sequence of repeater indices of length hops, each
// step following a uniformly-chosen outgoing edge from g.Adjacency.
// Returns a shorter walk (still holding at least the starting repeater) if
// it reaches a repeater with no outgoing edges before hops steps are taken;
// returns nil only when g has no repeaters.
func randomWalk(rng *rand.Rand, g *network.Graph, hops int) []int {
	if len(g.Repeaters) == 0 {
		return nil
	}
	cur := rng.Intn(len(g.Repeaters))
	walk := []int{cur}
	for len(walk) < hops {
		edges := g.Adjacency[cur]
		if len(edges) == 0 {
			break
		}
		next := edges[rng.Intn(len(edges))]
		cur = next.J
		walk = append(walk, cur)
	}
	return walk
}

func writeRepeaters(path string, repeaters []model.Repeater) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"ID", "Name", "Lat", "Lon"}); err != nil {
		return err
	}
	for _, r := range repeaters {
		if err := w.Write([]string{r.ID, r.Name, fmt.Sprintf("%.6f", r.Lat), fmt.Sprintf("%.6f", r.Lon)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writePackets(path string, packets []packet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "start_lat", "start_lon", "end_lat", "end_lon", "repeater_prefixes"}); err != nil {
		return err
	}
	for _, p := range packets {
		tokens := make([]string, len(p.prefixes))
		for i, b := range p.prefixes {
			tokens[i] = fmt.Sprintf("%02X", b)
		}
		prefixField := ""
		for i, t := range tokens {
			if i > 0 {
				prefixField += ":"
			}
			prefixField += t
		}
		if err := w.Write([]string{
			p.timestamp,
			fmt.Sprintf("%.6f", p.startLat),
			fmt.Sprintf("%.6f", p.startLon),
			fmt.Sprintf("%.6f", p.endLat),
			fmt.Sprintf("%.6f", p.endLon),
			prefixField,
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
