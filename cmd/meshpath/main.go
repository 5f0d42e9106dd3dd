// Command meshpath reconstructs repeater paths from a packet observation
// stream and a repeater database, optionally consulting terrain tiles for
// line-of-sight link costs. It is the CLI glue around the core decoding
// pipeline (see SPEC_FULL.md section 6.1); all fatal error handling and
// os.Exit calls live here, never in internal/*.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/meshpath/reconstructor/internal/fsutil"
	"github.com/meshpath/reconstructor/internal/ingest"
	"github.com/meshpath/reconstructor/internal/localization"
	"github.com/meshpath/reconstructor/internal/model"
	"github.com/meshpath/reconstructor/internal/monitoring"
	"github.com/meshpath/reconstructor/internal/network"
	"github.com/meshpath/reconstructor/internal/report"
	"github.com/meshpath/reconstructor/internal/terrain"
	"github.com/meshpath/reconstructor/internal/trellis"
)

// terrainFlag collects repeated --terrain path arguments into a slice.
type terrainFlag []string

func (t *terrainFlag) String() string { return strings.Join(*t, ",") }
func (t *terrainFlag) Set(v string) error {
	*t = append(*t, v)
	return nil
}

func main() {
	var terrainPaths terrainFlag
	flag.Var(&terrainPaths, "terrain", "GeoTIFF elevation tile (repeatable)")
	workers := flag.Int("workers", runtime.GOMAXPROCS(0), "number of concurrent packet decoders")
	logLevel := flag.String("log-level", "info", "log verbosity: info or debug")
	flag.Parse()

	args := flag.Args()
	if len(args) != 4 {
		fmt.Fprintln(os.Stderr, "usage: meshpath <repeaters.csv> <packets.csv> <paths.yaml> <inferred.json> [--terrain path]... [--workers N] [--log-level level]")
		os.Exit(1)
	}
	repeatersPath, packetsPath, pathsOutPath, inferredOutPath := args[0], args[1], args[2], args[3]

	fsys := fsutil.OSFileSystem{}
	debug := *logLevel == "debug"

	repeaters, err := loadRepeaters(fsys, repeatersPath)
	if err != nil {
		log.Fatalf("meshpath: %v", err)
	}

	packets, err := loadPackets(fsys, packetsPath)
	if err != nil {
		log.Fatalf("meshpath: %v", err)
	}

	tm, err := loadTerrain(fsys, terrainPaths)
	if err != nil {
		log.Fatalf("meshpath: %v", err)
	}

	g, err := network.Build(repeaters, tm)
	if err != nil {
		log.Fatalf("meshpath: building network graph: %v", err)
	}
	stats := g.ComputeStats()
	log.Printf("graph built: repeaters=%d directed_edges=%d avg_out_degree=%.2f",
		stats.Repeaters, stats.DirectedEdges, stats.AvgOutDegree)

	entries, paths, decoded, failed := decodeAll(g, repeaters, packets, *workers, debug)

	inferred := localization.Localize(paths, repeaters)

	yamlOut, err := report.WritePaths(entries)
	if err != nil {
		log.Fatalf("meshpath: %v", err)
	}
	if err := fsys.WriteFile(pathsOutPath, yamlOut, 0644); err != nil {
		log.Fatalf("meshpath: writing %s: %v", pathsOutPath, err)
	}

	jsonOut, err := report.WriteInferred(inferred)
	if err != nil {
		log.Fatalf("meshpath: %v", err)
	}
	if err := fsys.WriteFile(inferredOutPath, jsonOut, 0644); err != nil {
		log.Fatalf("meshpath: writing %s: %v", inferredOutPath, err)
	}

	log.Printf("done: total=%d decoded=%d failed=%d inferred=%d",
		len(packets), decoded, failed, len(inferred))

	if len(packets) > 0 && decoded == 0 {
		os.Exit(1)
	}
}

func loadRepeaters(fsys fsutil.FileSystem, path string) ([]model.Repeater, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	repeaters, err := ingest.Repeaters(f)
	if err != nil {
		return nil, err
	}
	return repeaters, nil
}

func loadPackets(fsys fsutil.FileSystem, path string) ([]ingest.Packet, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	packets, err := ingest.Packets(f)
	if err != nil {
		return nil, err
	}
	return packets, nil
}

func loadTerrain(fsys fsutil.FileSystem, paths []string) (*terrain.Map, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	tm := terrain.NewMap()
	for _, p := range paths {
		data, err := fsys.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading terrain tile %s: %w", p, err)
		}
		tile, err := terrain.LoadGeoTIFF(data)
		if err != nil {
			return nil, fmt.Errorf("loading terrain tile %s: %w", p, err)
		}
		tm.Add(tile)
	}
	return tm, nil
}

type decodeResult struct {
	index int
	pkt   ingest.Packet
	path  []model.PathNode
	err   error
}

// decodeAll decodes every packet's prefix stream across a bounded worker
// pool (section 5: "embarrassingly parallel... no ordering guarantees
// required across parallel decodes"), then re-sorts results into input
// order before building the YAML entries so output stays deterministic.
func decodeAll(g *network.Graph, repeaters []model.Repeater, packets []ingest.Packet, workers int, debug bool) ([]report.PathEntry, [][]model.PathNode, int, int) {
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	results := make(chan decodeResult)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				start := time.Now()
				path, err := trellis.Decode(g, packets[i].Prefixes)
				if debug {
					monitoring.Logf("meshpath: decoded packet %d (%s) in %s", i, packets[i].Timestamp, time.Since(start))
				}
				results <- decodeResult{index: i, pkt: packets[i], path: path, err: err}
			}
		}()
	}

	go func() {
		for i := range packets {
			jobs <- i
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]decodeResult, 0, len(packets))
	for r := range results {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })

	entries := make([]report.PathEntry, 0, len(packets))
	paths := make([][]model.PathNode, 0, len(packets))
	decoded, failed := 0, 0
	for _, r := range collected {
		if r.err != nil {
			monitoring.Logf("meshpath: packet %d (%s) failed to decode: %v", r.index, r.pkt.Timestamp, r.err)
			failed++
			continue
		}
		decoded++
		paths = append(paths, r.path)
		entries = append(entries, report.NewPathEntry(r.pkt.Timestamp, r.pkt.StartLat, r.pkt.StartLon, r.pkt.EndLat, r.pkt.EndLon, r.path, repeaters))
		if debug {
			monitoring.Logf("meshpath: packet %d known_fraction=%.2f", r.index, report.KnownFraction(r.path))
		}
	}

	return entries, paths, decoded, failed
}
