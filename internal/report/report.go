// Package report renders the two output artifacts the CLI produces
// (section 6): the per-packet path sequence as YAML, and the inferred
// repeater locations as pretty-printed JSON.
package report

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/meshpath/reconstructor/internal/model"
)

// PathEntry is one row of the paths.yaml output: the original packet
// envelope plus its decoded path, rendered as the label sequence
// model.PathNode.Label produces (repeater ID for Known, two-digit hex for
// Unknown).
type PathEntry struct {
	Timestamp string   `yaml:"timestamp"`
	StartLat  float64  `yaml:"start_lat"`
	StartLon  float64  `yaml:"start_lon"`
	EndLat    float64  `yaml:"end_lat"`
	EndLon    float64  `yaml:"end_lon"`
	Path      []string `yaml:"path"`
}

// NewPathEntry builds a PathEntry from a decoded path, rendering each node
// through Label against table.
func NewPathEntry(timestamp string, startLat, startLon, endLat, endLon float64, path []model.PathNode, table []model.Repeater) PathEntry {
	labels := make([]string, len(path))
	for i, n := range path {
		labels[i] = n.Label(table)
	}
	return PathEntry{
		Timestamp: timestamp,
		StartLat:  startLat,
		StartLon:  startLon,
		EndLat:    endLat,
		EndLon:    endLon,
		Path:      labels,
	}
}

// WritePaths marshals entries as a YAML sequence.
func WritePaths(entries []PathEntry) ([]byte, error) {
	out, err := yaml.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("report: marshaling paths.yaml: %w", err)
	}
	return out, nil
}

// WriteInferred marshals inferred repeaters as pretty-printed JSON.
func WriteInferred(inferred []model.InferredRepeater) ([]byte, error) {
	if inferred == nil {
		inferred = []model.InferredRepeater{}
	}
	out, err := json.MarshalIndent(inferred, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: marshaling inferred.json: %w", err)
	}
	return append(out, '\n'), nil
}

// KnownFraction reports the fraction of Known hops in path, for the
// per-packet decode summary log line (not part of the YAML record
// itself).
func KnownFraction(path []model.PathNode) float64 {
	if len(path) == 0 {
		return 0
	}
	known := 0
	for _, n := range path {
		if n.IsKnown() {
			known++
		}
	}
	return float64(known) / float64(len(path))
}
