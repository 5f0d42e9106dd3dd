// Package model holds the data types shared across the decoding pipeline:
// the repeater table, the tagged path-node variant the decoder emits, and
// the localization output record. Nothing here is mutated after
// construction except via explicit builder functions.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Point is a WGS-84 latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Repeater is an immutable record of a single radio repeater.
type Repeater struct {
	ID     string
	Name   string
	Lat    float64
	Lon    float64
	Prefix byte
}

// Point returns the repeater's position.
func (r Repeater) Point() Point {
	return Point{Lat: r.Lat, Lon: r.Lon}
}

// ParsePrefix extracts the one-byte prefix from a repeater identifier: the
// first two hex digits, after stripping an optional "0x" prefix and
// surrounding whitespace. Malformed IDs yield prefix 0, matching the CSV
// ingestion contract in spec.md section 6.
func ParsePrefix(id string) byte {
	s := strings.TrimSpace(id)
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(s[:2], 16, 8)
	if err != nil {
		return 0
	}
	return byte(v)
}

// NewRepeater builds a Repeater, deriving Prefix from ID.
func NewRepeater(id, name string, lat, lon float64) Repeater {
	return Repeater{
		ID:     strings.TrimSpace(id),
		Name:   strings.TrimSpace(name),
		Lat:    lat,
		Lon:    lon,
		Prefix: ParsePrefix(id),
	}
}

// PathNode is the tagged variant the trellis decoder emits for each
// observed hop: either a reference to a Known repeater in the table, or an
// Unknown hop carrying only the prefix byte that was observed.
type PathNode struct {
	known  bool
	index  int
	prefix byte
}

// Known builds a PathNode referencing repeater index in the table.
func Known(index int) PathNode {
	return PathNode{known: true, index: index}
}

// Unknown builds a wildcard PathNode carrying only the observed prefix.
func Unknown(prefix byte) PathNode {
	return PathNode{known: false, prefix: prefix}
}

// IsKnown reports whether the node references a known repeater.
func (n PathNode) IsKnown() bool { return n.known }

// Index returns the repeater table index for a Known node. It panics if
// called on an Unknown node — callers must check IsKnown first.
func (n PathNode) Index() int {
	if !n.known {
		panic("model: Index called on Unknown PathNode")
	}
	return n.index
}

// Prefix returns the node's prefix byte: the repeater's own prefix for a
// Known node, the observed prefix for an Unknown node.
func (n PathNode) Prefix(table []Repeater) byte {
	if n.known {
		return table[n.index].Prefix
	}
	return n.prefix
}

// Label renders the node the way paths.yaml expects it: a Known node emits
// its repeater ID, an Unknown node emits the lowercase two-digit hex of its
// prefix.
func (n PathNode) Label(table []Repeater) string {
	if n.known {
		return table[n.index].ID
	}
	return fmt.Sprintf("%02x", n.prefix)
}

func (n PathNode) String() string {
	if n.known {
		return fmt.Sprintf("Known(%d)", n.index)
	}
	return fmt.Sprintf("Unknown(%02x)", n.prefix)
}

// Equal reports whether n and o represent the same node. It lets
// github.com/google/go-cmp compare PathNode values (and slices of them)
// without reflecting into the unexported fields.
func (n PathNode) Equal(o PathNode) bool {
	if n.known != o.known {
		return false
	}
	if n.known {
		return n.index == o.index
	}
	return n.prefix == o.prefix
}

// InferredRepeater is a localized estimate of a previously-unknown
// repeater's position, derived from clustering Known-Unknown-Known
// midpoints across many decoded paths.
type InferredRepeater struct {
	Prefix           string  `json:"prefix"`
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	ObservationCount int     `json:"observation_count"`
}
