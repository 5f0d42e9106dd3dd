// Package ingest parses the two CSV input files (section 6): the repeater
// table and the packet observation stream. It is an external collaborator
// to the core decoding pipeline, not part of it.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/meshpath/reconstructor/internal/model"
)

// Packet is one row of the packets CSV: a timestamp, the reported
// start/end coordinates of the transmission, and the observed repeater
// prefix stream.
type Packet struct {
	Timestamp string
	StartLat  float64
	StartLon  float64
	EndLat    float64
	EndLon    float64
	Prefixes  []byte
}

var repeaterHeader = []string{"ID", "Name", "Lat", "Lon"}
var packetHeader = []string{"timestamp", "start_lat", "start_lon", "end_lat", "end_lon", "repeater_prefixes"}

// Repeaters parses the repeater table CSV (header: ID,Name,Lat,Lon).
func Repeaters(r io.Reader) ([]model.Repeater, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ingest: reading repeaters header: %w", err)
	}
	if err := checkHeader(header, repeaterHeader); err != nil {
		return nil, fmt.Errorf("ingest: repeaters.csv: %w", err)
	}

	var out []model.Repeater
	row := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: repeaters.csv row %d: %w", row, err)
		}
		row++
		if len(rec) != 4 {
			return nil, fmt.Errorf("ingest: repeaters.csv row %d: expected 4 fields, got %d", row, len(rec))
		}
		lat, err := parseFloat(rec[2])
		if err != nil {
			return nil, fmt.Errorf("ingest: repeaters.csv row %d: bad Lat: %w", row, err)
		}
		lon, err := parseFloat(rec[3])
		if err != nil {
			return nil, fmt.Errorf("ingest: repeaters.csv row %d: bad Lon: %w", row, err)
		}
		out = append(out, model.NewRepeater(rec[0], rec[1], lat, lon))
	}
	return out, nil
}

// Packets parses the packet observation CSV (header: timestamp,
// start_lat, start_lon, end_lat, end_lon, repeater_prefixes).
func Packets(r io.Reader) ([]Packet, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ingest: reading packets header: %w", err)
	}
	if err := checkHeader(header, packetHeader); err != nil {
		return nil, fmt.Errorf("ingest: packets.csv: %w", err)
	}

	var out []Packet
	row := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: packets.csv row %d: %w", row, err)
		}
		row++
		if len(rec) != 6 {
			return nil, fmt.Errorf("ingest: packets.csv row %d: expected 6 fields, got %d", row, len(rec))
		}
		startLat, err := parseFloat(rec[1])
		if err != nil {
			return nil, fmt.Errorf("ingest: packets.csv row %d: bad start_lat: %w", row, err)
		}
		startLon, err := parseFloat(rec[2])
		if err != nil {
			return nil, fmt.Errorf("ingest: packets.csv row %d: bad start_lon: %w", row, err)
		}
		endLat, err := parseFloat(rec[3])
		if err != nil {
			return nil, fmt.Errorf("ingest: packets.csv row %d: bad end_lat: %w", row, err)
		}
		endLon, err := parseFloat(rec[4])
		if err != nil {
			return nil, fmt.Errorf("ingest: packets.csv row %d: bad end_lon: %w", row, err)
		}
		out = append(out, Packet{
			Timestamp: strings.TrimSpace(rec[0]),
			StartLat:  startLat,
			StartLon:  startLon,
			EndLat:    endLat,
			EndLon:    endLon,
			Prefixes:  parsePrefixes(rec[5]),
		})
	}
	return out, nil
}

// parsePrefixes splits repeater_prefixes on ':' (preferred) or ',' (legacy
// variant), tolerating an optional 0x on each token. Empty tokens are
// skipped; unparsable tokens become 0 (section 6).
func parsePrefixes(field string) []byte {
	sep := ":"
	if !strings.Contains(field, ":") && strings.Contains(field, ",") {
		sep = ","
	}
	tokens := strings.Split(field, sep)
	out := make([]byte, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		out = append(out, model.ParsePrefix(tok))
	}
	return out
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func checkHeader(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("header mismatch: got %v, want %v", got, want)
	}
	for i := range want {
		if strings.TrimSpace(got[i]) != want[i] {
			return fmt.Errorf("header mismatch: got %v, want %v", got, want)
		}
	}
	return nil
}

// ParseTimestamp parses a packet timestamp for display/sort purposes only;
// decoding and localization never depend on wall-clock semantics. Returns
// the zero time on parse failure rather than erroring. The CLI does not
// call it: its --log-level debug lines print the timestamp string as read.
func ParseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
