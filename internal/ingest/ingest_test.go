package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRepeaters_Parses(t *testing.T) {
	csv := "ID,Name,Lat,Lon\nA00000,Alpha,51.5,-0.1\n0xB00000,Bravo, 52.0 , 0.2\n"
	out, err := Repeaters(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, byte(0xA0), out[0].Prefix)
	require.Equal(t, byte(0xB0), out[1].Prefix)
	require.Equal(t, 52.0, out[1].Lat)
}

func TestRepeaters_HeaderMismatch(t *testing.T) {
	_, err := Repeaters(strings.NewReader("Foo,Bar\n1,2\n"))
	require.Error(t, err)
}

func TestRepeaters_MalformedIDYieldsZeroPrefix(t *testing.T) {
	csv := "ID,Name,Lat,Lon\nzz,Weird,0,0\n"
	out, err := Repeaters(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, byte(0), out[0].Prefix)
}

func TestPackets_Parses(t *testing.T) {
	csv := "timestamp,start_lat,start_lon,end_lat,end_lon,repeater_prefixes\n" +
		"2026-01-01T00:00:00Z,0,0,1,1,A0:B0:0xC0\n"
	out, err := Packets(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, []byte{0xA0, 0xB0, 0xC0}, out[0].Prefixes)
}

func TestPackets_LegacyCommaSeparator(t *testing.T) {
	csv := "timestamp,start_lat,start_lon,end_lat,end_lon,repeater_prefixes\n" +
		"t1,0,0,1,1,\"A0,B0\"\n"
	out, err := Packets(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, []byte{0xA0, 0xB0}, out[0].Prefixes)
}

func TestPackets_EmptyTokensSkipped(t *testing.T) {
	csv := "timestamp,start_lat,start_lon,end_lat,end_lon,repeater_prefixes\n" +
		"t1,0,0,1,1,A0::B0\n"
	out, err := Packets(strings.NewReader(csv))
	require.NoError(t, err)
	require.Equal(t, []byte{0xA0, 0xB0}, out[0].Prefixes)
}

func TestPackets_UnparsableTokenBecomesZero(t *testing.T) {
	csv := "timestamp,start_lat,start_lon,end_lat,end_lon,repeater_prefixes\n" +
		"t1,0,0,1,1,zz\n"
	out, err := Packets(strings.NewReader(csv))
	require.NoError(t, err)
	require.Equal(t, []byte{0}, out[0].Prefixes)
}

func TestPackets_HeaderMismatch(t *testing.T) {
	_, err := Packets(strings.NewReader("a,b\n1,2\n"))
	require.Error(t, err)
}
