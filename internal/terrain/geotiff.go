package terrain

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// TIFF tag IDs relevant to elevation tiles.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
)

// TIFF field data types we need to read.
const (
	tiffByte   = 1
	tiffShort  = 3
	tiffLong   = 4
	tiffFloat  = 11
	tiffDouble = 12
)

// TIFF SampleFormat values.
const (
	sampleFormatUint  = 1
	sampleFormatInt   = 2
	sampleFormatFloat = 3
)

// LoadGeoTIFF parses a single-band GeoTIFF elevation raster from raw bytes
// and returns a Tile. Required tags: ModelPixelScaleTag (33550) giving
// (scale_x, scale_y) in degrees/pixel, and ModelTiepointTag (33922) whose
// second triple gives (min_lon, max_lat) for the top-left raster origin.
// Accepted sample formats: signed/unsigned 16-bit integer, 32-bit float,
// 64-bit float. Input rows (top = max_lat) are flipped on load so row 0 of
// the returned Tile corresponds to min_lat, matching section 4.B.
func LoadGeoTIFF(data []byte) (*Tile, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("geotiff: data too short")
	}

	var bo binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, fmt.Errorf("geotiff: invalid byte order marker")
	}

	if magic := bo.Uint16(data[2:4]); magic != 42 {
		return nil, fmt.Errorf("geotiff: not a TIFF file (magic=%d)", magic)
	}

	ifdOffset := bo.Uint32(data[4:8])
	return parseIFD(data, bo, ifdOffset)
}

type ifdEntry struct {
	tag    uint16
	dtype  uint16
	count  uint32
	valOff uint32
}

func parseIFD(data []byte, bo binary.ByteOrder, offset uint32) (*Tile, error) {
	if int(offset)+2 > len(data) {
		return nil, fmt.Errorf("geotiff: IFD offset out of range")
	}

	numEntries := int(bo.Uint16(data[offset:]))
	entries := make([]ifdEntry, numEntries)

	pos := int(offset) + 2
	for i := 0; i < numEntries; i++ {
		if pos+12 > len(data) {
			return nil, fmt.Errorf("geotiff: truncated IFD entry")
		}
		entries[i] = ifdEntry{
			tag:    bo.Uint16(data[pos:]),
			dtype:  bo.Uint16(data[pos+2:]),
			count:  bo.Uint32(data[pos+4:]),
			valOff: bo.Uint32(data[pos+8:]),
		}
		pos += 12
	}

	find := func(tag uint16) *ifdEntry {
		for i := range entries {
			if entries[i].tag == tag {
				return &entries[i]
			}
		}
		return nil
	}

	scalarOf := func(tag uint16) (uint32, bool) {
		e := find(tag)
		if e == nil {
			return 0, false
		}
		sz := typeSize(e.dtype) * int(e.count)
		if sz <= 4 {
			if e.dtype == tiffShort && e.count == 1 {
				buf := make([]byte, 4)
				bo.PutUint32(buf, e.valOff)
				return uint32(bo.Uint16(buf)), true
			}
			return e.valOff, true
		}
		off := int(e.valOff)
		switch e.dtype {
		case tiffLong:
			return bo.Uint32(data[off:]), true
		case tiffShort:
			return uint32(bo.Uint16(data[off:])), true
		default:
			return e.valOff, true
		}
	}

	array32 := func(e *ifdEntry) []uint32 {
		if e == nil {
			return nil
		}
		n := int(e.count)
		sz := typeSize(e.dtype) * n
		var src []byte
		if sz <= 4 {
			buf := make([]byte, 4)
			bo.PutUint32(buf, e.valOff)
			src = buf
		} else {
			off := int(e.valOff)
			if off+sz > len(data) {
				return nil
			}
			src = data[off:]
		}
		arr := make([]uint32, n)
		for i := 0; i < n; i++ {
			if e.dtype == tiffShort {
				arr[i] = uint32(bo.Uint16(src[i*2:]))
			} else {
				arr[i] = bo.Uint32(src[i*4:])
			}
		}
		return arr
	}

	float64Array := func(e *ifdEntry) []float64 {
		if e == nil {
			return nil
		}
		n := int(e.count)
		off := int(e.valOff)
		if off+n*8 > len(data) {
			return nil
		}
		arr := make([]float64, n)
		for i := 0; i < n; i++ {
			arr[i] = math.Float64frombits(bo.Uint64(data[off+i*8:]))
		}
		return arr
	}

	width64, _ := scalarOf(tagImageWidth)
	height64, _ := scalarOf(tagImageLength)
	width := int(width64)
	height := int(height64)
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("geotiff: zero image dimensions")
	}

	compression, _ := scalarOf(tagCompression)
	bitsPerSample, _ := scalarOf(tagBitsPerSample)
	sampleFormat, ok := scalarOf(tagSampleFormat)
	if !ok || sampleFormat == 0 {
		sampleFormat = sampleFormatUint
	}

	scales := float64Array(find(tagModelPixelScale))
	tiepoints := float64Array(find(tagModelTiepoint))
	if len(scales) < 2 || len(tiepoints) < 6 {
		return nil, fmt.Errorf("geotiff: missing required ModelPixelScaleTag/ModelTiepointTag")
	}
	scaleX, scaleY := scales[0], scales[1]
	minLon := tiepoints[3] - tiepoints[0]*scaleX
	maxLat := tiepoints[4] + tiepoints[1]*scaleY
	maxLon := minLon + float64(width)*scaleX
	minLat := maxLat - float64(height)*scaleY

	topDown := make([]float64, width*height)

	isTiled := find(tagTileWidth) != nil
	if isTiled {
		tw64, _ := scalarOf(tagTileWidth)
		th64, _ := scalarOf(tagTileLength)
		tw, th := int(tw64), int(th64)
		offsets := array32(find(tagTileOffsets))
		byteCounts := array32(find(tagTileByteCounts))
		if len(offsets) == 0 {
			return nil, fmt.Errorf("geotiff: no tile offsets")
		}
		tilesX := (width + tw - 1) / tw
		tilesY := (height + th - 1) / th
		for ty := 0; ty < tilesY; ty++ {
			for tx := 0; tx < tilesX; tx++ {
				idx := ty*tilesX + tx
				if idx >= len(offsets) {
					break
				}
				raw, err := decompressChunk(data, offsets[idx], byteCounts[idx], compression)
				if err != nil {
					return nil, fmt.Errorf("geotiff: tile (%d,%d): %w", tx, ty, err)
				}
				writeChunk(raw, topDown, bo, bitsPerSample, sampleFormat, tx*tw, ty*th, tw, th, width, height)
			}
		}
	} else {
		rowsPerStrip64, ok := scalarOf(tagRowsPerStrip)
		rowsPerStrip := int(rowsPerStrip64)
		if !ok || rowsPerStrip == 0 {
			rowsPerStrip = height
		}
		offsets := array32(find(tagStripOffsets))
		byteCounts := array32(find(tagStripByteCounts))
		if len(offsets) == 0 {
			return nil, fmt.Errorf("geotiff: no strip offsets")
		}
		y := 0
		for i, off := range offsets {
			var bc uint32
			if i < len(byteCounts) {
				bc = byteCounts[i]
			}
			raw, err := decompressChunk(data, off, bc, compression)
			if err != nil {
				return nil, fmt.Errorf("geotiff: strip %d: %w", i, err)
			}
			rows := rowsPerStrip
			if y+rows > height {
				rows = height - y
			}
			writeChunk(raw, topDown, bo, bitsPerSample, sampleFormat, 0, y, width, rows, width, height)
			y += rows
		}
	}

	samples := make([]float32, width*height)
	for row := 0; row < height; row++ {
		srcRow := height - 1 - row // flip so row 0 == min_lat
		copy(samplesRow(samples, row, width), float32Row(topDown, srcRow, width))
	}

	return NewTile(minLat, maxLat, minLon, maxLon, height, width, samples)
}

func samplesRow(s []float32, row, width int) []float32 {
	return s[row*width : row*width+width]
}

func float32Row(s []float64, row, width int) []float32 {
	out := make([]float32, width)
	for i := 0; i < width; i++ {
		out[i] = float32(s[row*width+i])
	}
	return out
}

func typeSize(dtype uint16) int {
	switch dtype {
	case tiffByte:
		return 1
	case tiffShort:
		return 2
	case tiffLong, tiffFloat:
		return 4
	case tiffDouble:
		return 8
	default:
		return 1
	}
}

func decompressChunk(data []byte, offset, byteCount, compression uint32) ([]byte, error) {
	off := int(offset)
	bc := int(byteCount)
	if off+bc > len(data) || off < 0 || bc < 0 {
		return nil, fmt.Errorf("chunk out of bounds (off=%d bc=%d len=%d)", off, bc, len(data))
	}
	chunk := data[off : off+bc]

	switch compression {
	case 0, 1: // unspecified / none
		return chunk, nil
	case 8, 32946: // Deflate / zlib
		r, err := zlib.NewReader(bytes.NewReader(chunk))
		if err != nil {
			return nil, fmt.Errorf("zlib init: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("unsupported compression type %d", compression)
	}
}

// writeChunk decodes a raw strip/tile buffer of the given sample
// format/bit-depth into dst (a width*height float64 grid, top row first),
// placing it at (startX, startY).
func writeChunk(raw []byte, dst []float64, bo binary.ByteOrder, bitsPerSample, sampleFormat uint32, startX, startY, w, h, imgW, imgH int) {
	bytesPerSample := int(bitsPerSample) / 8
	if bytesPerSample == 0 {
		bytesPerSample = 4
	}
	for row := 0; row < h; row++ {
		y := startY + row
		if y >= imgH {
			break
		}
		for col := 0; col < w; col++ {
			x := startX + col
			if x >= imgW {
				continue
			}
			idx := (row*w + col) * bytesPerSample
			if idx+bytesPerSample > len(raw) {
				continue
			}
			dst[y*imgW+x] = decodeSample(raw[idx:], bo, bytesPerSample, sampleFormat)
		}
	}
}

func decodeSample(b []byte, bo binary.ByteOrder, size int, sampleFormat uint32) float64 {
	switch size {
	case 2:
		v := bo.Uint16(b)
		if sampleFormat == sampleFormatInt {
			return float64(int16(v))
		}
		return float64(v)
	case 4:
		if sampleFormat == sampleFormatFloat {
			return float64(math.Float32frombits(bo.Uint32(b)))
		}
		v := bo.Uint32(b)
		if sampleFormat == sampleFormatInt {
			return float64(int32(v))
		}
		return float64(v)
	case 8:
		return math.Float64frombits(bo.Uint64(b))
	default:
		return 0
	}
}
