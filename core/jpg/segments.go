// Package jpg handles the JPEG marker-segment stream: parsing a buffer into
// segments, locating and replacing APP1 payloads, and reassembling the
// stream byte-for-byte around the mutated segment.
package jpg

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ankit-chaubey/image-metadata-service/core"
)

// Marker values the codec cares about.
const (
	MarkerSOI  = 0xD8
	MarkerEOI  = 0xD9
	MarkerAPP0 = 0xE0
	MarkerAPP1 = 0xE1
	MarkerSOS  = 0xDA

	// markerScan is the sentinel for the entropy-coded tail following SOS;
	// it is copied through verbatim.
	markerScan = 0x00
)

// ExifPrefix identifies an EXIF APP1 payload.
var ExifPrefix = []byte("Exif\x00\x00")

// Segment is one marker segment. For MarkerSOI/MarkerEOI, Data is empty; for
// markerScan it holds the raw entropy-coded bytes through end of buffer.
type Segment struct {
	Marker byte
	Data   []byte
}

// Parse splits a JPEG buffer into its segments. Declared segment lengths are
// validated against the remaining buffer; the entropy-coded data after SOS is
// kept as a single opaque segment so reassembly is byte-exact.
func Parse(buf []byte, limits core.Limits) ([]Segment, error) {
	if len(buf) < 2 || buf[0] != 0xFF || buf[1] != MarkerSOI {
		return nil, fmt.Errorf("%w: missing JPEG SOI marker", core.ErrUnrecognizedFormat)
	}
	segs := []Segment{{Marker: MarkerSOI}}

	i := 2
	for i < len(buf) {
		if buf[i] != 0xFF {
			return nil, fmt.Errorf("%w: expected marker at offset %d", core.ErrTruncatedChunk, i)
		}
		if i+1 >= len(buf) {
			break
		}
		marker := buf[i+1]
		i += 2

		switch {
		case marker == MarkerEOI:
			segs = append(segs, Segment{Marker: MarkerEOI})
			// Trailing bytes after EOI pass through with the scan data.
			if i < len(buf) {
				segs = append(segs, Segment{Marker: markerScan, Data: buf[i:]})
			}
			return segs, nil
		case marker >= 0xD0 && marker <= 0xD7:
			// RSTn markers carry no length.
			segs = append(segs, Segment{Marker: marker})
			continue
		}

		if i+2 > len(buf) {
			return nil, fmt.Errorf("%w: segment 0x%02X has no length field", core.ErrTruncatedChunk, marker)
		}
		segLen := int(binary.BigEndian.Uint16(buf[i:i+2])) - 2
		if segLen < 0 || i+2+segLen > len(buf) {
			return nil, fmt.Errorf("%w: segment 0x%02X declares %d bytes past buffer end",
				core.ErrTruncatedChunk, marker, segLen)
		}
		if limits.MaxChunk > 0 && segLen > limits.MaxChunk {
			return nil, fmt.Errorf("%w: segment 0x%02X declares %d bytes", core.ErrResourceLimitExceeded, marker, segLen)
		}
		segs = append(segs, Segment{Marker: marker, Data: buf[i+2 : i+2+segLen]})
		i += 2 + segLen

		if marker == MarkerSOS {
			// Everything from here to end of buffer is entropy-coded scan
			// data (including any embedded RSTn and the final EOI).
			segs = append(segs, Segment{Marker: markerScan, Data: buf[i:]})
			return segs, nil
		}
	}
	return segs, nil
}

// Assemble re-serializes the segment list. Untouched segments come out
// byte-identical to their parsed form.
func Assemble(segs []Segment) []byte {
	var buf bytes.Buffer
	for _, seg := range segs {
		switch seg.Marker {
		case MarkerSOI, MarkerEOI:
			buf.Write([]byte{0xFF, seg.Marker})
		case markerScan:
			buf.Write(seg.Data)
		default:
			if seg.Marker >= 0xD0 && seg.Marker <= 0xD7 && len(seg.Data) == 0 {
				buf.Write([]byte{0xFF, seg.Marker})
				continue
			}
			buf.Write([]byte{0xFF, seg.Marker})
			length := uint16(len(seg.Data) + 2)
			buf.Write([]byte{byte(length >> 8), byte(length)})
			buf.Write(seg.Data)
		}
	}
	return buf.Bytes()
}

// FindAPP1 returns the index of the first APP1 segment whose payload starts
// with prefix, or -1.
func FindAPP1(segs []Segment, prefix []byte) int {
	for i, seg := range segs {
		if seg.Marker == MarkerAPP1 && bytes.HasPrefix(seg.Data, prefix) {
			return i
		}
	}
	return -1
}

// ReplaceOrInsertAPP1 swaps the payload of the APP1 segment matching prefix,
// or inserts a new APP1 after the leading run of APP0/APP1 segments so JFIF
// and EXIF headers keep their customary position. The payload length must
// fit the 16-bit segment length field.
func ReplaceOrInsertAPP1(segs []Segment, prefix []byte, payload []byte) ([]Segment, error) {
	if len(payload)+2 > 0xFFFF {
		return nil, fmt.Errorf("%w: APP1 payload of %d bytes exceeds segment limit",
			core.ErrInvalidFieldValue, len(payload))
	}
	if i := FindAPP1(segs, prefix); i >= 0 {
		out := make([]Segment, len(segs))
		copy(out, segs)
		out[i] = Segment{Marker: MarkerAPP1, Data: payload}
		return out, nil
	}

	insert := 1 // directly after SOI
	for i := 1; i < len(segs); i++ {
		if segs[i].Marker == MarkerAPP0 || segs[i].Marker == MarkerAPP1 {
			insert = i + 1
			continue
		}
		break
	}
	out := make([]Segment, 0, len(segs)+1)
	out = append(out, segs[:insert]...)
	out = append(out, Segment{Marker: MarkerAPP1, Data: payload})
	out = append(out, segs[insert:]...)
	return out, nil
}

// Dimensions scans for the first start-of-frame segment and returns the
// encoded pixel size, or zeros when no SOF is present.
func Dimensions(segs []Segment) (w, h int) {
	for _, seg := range segs {
		switch seg.Marker {
		case 0xC0, 0xC1, 0xC2, 0xC3, 0xC5, 0xC6, 0xC7, 0xC9, 0xCA, 0xCB, 0xCD, 0xCE, 0xCF:
			if len(seg.Data) >= 5 {
				h = int(binary.BigEndian.Uint16(seg.Data[1:3]))
				w = int(binary.BigEndian.Uint16(seg.Data[3:5]))
				return w, h
			}
		}
	}
	return 0, 0
}
