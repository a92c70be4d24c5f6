// Package webp reads metadata chunks out of the WebP RIFF container. The
// container is read-only for this service: EXIF and XMP chunks are surfaced,
// writes are rejected by the orchestrator.
package webp

import (
	"encoding/binary"
	"fmt"

	"github.com/ankit-chaubey/image-metadata-service/core"
)

// Chunk is one RIFF chunk (without its padding byte).
type Chunk struct {
	ID   string
	Data []byte
}

// Chunks walks the RIFF payload after the 12-byte header.
func Chunks(buf []byte, limits core.Limits) ([]Chunk, error) {
	if len(buf) < 12 {
		return nil, fmt.Errorf("%w: short RIFF header", core.ErrTruncatedChunk)
	}
	var chunks []Chunk
	offset := 12
	for offset+8 <= len(buf) {
		id := string(buf[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(buf[offset+4 : offset+8]))
		if limits.MaxChunk > 0 && size > limits.MaxChunk {
			return nil, fmt.Errorf("%w: %s chunk declares %d bytes", core.ErrChunkTooLarge, id, size)
		}
		offset += 8
		if offset+size > len(buf) {
			return nil, fmt.Errorf("%w: %s chunk of %d bytes", core.ErrTruncatedChunk, id, size)
		}
		chunks = append(chunks, Chunk{ID: id, Data: buf[offset : offset+size]})
		offset += size
		if size%2 != 0 {
			offset++ // chunks are padded to even offsets
		}
	}
	if offset < len(buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes after last chunk", core.ErrTruncatedChunk, len(buf)-offset)
	}
	return chunks, nil
}

// Find returns the payload of the first chunk with the given ID.
func Find(chunks []Chunk, id string) ([]byte, bool) {
	for _, c := range chunks {
		if c.ID == id {
			return c.Data, true
		}
	}
	return nil, false
}

// Dimensions decodes the pixel size from whichever bitstream chunk leads the
// file: VP8 (lossy key frame), VP8L (lossless) or VP8X (extended).
func Dimensions(chunks []Chunk) (w, h int) {
	for _, c := range chunks {
		switch c.ID {
		case "VP8 ":
			if len(c.Data) >= 10 && c.Data[3] == 0x9D && c.Data[4] == 0x01 && c.Data[5] == 0x2A {
				w = int(binary.LittleEndian.Uint16(c.Data[6:8])) & 0x3FFF
				h = int(binary.LittleEndian.Uint16(c.Data[8:10])) & 0x3FFF
				return w, h
			}
		case "VP8L":
			if len(c.Data) >= 5 && c.Data[0] == 0x2F {
				bits := uint32(c.Data[1]) | uint32(c.Data[2])<<8 | uint32(c.Data[3])<<16 | uint32(c.Data[4])<<24
				w = int(bits&0x3FFF) + 1
				h = int((bits>>14)&0x3FFF) + 1
				return w, h
			}
		case "VP8X":
			// 4 bytes of flags, then 24-bit width-1 and height-1.
			if len(c.Data) >= 10 {
				w = 1 + (int(c.Data[4]) | int(c.Data[5])<<8 | int(c.Data[6])<<16)
				h = 1 + (int(c.Data[7]) | int(c.Data[8])<<8 | int(c.Data[9])<<16)
				return w, h
			}
		}
	}
	return 0, 0
}
