// Package png processes the PNG chunk stream. Text-carrying chunks
// (tEXt/zTXt/iTXt) are decoded and rewritten; every other chunk passes
// through byte-identical, in its original order. That fidelity guarantee is
// the whole point of this codec.
package png

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/ankit-chaubey/image-metadata-service/core"
)

// Chunk is one PNG chunk. The CRC is not stored: it is validated on parse
// and recomputed on assembly, so an untouched chunk round-trips exactly.
type Chunk struct {
	Type string
	Data []byte
}

// IsText reports whether the chunk carries a key/value text pair.
func (c Chunk) IsText() bool {
	return c.Type == "tEXt" || c.Type == "zTXt" || c.Type == "iTXt"
}

// ParseChunks scans the chunk stream from byte 8, validating each declared
// length against the remaining buffer and each chunk's CRC-32 over
// type ++ data. Corruption fails the request; there is no salvage mode.
func ParseChunks(buf []byte, limits core.Limits) ([]Chunk, error) {
	if !bytes.HasPrefix(buf, core.PNGSignature) {
		return nil, fmt.Errorf("%w: missing PNG signature", core.ErrUnrecognizedFormat)
	}

	var chunks []Chunk
	i := len(core.PNGSignature)
	for i < len(buf) {
		if i+8 > len(buf) {
			return nil, fmt.Errorf("%w: chunk header at offset %d", core.ErrTruncatedChunk, i)
		}
		length := int(binary.BigEndian.Uint32(buf[i : i+4]))
		typ := string(buf[i+4 : i+8])
		if limits.MaxChunk > 0 && length > limits.MaxChunk {
			return nil, fmt.Errorf("%w: %s chunk declares %d bytes", core.ErrChunkTooLarge, typ, length)
		}
		if i+8+length+4 > len(buf) {
			return nil, fmt.Errorf("%w: %s chunk of %d bytes at offset %d", core.ErrTruncatedChunk, typ, length, i)
		}
		data := buf[i+8 : i+8+length]
		stored := binary.BigEndian.Uint32(buf[i+8+length : i+12+length])
		if computed := chunkCRC(typ, data); computed != stored {
			return nil, fmt.Errorf("%w: %s chunk stored %08x computed %08x",
				core.ErrChunkCRCMismatch, typ, stored, computed)
		}
		chunks = append(chunks, Chunk{Type: typ, Data: data})
		i += 12 + length
		if typ == "IEND" {
			break
		}
	}
	if len(chunks) == 0 || chunks[len(chunks)-1].Type != "IEND" {
		return nil, fmt.Errorf("%w: missing IEND chunk", core.ErrTruncatedChunk)
	}
	return chunks, nil
}

// Assemble re-serializes the chunk list with recomputed CRCs.
func Assemble(chunks []Chunk) []byte {
	var buf bytes.Buffer
	buf.Write(core.PNGSignature)
	var scratch [4]byte
	for _, c := range chunks {
		binary.BigEndian.PutUint32(scratch[:], uint32(len(c.Data)))
		buf.Write(scratch[:])
		buf.WriteString(c.Type)
		buf.Write(c.Data)
		binary.BigEndian.PutUint32(scratch[:], chunkCRC(c.Type, c.Data))
		buf.Write(scratch[:])
	}
	return buf.Bytes()
}

// chunkCRC is the PNG CRC-32 over chunk type and data.
func chunkCRC(typ string, data []byte) uint32 {
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	return crc.Sum32()
}

// Dimensions reads the pixel size from IHDR, or zeros if it is malformed.
func Dimensions(chunks []Chunk) (w, h int) {
	for _, c := range chunks {
		if c.Type == "IHDR" && len(c.Data) >= 8 {
			return int(binary.BigEndian.Uint32(c.Data[0:4])), int(binary.BigEndian.Uint32(c.Data[4:8]))
		}
	}
	return 0, 0
}

// FindEXIF returns the payload of an eXIf chunk, if present.
func FindEXIF(chunks []Chunk) ([]byte, bool) {
	for _, c := range chunks {
		if c.Type == "eXIf" {
			return c.Data, true
		}
	}
	return nil, false
}
