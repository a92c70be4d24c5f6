package xmp

import (
	"bytes"

	"github.com/ankit-chaubey/image-metadata-service/core"
	"github.com/ankit-chaubey/image-metadata-service/core/jpg"
	"github.com/ankit-chaubey/image-metadata-service/core/png"
)

// JPEGHeader is the GUID marker that distinguishes an XMP APP1 segment from
// an EXIF one.
var JPEGHeader = []byte("http://ns.adobe.com/xap/1.0/\x00")

// PNGKeyword is the reserved iTXt keyword for XMP packets in PNG.
const PNGKeyword = "XML:com.adobe.xmp"

// ExtractJPEG finds and parses the XMP packet in a JPEG segment list.
func ExtractJPEG(segs []jpg.Segment) (*Packet, bool, error) {
	i := jpg.FindAPP1(segs, JPEGHeader)
	if i < 0 {
		return nil, false, nil
	}
	p, err := Parse(segs[i].Data[len(JPEGHeader):])
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// EmbedJPEG serializes the packet into an APP1 segment, replacing an
// existing XMP segment in place or inserting after the leading APP0/APP1
// run.
func EmbedJPEG(segs []jpg.Segment, p *Packet) ([]jpg.Segment, error) {
	payload := append(append([]byte{}, JPEGHeader...), p.Encode()...)
	return jpg.ReplaceOrInsertAPP1(segs, JPEGHeader, payload)
}

// ExtractPNG finds and parses the XMP packet carried in the reserved iTXt
// chunk.
func ExtractPNG(chunks []png.Chunk, limits core.Limits) (*Packet, bool, error) {
	for _, c := range chunks {
		if c.Type != "iTXt" {
			continue
		}
		entry, err := png.DecodeText(c, limits)
		if err != nil {
			return nil, false, err
		}
		if entry.Key == PNGKeyword {
			p, err := Parse([]byte(entry.Value))
			if err != nil {
				return nil, false, err
			}
			return p, true, nil
		}
	}
	return nil, false, nil
}

// EmbedPNG writes the packet into the reserved iTXt chunk, replacing an
// existing one in place or inserting before IEND. XMP always travels in
// iTXt, never tEXt, regardless of its byte content.
func EmbedPNG(chunks []png.Chunk, p *Packet) []png.Chunk {
	chunk := pngChunk(p)
	out := make([]png.Chunk, len(chunks))
	copy(out, chunks)
	for i, c := range out {
		if c.Type == "iTXt" && isXMPChunk(c) {
			out[i] = chunk
			return out
		}
	}
	n := len(out)
	out = append(out, png.Chunk{})
	copy(out[n:], out[n-1:])
	out[n-1] = chunk
	return out
}

func pngChunk(p *Packet) png.Chunk {
	data := append([]byte(PNGKeyword), 0)
	data = append(data, 0, 0) // uncompressed, method 0
	data = append(data, 0, 0) // empty language tag, empty translated keyword
	data = append(data, p.Encode()...)
	return png.Chunk{Type: "iTXt", Data: data}
}

func isXMPChunk(c png.Chunk) bool {
	null := bytes.IndexByte(c.Data, 0)
	return null > 0 && string(c.Data[:null]) == PNGKeyword
}
