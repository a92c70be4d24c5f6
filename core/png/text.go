package png

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding/charmap"

	"github.com/ankit-chaubey/image-metadata-service/core"
)

// TextEntry is one decoded key/value pair with the chunk type it came from.
type TextEntry struct {
	Key   string
	Value string
	Chunk string // "tEXt", "zTXt" or "iTXt"
}

// DecodeText decodes a text-carrying chunk. tEXt and zTXt values are
// Latin-1; iTXt is UTF-8 with optional language tag and zlib compression.
func DecodeText(c Chunk, limits core.Limits) (TextEntry, error) {
	null := bytes.IndexByte(c.Data, 0)
	if null <= 0 {
		return TextEntry{}, fmt.Errorf("%w: %s chunk has no keyword separator", core.ErrInvalidFieldValue, c.Type)
	}
	key := latin1String(c.Data[:null])
	rest := c.Data[null+1:]

	switch c.Type {
	case "tEXt":
		return TextEntry{Key: key, Value: latin1String(rest), Chunk: c.Type}, nil

	case "zTXt":
		if len(rest) < 1 || rest[0] != 0 {
			return TextEntry{}, fmt.Errorf("%w: zTXt compression method", core.ErrInvalidFieldValue)
		}
		raw, err := inflate(rest[1:], limits)
		if err != nil {
			return TextEntry{}, err
		}
		return TextEntry{Key: key, Value: latin1String(raw), Chunk: c.Type}, nil

	case "iTXt":
		// compression flag, compression method, language tag \0,
		// translated keyword \0, then UTF-8 text.
		if len(rest) < 2 {
			return TextEntry{}, fmt.Errorf("%w: short iTXt chunk", core.ErrInvalidFieldValue)
		}
		compressed := rest[0] == 1
		rest = rest[2:]
		for i := 0; i < 2; i++ {
			n := bytes.IndexByte(rest, 0)
			if n < 0 {
				return TextEntry{}, fmt.Errorf("%w: iTXt missing separator", core.ErrInvalidFieldValue)
			}
			rest = rest[n+1:]
		}
		text := rest
		if compressed {
			raw, err := inflate(rest, limits)
			if err != nil {
				return TextEntry{}, err
			}
			text = raw
		}
		return TextEntry{Key: key, Value: string(text), Chunk: c.Type}, nil
	}
	return TextEntry{}, fmt.Errorf("%w: %s is not a text chunk", core.ErrInvalidFieldValue, c.Type)
}

// TextEntries decodes every text chunk in order.
func TextEntries(chunks []Chunk, limits core.Limits) ([]TextEntry, error) {
	var out []TextEntry
	for _, c := range chunks {
		if !c.IsText() {
			continue
		}
		entry, err := DecodeText(c, limits)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// EncodeText builds a text chunk for a key/value pair: tEXt when the value
// is Latin-1 representable, iTXt (uncompressed, no language tag) otherwise.
// Keywords must be 1–79 Latin-1 bytes per the PNG keyword rules.
func EncodeText(key, value string) (Chunk, error) {
	kb, ok := latin1Bytes(key)
	if !ok || len(kb) == 0 || len(kb) > 79 {
		return Chunk{}, fmt.Errorf("%w: PNG keyword %q", core.ErrInvalidFieldValue, key)
	}
	if vb, ok := latin1Bytes(value); ok {
		data := append(append(kb, 0), vb...)
		return Chunk{Type: "tEXt", Data: data}, nil
	}
	data := append(kb, 0)
	data = append(data, 0, 0) // uncompressed, method 0
	data = append(data, 0, 0) // empty language tag, empty translated keyword
	data = append(data, value...)
	return Chunk{Type: "iTXt", Data: data}, nil
}

// SetText replaces the first text chunk carrying key, preserving its
// position in the stream, or inserts a new chunk immediately before IEND.
// All other chunks are returned untouched.
func SetText(chunks []Chunk, key, value string, limits core.Limits) ([]Chunk, error) {
	replacement, err := EncodeText(key, value)
	if err != nil {
		return nil, err
	}

	out := make([]Chunk, len(chunks))
	copy(out, chunks)
	for i, c := range out {
		if !c.IsText() {
			continue
		}
		entry, err := DecodeText(c, limits)
		if err != nil {
			return nil, err
		}
		if entry.Key == key {
			out[i] = replacement
			return out, nil
		}
	}

	// Insert before IEND (guaranteed last by ParseChunks).
	n := len(out)
	out = append(out, Chunk{})
	copy(out[n:], out[n-1:])
	out[n-1] = replacement
	return out, nil
}

func inflate(data []byte, limits core.Limits) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: bad zlib stream: %v", core.ErrInvalidFieldValue, err)
	}
	defer zr.Close()

	limit := int64(limits.MaxChunk)
	if limit <= 0 {
		limit = int64(core.DefaultLimits().MaxChunk)
	}
	raw, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: inflating text chunk: %v", core.ErrInvalidFieldValue, err)
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("%w: inflated text exceeds %d bytes", core.ErrResourceLimitExceeded, limit)
	}
	return raw, nil
}

func latin1String(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

func latin1Bytes(s string) ([]byte, bool) {
	if !utf8.ValidString(s) {
		return nil, false
	}
	enc, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, false
	}
	return enc, true
}
