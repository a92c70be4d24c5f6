package exif

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"

	"github.com/ankit-chaubey/image-metadata-service/core"
)

// DateTimeLayout is the fixed-width representation EXIF mandates for every
// date/time tag.
const DateTimeLayout = "2006:01:02 15:04:05"

// UserComment character-set prefixes (EXIF 2.3 §4.6.5, tag 0x9286).
var (
	ucASCII     = []byte("ASCII\x00\x00\x00")
	ucUnicode   = []byte("UNICODE\x00")
	ucJIS       = []byte("JIS\x00\x00\x00\x00\x00")
	ucUndefined = []byte{0, 0, 0, 0, 0, 0, 0, 0}
)

// Fields decodes IFD0 and the EXIF sub-IFD into the flat string map the
// service exposes. The six writable tags surface under their service names;
// other recognised tags keep their canonical TIFF names. GPS entries are
// preserved on rewrite but not surfaced.
func (b *Block) Fields() map[string]string {
	out := map[string]string{}
	b.collect(b.IFD0, out)
	b.collect(b.Exif, out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func (b *Block) collect(entries []Entry, out map[string]string) {
	for _, e := range entries {
		name, known := fieldNameByTag[e.Tag]
		if !known {
			if name = tagNames[e.Tag]; name == "" {
				continue
			}
		}
		if v, ok := b.decodeValue(e); ok {
			out[name] = v
		}
	}
}

func (b *Block) decodeValue(e Entry) (string, bool) {
	switch {
	case e.Tag == tagUserComment:
		return decodeUserComment(e.Value, b.Order), true
	case e.Tag >= tagXPTitle && e.Tag <= tagXPSubject:
		// XP* tags are UTF-16LE regardless of the block's byte order.
		return decodeUTF16(e.Value, unicode.LittleEndian), true
	}
	switch e.Type {
	case TypeASCII:
		return trimASCII(e.Value), true
	case TypeShort, TypeLong, TypeSLong:
		return b.decodeInts(e), true
	case TypeRational, TypeSRational:
		return b.decodeRationals(e), true
	}
	return "", false
}

func (b *Block) decodeInts(e Entry) string {
	elem := typeSize(e.Type)
	var parts []string
	for off := 0; off+elem <= len(e.Value); off += elem {
		switch e.Type {
		case TypeShort:
			parts = append(parts, strconv.FormatUint(uint64(b.Order.Uint16(e.Value[off:])), 10))
		case TypeLong:
			parts = append(parts, strconv.FormatUint(uint64(b.Order.Uint32(e.Value[off:])), 10))
		case TypeSLong:
			parts = append(parts, strconv.FormatInt(int64(int32(b.Order.Uint32(e.Value[off:]))), 10))
		}
	}
	return strings.Join(parts, " ")
}

func (b *Block) decodeRationals(e Entry) string {
	var parts []string
	for off := 0; off+8 <= len(e.Value); off += 8 {
		num := b.Order.Uint32(e.Value[off:])
		den := b.Order.Uint32(e.Value[off+4:])
		if e.Type == TypeSRational {
			parts = append(parts, fmt.Sprintf("%d/%d", int32(num), int32(den)))
		} else {
			parts = append(parts, fmt.Sprintf("%d/%d", num, den))
		}
	}
	return strings.Join(parts, " ")
}

func trimASCII(v []byte) string {
	return string(bytes.TrimRight(v, "\x00"))
}

// decodeUserComment honors the 8-byte character-set prefix instead of
// assuming one charset. An unknown or missing prefix falls back to a plain
// trim, which matches how most writers emit the undefined charset.
func decodeUserComment(v []byte, order binary.ByteOrder) string {
	if len(v) < 8 {
		return trimASCII(v)
	}
	prefix, rest := v[:8], v[8:]
	switch {
	case bytes.HasPrefix(prefix, []byte("ASCII")):
		return trimASCII(rest)
	case bytes.HasPrefix(prefix, []byte("UNICODE")):
		endian := unicode.Endianness(unicode.BigEndian)
		if order == binary.LittleEndian {
			endian = unicode.LittleEndian
		}
		return decodeUTF16(rest, endian)
	case bytes.HasPrefix(prefix, []byte("JIS")):
		dec := japanese.ShiftJIS.NewDecoder()
		if s, err := dec.Bytes(rest); err == nil {
			return trimASCII(s)
		}
		return ""
	case bytes.Equal(prefix, ucUndefined):
		return trimASCII(rest)
	}
	return trimASCII(v)
}

func decodeUTF16(v []byte, endian unicode.Endianness) string {
	dec := unicode.UTF16(endian, unicode.UseBOM).NewDecoder()
	s, err := dec.Bytes(v)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(s), "\x00")
}

// SetField stages one service field into the block, overwriting a matching
// tag or appending a new entry. The value is validated and encoded here;
// offsets are recomputed later during serialization.
func (b *Block) SetField(key, value string) error {
	spec, ok := fieldSpecs[key]
	if !ok {
		return fmt.Errorf("%w: no EXIF tag for key %q", core.ErrUnsupportedOperation, key)
	}
	entry, err := encodeField(key, spec.tag, value, b.Order)
	if err != nil {
		return err
	}
	switch spec.where {
	case inExifIFD:
		b.Exif = upsert(b.Exif, entry)
	default:
		b.IFD0 = upsert(b.IFD0, entry)
	}
	return nil
}

func upsert(entries []Entry, e Entry) []Entry {
	if i := findEntry(entries, e.Tag); i >= 0 {
		// Keep the original table slot location for in-place patching.
		e.tableOff = entries[i].tableOff
		e.valueOff = entries[i].valueOff
		entries[i] = e
		return entries
	}
	e.tableOff = -1
	return append(entries, e)
}

func encodeField(key string, tag uint16, value string, order binary.ByteOrder) (Entry, error) {
	if tag == tagUserComment {
		v := encodeUserComment(value, order)
		return Entry{Tag: tag, Type: TypeUndefined, Count: uint32(len(v)), Value: v}, nil
	}
	if key == "datetime" {
		norm, err := NormalizeDateTime(value)
		if err != nil {
			return Entry{}, err
		}
		value = norm
	}
	if !isASCII(value) {
		return Entry{}, fmt.Errorf("%w: %q must be ASCII for EXIF tag 0x%04X", core.ErrInvalidFieldValue, key, tag)
	}
	v := append([]byte(value), 0)
	return Entry{Tag: tag, Type: TypeASCII, Count: uint32(len(v)), Value: v}, nil
}

// encodeUserComment writes the ASCII prefix when the text allows it and
// falls back to UNICODE/UTF-16 in the block's byte order otherwise, so
// non-Latin comments survive instead of being stripped.
func encodeUserComment(value string, order binary.ByteOrder) []byte {
	if isASCII(value) {
		return append(clone(ucASCII), value...)
	}
	endian := unicode.Endianness(unicode.BigEndian)
	if order == binary.LittleEndian {
		endian = unicode.LittleEndian
	}
	enc := unicode.UTF16(endian, unicode.IgnoreBOM).NewEncoder()
	encoded, err := enc.Bytes([]byte(value))
	if err != nil {
		return append(clone(ucASCII), []byte(value)...)
	}
	return append(clone(ucUnicode), encoded...)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}

// NormalizeDateTime converts a caller-supplied timestamp to the fixed-width
// EXIF layout. It accepts the EXIF layout itself, RFC 3339, and the common
// space-separated ISO form; anything else is ErrInvalidFieldValue — dates
// are never silently truncated into shape.
func NormalizeDateTime(value string) (string, error) {
	layouts := []string{
		DateTimeLayout,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(DateTimeLayout), nil
		}
	}
	return "", fmt.Errorf("%w: cannot parse datetime %q", core.ErrInvalidFieldValue, value)
}
