package exif

import (
	"encoding/binary"
	"fmt"

	"github.com/ankit-chaubey/image-metadata-service/core"
)

const (
	leHeader = "II\x2A\x00" // little-endian TIFF header
	beHeader = "MM\x00\x2A" // big-endian TIFF header

	entryLen = 12 // fixed length of one IFD entry
)

// Entry is one parsed IFD record. Value always holds the raw encoded bytes
// in the block's byte order, whether they were stored inline or at an offset.
type Entry struct {
	Tag   uint16
	Type  uint16
	Count uint32
	Value []byte

	// Original buffer locations, used for in-place patching of standalone
	// TIFF files. tableOff is -1 for synthesized entries; valueOff is 0
	// when the value was stored inline.
	tableOff int
	valueOff int
}

// size returns the encoded byte length of the entry's value.
func (e Entry) size() int { return typeSize(e.Type) * int(e.Count) }

// Block is a fully parsed TIFF block: IFD0 plus the EXIF, GPS and
// Interoperability sub-IFDs. Sub-IFD pointer entries are kept out of the
// entry lists and re-synthesized on encode.
type Block struct {
	Order   binary.ByteOrder
	IFD0    []Entry
	Exif    []Entry
	GPS     []Entry
	Interop []Entry
}

// NewBlock returns an empty little-endian block, the starting point when a
// container has no EXIF segment yet.
func NewBlock() *Block {
	return &Block{Order: binary.LittleEndian}
}

// Parse decodes a TIFF block (a whole TIFF file, or the payload of a JPEG
// APP1 segment after the "Exif\x00\x00" marker). Every offset is validated
// against the block length before it is dereferenced.
func Parse(data []byte, limits core.Limits) (*Block, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d bytes is too short for a TIFF header", core.ErrTruncatedIFD, len(data))
	}
	b := &Block{}
	switch string(data[0:4]) {
	case leHeader:
		b.Order = binary.LittleEndian
	case beHeader:
		b.Order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad TIFF byte-order marker", core.ErrUnrecognizedFormat)
	}

	ifdOffset := int(b.Order.Uint32(data[4:8]))
	entries, err := parseIFD(data, ifdOffset, b.Order, limits)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		switch e.Tag {
		case tagExifIFD, tagGPSIFD, tagInteropIFD:
			if e.size() != 4 {
				return nil, fmt.Errorf("%w: sub-IFD pointer with count %d", core.ErrUnsupportedTagType, e.Count)
			}
			sub, err := parseIFD(data, int(b.Order.Uint32(e.Value)), b.Order, limits)
			if err != nil {
				return nil, err
			}
			switch e.Tag {
			case tagExifIFD:
				b.Exif = sub
			case tagGPSIFD:
				b.GPS = sub
			default:
				b.Interop = sub
			}
		default:
			b.IFD0 = append(b.IFD0, e)
		}
	}

	// The Interoperability pointer normally hangs off the EXIF sub-IFD, not
	// IFD0. Lift it out so a rebuild never re-emits a stale offset.
	if i := findEntry(b.Exif, tagInteropIFD); i >= 0 {
		e := b.Exif[i]
		if e.size() != 4 {
			return nil, fmt.Errorf("%w: sub-IFD pointer with count %d", core.ErrUnsupportedTagType, e.Count)
		}
		sub, err := parseIFD(data, int(b.Order.Uint32(e.Value)), b.Order, limits)
		if err != nil {
			return nil, err
		}
		b.Interop = sub
		b.Exif = append(b.Exif[:i], b.Exif[i+1:]...)
	}
	return b, nil
}

// parseIFD reads one directory at offset. The entry count, every entry's
// value bounds, and the declared allocation sizes are all checked before any
// byte is read.
func parseIFD(data []byte, offset int, order binary.ByteOrder, limits core.Limits) ([]Entry, error) {
	if offset < 0 || offset+2 > len(data) {
		return nil, fmt.Errorf("%w: IFD at offset %d", core.ErrOffsetOutOfBounds, offset)
	}
	n := int(order.Uint16(data[offset : offset+2]))
	if limits.MaxIFDEntries > 0 && n > limits.MaxIFDEntries {
		return nil, fmt.Errorf("%w: IFD declares %d entries", core.ErrResourceLimitExceeded, n)
	}
	tableEnd := offset + 2 + n*entryLen
	if tableEnd+4 > len(data) {
		return nil, fmt.Errorf("%w: %d entries at offset %d exceed block of %d bytes",
			core.ErrTruncatedIFD, n, offset, len(data))
	}

	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		pos := offset + 2 + i*entryLen
		e := Entry{
			Tag:      order.Uint16(data[pos : pos+2]),
			Type:     order.Uint16(data[pos+2 : pos+4]),
			Count:    order.Uint32(data[pos+4 : pos+8]),
			tableOff: pos,
		}
		elem := typeSize(e.Type)
		if elem == 0 {
			return nil, fmt.Errorf("%w: tag 0x%04X has type code %d", core.ErrUnsupportedTagType, e.Tag, e.Type)
		}
		size := elem * int(e.Count)
		if limits.MaxChunk > 0 && size > limits.MaxChunk {
			return nil, fmt.Errorf("%w: tag 0x%04X declares %d value bytes", core.ErrResourceLimitExceeded, e.Tag, size)
		}
		if size <= 4 {
			e.Value = clone(data[pos+8 : pos+8+size])
		} else {
			valOff := int(order.Uint32(data[pos+8 : pos+12]))
			if valOff < 0 || valOff+size > len(data) {
				return nil, fmt.Errorf("%w: tag 0x%04X value at offset %d size %d",
					core.ErrOffsetOutOfBounds, e.Tag, valOff, size)
			}
			e.Value = clone(data[valOff : valOff+size])
			e.valueOff = valOff
		}
		entries = append(entries, e)
	}
	// The next-IFD pointer (thumbnail chain) is read for bounds validity but
	// the chain itself is not followed; IFD1 thumbnails are not metadata the
	// service exposes.
	return entries, nil
}

// Dimensions returns the pixel size recorded in IFD0, or zeros if absent.
func (b *Block) Dimensions() (w, h int) {
	return int(b.uintTag(tagImageWidth)), int(b.uintTag(tagImageLength))
}

func (b *Block) uintTag(tag uint16) uint32 {
	for _, e := range b.IFD0 {
		if e.Tag != tag || e.Count == 0 {
			continue
		}
		switch e.Type {
		case TypeShort:
			if len(e.Value) >= 2 {
				return uint32(b.Order.Uint16(e.Value[:2]))
			}
		case TypeLong:
			if len(e.Value) >= 4 {
				return b.Order.Uint32(e.Value[:4])
			}
		}
	}
	return 0
}

func findEntry(entries []Entry, tag uint16) int {
	for i, e := range entries {
		if e.Tag == tag {
			return i
		}
	}
	return -1
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
