package exif

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	goexif "github.com/rwcarlsen/goexif/exif"
)

// Encode serializes the block as a complete self-contained TIFF structure:
// header, IFD0, value areas, then the EXIF, GPS and Interoperability
// sub-IFDs. All offsets are recomputed; entry order inside each directory is
// ascending by tag as the format requires, which also makes the output
// deterministic.
func (b *Block) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if b.Order == binary.BigEndian {
		buf.WriteString(beHeader)
	} else {
		buf.WriteString(leHeader)
	}
	var off [4]byte
	b.Order.PutUint32(off[:], 8)
	buf.Write(off[:])

	body, err := b.encodeBody(8, 0)
	if err != nil {
		return nil, err
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

// encodeBody serializes the IFD region assuming it starts at absolute offset
// base within the TIFF block. next is the next-IFD pointer stored after
// IFD0's entries (zero except when an original thumbnail/page chain is being
// preserved by a standalone-TIFF rewrite).
func (b *Block) encodeBody(base int, next uint32) ([]byte, error) {
	ifd0 := sortedByTag(b.IFD0)
	exifEntries := sortedByTag(b.Exif)
	gpsEntries := sortedByTag(b.GPS)
	interopEntries := sortedByTag(b.Interop)

	// The Interoperability directory hangs off the EXIF sub-IFD, so keeping
	// it forces an EXIF directory even when no EXIF entries remain.
	hasExif := len(exifEntries) > 0 || len(interopEntries) > 0

	n0 := len(ifd0)
	if hasExif {
		n0++
	}
	if len(gpsEntries) > 0 {
		n0++
	}
	nExif := len(exifEntries)
	if len(interopEntries) > 0 {
		nExif++
	}

	ifd0Start := base
	ifd0ValStart := ifd0Start + directorySize(n0)
	exifStart := ifd0ValStart + valueAreaSize(ifd0)
	gpsStart := exifStart
	if hasExif {
		gpsStart = exifStart + directorySize(nExif) + valueAreaSize(exifEntries)
	}
	interopStart := gpsStart
	if len(gpsEntries) > 0 {
		interopStart = gpsStart + directorySize(len(gpsEntries)) + valueAreaSize(gpsEntries)
	}

	// Synthesize the sub-IFD pointer entries now that their targets are known.
	if len(interopEntries) > 0 {
		exifEntries = insertSorted(exifEntries, pointerEntry(tagInteropIFD, uint32(interopStart), b.Order))
	}
	if hasExif {
		ifd0 = insertSorted(ifd0, pointerEntry(tagExifIFD, uint32(exifStart), b.Order))
	}
	if len(gpsEntries) > 0 {
		ifd0 = insertSorted(ifd0, pointerEntry(tagGPSIFD, uint32(gpsStart), b.Order))
	}

	var buf bytes.Buffer
	b.writeDirectory(&buf, ifd0, ifd0ValStart, next)
	if hasExif {
		b.writeDirectory(&buf, exifEntries, exifStart+directorySize(nExif), 0)
	}
	if len(gpsEntries) > 0 {
		b.writeDirectory(&buf, gpsEntries, gpsStart+directorySize(len(gpsEntries)), 0)
	}
	if len(interopEntries) > 0 {
		b.writeDirectory(&buf, interopEntries, interopStart+directorySize(len(interopEntries)), 0)
	}
	return buf.Bytes(), nil
}

// directorySize is the table footprint: count, entries, next-IFD pointer.
func directorySize(n int) int { return 2 + n*entryLen + 4 }

// valueAreaSize sums the out-of-line values, each padded to an even length
// so every recorded offset stays word-aligned.
func valueAreaSize(entries []Entry) int {
	total := 0
	for _, e := range entries {
		if s := e.size(); s > 4 {
			total += s + s%2
		}
	}
	return total
}

func (b *Block) writeDirectory(buf *bytes.Buffer, entries []Entry, valStart int, next uint32) {
	var scratch [4]byte
	b.Order.PutUint16(scratch[:2], uint16(len(entries)))
	buf.Write(scratch[:2])

	var values bytes.Buffer
	for _, e := range entries {
		b.Order.PutUint16(scratch[:2], e.Tag)
		buf.Write(scratch[:2])
		b.Order.PutUint16(scratch[:2], e.Type)
		buf.Write(scratch[:2])
		b.Order.PutUint32(scratch[:], e.Count)
		buf.Write(scratch[:])
		if s := e.size(); s <= 4 {
			var inline [4]byte
			copy(inline[:], e.Value)
			buf.Write(inline[:])
		} else {
			b.Order.PutUint32(scratch[:], uint32(valStart+values.Len()))
			buf.Write(scratch[:])
			values.Write(e.Value)
			if s%2 != 0 {
				values.WriteByte(0)
			}
		}
	}
	b.Order.PutUint32(scratch[:], next)
	buf.Write(scratch[:])
	buf.Write(values.Bytes())
}

func pointerEntry(tag uint16, target uint32, order binary.ByteOrder) Entry {
	v := make([]byte, 4)
	order.PutUint32(v, target)
	return Entry{Tag: tag, Type: TypeLong, Count: 1, Value: v, tableOff: -1}
}

func sortedByTag(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

func insertSorted(entries []Entry, e Entry) []Entry {
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Tag >= e.Tag })
	entries = append(entries, Entry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	return entries
}

// Verify decodes a serialized TIFF block with an independent EXIF reader.
// Every block this codec emits passes through here before it is spliced back
// into a container.
func Verify(block []byte) error {
	if _, err := goexif.Decode(bytes.NewReader(block)); err != nil {
		return fmt.Errorf("serialized EXIF failed verification: %w", err)
	}
	return nil
}
