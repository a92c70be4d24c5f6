package exif

import (
	"fmt"
	"sort"

	"github.com/ankit-chaubey/image-metadata-service/core"
)

// PatchTIFF applies field updates to a standalone TIFF buffer without
// touching pixel data. When every new value fits the slot of the entry it
// replaces, the IFD is rewritten at its original location. Otherwise the
// updated directory chain is appended at the end of the buffer and the
// header's entry-point offset is repointed; strip offsets stay valid because
// nothing before the append moves.
func PatchTIFF(buf []byte, set map[string]string, limits core.Limits) ([]byte, error) {
	block, err := Parse(buf, limits)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Stage and validate every field before mutating anything. A single
	// failure aborts the whole write.
	for _, k := range keys {
		if err := block.SetField(k, set[k]); err != nil {
			return nil, &core.FieldError{Namespace: core.NamespaceEXIF, Key: k, Err: err}
		}
	}

	if out, ok := patchInPlace(buf, block, keys); ok {
		return out, nil
	}
	return appendDirectories(buf, block)
}

// patchInPlace succeeds only when every staged entry replaces an existing
// one and its encoded value fits either inline or inside the old
// out-of-line slot.
func patchInPlace(buf []byte, block *Block, keys []string) ([]byte, bool) {
	var staged []Entry
	for _, k := range keys {
		spec := fieldSpecs[k]
		entries := block.IFD0
		if spec.where == inExifIFD {
			entries = block.Exif
		}
		i := findEntry(entries, spec.tag)
		if i < 0 {
			return nil, false
		}
		e := entries[i]
		if e.tableOff < 0 {
			return nil, false // appended, no original slot
		}
		if s := e.size(); s > 4 {
			if e.valueOff == 0 || s > oldSlotSize(buf, block, e.tableOff) {
				return nil, false
			}
		}
		staged = append(staged, e)
	}

	out := clone(buf)
	for _, e := range staged {
		pos := e.tableOff
		block.Order.PutUint16(out[pos:pos+2], e.Tag)
		block.Order.PutUint16(out[pos+2:pos+4], e.Type)
		block.Order.PutUint32(out[pos+4:pos+8], e.Count)
		if s := e.size(); s <= 4 {
			copy(out[pos+8:pos+12], []byte{0, 0, 0, 0})
			copy(out[pos+8:pos+12], e.Value)
		} else {
			block.Order.PutUint32(out[pos+8:pos+12], uint32(e.valueOff))
			// Zero the tail of the old slot so no stale text trails the
			// new terminator.
			old := oldSlotSize(buf, block, e.tableOff)
			for i := e.valueOff + s; i < e.valueOff+old; i++ {
				out[i] = 0
			}
			copy(out[e.valueOff:e.valueOff+s], e.Value)
		}
	}
	return out, true
}

// oldSlotSize reads the original entry record straight from the buffer to
// recover the capacity of its value slot.
func oldSlotSize(buf []byte, block *Block, tableOff int) int {
	if tableOff+8 > len(buf) {
		return 0
	}
	typ := block.Order.Uint16(buf[tableOff+2 : tableOff+4])
	count := block.Order.Uint32(buf[tableOff+4 : tableOff+8])
	return typeSize(typ) * int(count)
}

// appendDirectories serializes the whole updated directory chain after the
// existing bytes and patches the header's IFD0 offset. The original
// next-IFD pointer (multi-page chain) is carried over unchanged.
func appendDirectories(buf []byte, block *Block) ([]byte, error) {
	out := clone(buf)
	if len(out)%2 != 0 {
		out = append(out, 0)
	}
	base := len(out)
	if base > 0xFFFFFFFF-8 {
		return nil, fmt.Errorf("%w: TIFF buffer too large to extend", core.ErrResourceLimitExceeded)
	}

	body, err := block.encodeBody(base, originalNextPointer(buf, block))
	if err != nil {
		return nil, err
	}
	out = append(out, body...)
	block.Order.PutUint32(out[4:8], uint32(base))
	return out, nil
}

func originalNextPointer(buf []byte, block *Block) uint32 {
	ifdOffset := int(block.Order.Uint32(buf[4:8]))
	if ifdOffset+2 > len(buf) {
		return 0
	}
	n := int(block.Order.Uint16(buf[ifdOffset : ifdOffset+2]))
	nextPos := ifdOffset + 2 + n*entryLen
	if nextPos+4 > len(buf) {
		return 0
	}
	return block.Order.Uint32(buf[nextPos : nextPos+4])
}
