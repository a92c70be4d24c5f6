package core

import "bytes"

// FormatID enumerates every recognised container format.
type FormatID string

const (
	FmtJPEG    FormatID = "JPEG"
	FmtPNG     FormatID = "PNG"
	FmtTIFF    FormatID = "TIFF"
	FmtWebP    FormatID = "WEBP"
	FmtUnknown FormatID = "UNKNOWN"
)

// PNGSignature is the fixed 8-byte prefix of every PNG stream.
var PNGSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// DetectFormat classifies a raw buffer by its magic bytes. There is no
// heuristic fallback: a buffer matching none of the four prefixes fails with
// ErrUnrecognizedFormat and must not be parsed further.
func DetectFormat(buf []byte) (FormatID, error) {
	if len(buf) < 4 {
		return FmtUnknown, ErrUnrecognizedFormat
	}
	switch {
	// JPEG: FF D8
	case buf[0] == 0xFF && buf[1] == 0xD8:
		return FmtJPEG, nil
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	case bytes.HasPrefix(buf, PNGSignature):
		return FmtPNG, nil
	// TIFF: II 2A 00 (little-endian) or MM 00 2A (big-endian)
	case bytes.HasPrefix(buf, []byte{0x49, 0x49, 0x2A, 0x00}) ||
		bytes.HasPrefix(buf, []byte{0x4D, 0x4D, 0x00, 0x2A}):
		return FmtTIFF, nil
	// WebP: RIFF????WEBP
	case len(buf) >= 12 && bytes.Equal(buf[0:4], []byte("RIFF")) &&
		bytes.Equal(buf[8:12], []byte("WEBP")):
		return FmtWebP, nil
	}
	return FmtUnknown, ErrUnrecognizedFormat
}
