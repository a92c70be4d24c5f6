// Package core defines the shared types, the format sniffer, and the error
// taxonomy for the image metadata service.
package core

// Namespace identifies which codec owns a metadata field.
type Namespace string

const (
	NamespaceEXIF    Namespace = "exif"
	NamespacePNGText Namespace = "png_text"
	NamespaceXMP     Namespace = "xmp"
)

// ReadResult is the merged metadata extracted from one container. Maps are
// nil when the corresponding namespace is absent from the buffer.
type ReadResult struct {
	Format  FormatID          `json:"format"`
	Width   int               `json:"width,omitempty"`
	Height  int               `json:"height,omitempty"`
	EXIF    map[string]string `json:"exif,omitempty"`
	PNGText map[string]string `json:"png_text,omitempty"`
	XMP     map[string]string `json:"xmp,omitempty"`
}

// WriteRequest carries the requested field updates for one container.
type WriteRequest struct {
	// Set maps field key to new value. Keys are case-sensitive within the
	// selected namespace.
	Set map[string]string `json:"set"`
	// Namespace optionally overrides the per-format default codec
	// (XMP for JPEG/PNG, EXIF for TIFF). Leave empty for the default.
	Namespace Namespace `json:"namespace,omitempty"`
}

// WriteResult holds the reassembled container and echoes the keys that were
// applied. Updated contains every requested key exactly when the whole write
// succeeded; partial application never happens.
type WriteResult struct {
	Image   []byte            `json:"-"`
	Format  FormatID          `json:"format"`
	Updated map[string]string `json:"updated"`
}

// Limits bounds allocations driven by lengths declared inside the buffer.
// Exceeding any of them fails the request with ErrResourceLimitExceeded.
type Limits struct {
	// MaxBuffer caps the size of an input container in bytes.
	MaxBuffer int `yaml:"max_buffer"`
	// MaxChunk caps a single declared PNG chunk or JPEG segment length.
	MaxChunk int `yaml:"max_chunk"`
	// MaxIFDEntries caps the declared entry count of a single IFD.
	MaxIFDEntries int `yaml:"max_ifd_entries"`
}

// DefaultLimits are generous enough for any plausible photograph while still
// rejecting pathological declared lengths.
func DefaultLimits() Limits {
	return Limits{
		MaxBuffer:     64 << 20,
		MaxChunk:      16 << 20,
		MaxIFDEntries: 4096,
	}
}

// EXIFFieldNames lists the keys the EXIF codec can write. Requests for any
// other key in the EXIF namespace fail with ErrUnsupportedOperation.
var EXIFFieldNames = []string{
	"description", "artist", "copyright", "software", "datetime", "user_comment",
}
