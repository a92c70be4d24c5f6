// Package exif parses and serializes EXIF/TIFF Image File Directories
// independent of the outer container. The same codec backs the APP1 segment
// of a JPEG and the top level of a standalone TIFF file.
package exif

// IFD entry type codes (TIFF 6.0 §2).
const (
	TypeByte      uint16 = 1
	TypeASCII     uint16 = 2
	TypeShort     uint16 = 3
	TypeLong      uint16 = 4
	TypeRational  uint16 = 5
	TypeSByte     uint16 = 6
	TypeUndefined uint16 = 7
	TypeSShort    uint16 = 8
	TypeSLong     uint16 = 9
	TypeSRational uint16 = 10
	TypeFloat     uint16 = 11
	TypeDouble    uint16 = 12
)

// typeSize returns the element size in bytes, or 0 for an unknown type code.
func typeSize(t uint16) int {
	switch t {
	case TypeByte, TypeASCII, TypeSByte, TypeUndefined:
		return 1
	case TypeShort, TypeSShort:
		return 2
	case TypeLong, TypeSLong, TypeFloat:
		return 4
	case TypeRational, TypeSRational, TypeDouble:
		return 8
	default:
		return 0
	}
}

// Tag IDs used by the codec.
const (
	tagImageWidth       = 0x0100
	tagImageLength      = 0x0101
	tagBitsPerSample    = 0x0102
	tagCompression      = 0x0103
	tagPhotometric      = 0x0106
	tagImageDescription = 0x010E
	tagMake             = 0x010F
	tagModel            = 0x0110
	tagStripOffsets     = 0x0111
	tagOrientation      = 0x0112
	tagXResolution      = 0x011A
	tagYResolution      = 0x011B
	tagResolutionUnit   = 0x0128
	tagSoftware         = 0x0131
	tagDateTime         = 0x0132
	tagArtist           = 0x013B
	tagCopyright        = 0x8298
	tagExposureTime     = 0x829A
	tagFNumber          = 0x829D
	tagExifIFD          = 0x8769
	tagGPSIFD           = 0x8825
	tagISO              = 0x8827
	tagDateTimeOriginal = 0x9003
	tagDateTimeDigit    = 0x9004
	tagUserComment      = 0x9286
	tagInteropIFD       = 0xA005
	tagXPTitle          = 0x9C9B
	tagXPComment        = 0x9C9C
	tagXPAuthor         = 0x9C9D
	tagXPKeywords       = 0x9C9E
	tagXPSubject        = 0x9C9F
)

// tagNames maps tags the reader surfaces under their canonical TIFF names.
// The six service field names (description, artist, ...) take precedence and
// are handled separately in Fields.
var tagNames = map[uint16]string{
	tagImageWidth:       "ImageWidth",
	tagImageLength:      "ImageLength",
	tagBitsPerSample:    "BitsPerSample",
	tagCompression:      "Compression",
	tagPhotometric:      "PhotometricInterpretation",
	tagMake:             "Make",
	tagModel:            "Model",
	tagOrientation:      "Orientation",
	tagXResolution:      "XResolution",
	tagYResolution:      "YResolution",
	tagResolutionUnit:   "ResolutionUnit",
	tagExposureTime:     "ExposureTime",
	tagFNumber:          "FNumber",
	tagISO:              "ISO",
	tagDateTimeOriginal: "DateTimeOriginal",
	tagDateTimeDigit:    "DateTimeDigitized",
	tagXPTitle:          "XPTitle",
	tagXPComment:        "XPComment",
	tagXPAuthor:         "XPAuthor",
	tagXPKeywords:       "XPKeywords",
	tagXPSubject:        "XPSubject",
}

// placement says which directory a writable field lives in.
type placement int

const (
	inIFD0 placement = iota
	inExifIFD
)

type fieldSpec struct {
	tag   uint16
	where placement
}

// fieldSpecs maps the service's writable field names to their tags. All are
// ASCII in IFD0 except user_comment, an UNDEFINED entry in the EXIF sub-IFD
// carrying an 8-byte character-set prefix.
var fieldSpecs = map[string]fieldSpec{
	"description":  {tagImageDescription, inIFD0},
	"artist":       {tagArtist, inIFD0},
	"copyright":    {tagCopyright, inIFD0},
	"software":     {tagSoftware, inIFD0},
	"datetime":     {tagDateTime, inIFD0},
	"user_comment": {tagUserComment, inExifIFD},
}

// fieldNameByTag is the reverse of fieldSpecs, for the read path.
var fieldNameByTag = map[uint16]string{}

func init() {
	for name, spec := range fieldSpecs {
		fieldNameByTag[spec.tag] = name
	}
}
