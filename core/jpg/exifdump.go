package jpg

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// DumpEXIF walks every EXIF field in a JPEG or TIFF buffer with the goexif
// decoder and prints tag/value lines. The CLI uses it for the full-tag
// listing beyond the fields the service maps.
func DumpEXIF(buf []byte, w io.Writer) error {
	x, err := exif.Decode(bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("no EXIF metadata found")
	}
	return x.Walk(dumpWalker{w: w})
}

type dumpWalker struct {
	w io.Writer
}

func (d dumpWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	fmt.Fprintf(d.w, "%s: %v\n", name, tag)
	return nil
}
