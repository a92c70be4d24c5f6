package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// Printer renders results for the CLI shell.
type Printer struct {
	JSON   bool
	Writer io.Writer
}

// NewPrinter creates a default Printer writing to stdout.
func NewPrinter(jsonMode bool) *Printer {
	return &Printer{JSON: jsonMode, Writer: os.Stdout}
}

// PrintRead renders a ReadResult to the configured output.
func (p *Printer) PrintRead(res *ReadResult) {
	if p.JSON {
		p.printJSON(res)
		return
	}
	fmt.Fprintf(p.Writer, "Format: %s\n", res.Format)
	if res.Width > 0 || res.Height > 0 {
		fmt.Fprintf(p.Writer, "Size  : %d x %d\n", res.Width, res.Height)
	}
	p.printGroup("EXIF", res.EXIF)
	p.printGroup("PNG text", res.PNGText)
	p.printGroup("XMP", res.XMP)
	if res.EXIF == nil && res.PNGText == nil && res.XMP == nil {
		fmt.Fprintln(p.Writer, "(no metadata found)")
	}
}

func (p *Printer) printGroup(label string, fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	fmt.Fprintf(p.Writer, "\n── %s ──\n", label)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(p.Writer, "  %-24s %s\n", k+":", fields[k])
	}
}

// PrintWrite reports the applied keys of a write operation.
func (p *Printer) PrintWrite(res *WriteResult) {
	if p.JSON {
		p.printJSON(res)
		return
	}
	fmt.Fprintf(p.Writer, "Format: %s\n", res.Format)
	keys := make([]string, 0, len(res.Updated))
	for k := range res.Updated {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(p.Writer, "  set %s = %s\n", k, res.Updated[k])
	}
}

func (p *Printer) printJSON(v any) {
	enc := json.NewEncoder(p.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(p.Writer, "error encoding JSON: %v\n", err)
	}
}
