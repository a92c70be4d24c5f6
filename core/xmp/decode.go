package xmp

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ankit-chaubey/image-metadata-service/core"
)

// structured maps the RDF container properties to their service keys.
var structured = map[xml.Name]string{
	{Space: nsDC, Local: "description"}: "description",
	{Space: nsDC, Local: "creator"}:     "artist",
	{Space: nsDC, Local: "rights"}:      "copyright",
}

// simple maps the plain text properties to their service keys.
var simple = map[xml.Name]string{
	{Space: nsXMP, Local: "CreatorTool"}: "software",
	{Space: nsXMP, Local: "ModifyDate"}:  "datetime",
	{Space: nsXMP, Local: "Label"}:       "user_comment",
}

// standardSpaces are namespaces whose unknown elements are skipped rather
// than surfaced as custom properties.
var standardSpaces = map[string]bool{
	nsX: true, nsRDF: true, nsDC: true, nsXMP: true, nsXML: true, "": true,
}

// Parse decodes an XMP packet's property set. Known properties surface under
// the service field names; any other element or attribute directly on
// rdf:Description is preserved as an opaque string keyed by its local name —
// no schema is enforced on vendor extensions.
func Parse(data []byte) (*Packet, error) {
	p := NewPacket()
	dec := xml.NewDecoder(bytes.NewReader(data))

	type frame struct {
		name xml.Name
		// service key of the structured property this element opened
		structKey string
		// set for a simple or custom leaf element collecting text
		leafKey string
		// language tag on an rdf:li
		lang string
	}
	var stack []frame
	var text strings.Builder

	inDescription := func() bool {
		return len(stack) > 0 && stack[len(stack)-1].name == xml.Name{Space: nsRDF, Local: "Description"}
	}
	enclosingStruct := func() string {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].structKey != "" {
				return stack[i].structKey
			}
		}
		return ""
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: malformed XMP packet: %v", core.ErrInvalidFieldValue, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			f := frame{name: t.Name}
			switch {
			case t.Name == xml.Name{Space: nsRDF, Local: "Description"}:
				collectDescriptionAttrs(p, t.Attr)
			case inDescription():
				if key, ok := structured[t.Name]; ok {
					f.structKey = key
				} else if key, ok := simple[t.Name]; ok {
					f.leafKey = key
					text.Reset()
				} else if !standardSpaces[t.Name.Space] {
					f.leafKey = t.Name.Local
					text.Reset()
				}
			case t.Name == xml.Name{Space: nsRDF, Local: "li"} && enclosingStruct() != "":
				f.leafKey = enclosingStruct()
				for _, a := range t.Attr {
					if a.Name.Local == "lang" {
						f.lang = a.Value
					}
				}
				text.Reset()
			}
			stack = append(stack, f)

		case xml.CharData:
			if len(stack) > 0 && stack[len(stack)-1].leafKey != "" {
				text.Write(t)
			}

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unbalanced XMP markup", core.ErrInvalidFieldValue)
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if f.leafKey == "" {
				continue
			}
			value := strings.TrimSpace(text.String())
			text.Reset()
			if value == "" {
				continue
			}
			if _, exists := p.Get(f.leafKey); exists {
				// Alt containers prefer the x-default alternative; for
				// everything else the first occurrence wins.
				if f.lang == "x-default" {
					p.Set(f.leafKey, value)
				}
				continue
			}
			p.Set(f.leafKey, value)
		}
	}
	return p, nil
}

// collectDescriptionAttrs handles the RDF shorthand where simple properties
// appear as attributes on rdf:Description itself.
func collectDescriptionAttrs(p *Packet, attrs []xml.Attr) {
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" || a.Value == "" {
			continue
		}
		if key, ok := simple[a.Name]; ok {
			if _, exists := p.Get(key); !exists {
				p.Set(key, a.Value)
			}
			continue
		}
		if standardSpaces[a.Name.Space] {
			continue
		}
		if _, exists := p.Get(a.Name.Local); !exists {
			p.Set(a.Name.Local, a.Value)
		}
	}
}
