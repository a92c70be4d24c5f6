// Package xmp parses and builds XMP metadata packets and embeds them as a
// JPEG APP1 segment or a PNG iTXt chunk. The packet is modeled as an ordered
// property bag so entries written by other tools keep their position across
// a round trip.
package xmp

import (
	"strings"
	"time"

	"github.com/ankit-chaubey/image-metadata-service/core"
)

// Namespaces used in serialized packets.
const (
	nsX   = "adobe:ns:meta/"
	nsRDF = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsDC  = "http://purl.org/dc/elements/1.1/"
	nsXMP = "http://ns.adobe.com/xap/1.0/"
	nsIMS = "https://example.com/image-metadata-service/1.0/"

	nsXML = "http://www.w3.org/XML/1998/namespace"
)

// Property is one key/value pair. Known keys (description, artist,
// copyright, software, datetime, user_comment) map to their standard RDF
// forms; anything else serializes under the service's vendor namespace and
// round-trips verbatim.
type Property struct {
	Key   string
	Value string
}

// Packet is an ordered property bag with O(1) lookup.
type Packet struct {
	props []Property
	index map[string]int
}

// NewPacket returns an empty packet.
func NewPacket() *Packet {
	return &Packet{index: map[string]int{}}
}

// Get returns the value for key.
func (p *Packet) Get(key string) (string, bool) {
	i, ok := p.index[key]
	if !ok {
		return "", false
	}
	return p.props[i].Value, true
}

// Set updates key in place or appends it, preserving insertion order.
func (p *Packet) Set(key, value string) {
	if i, ok := p.index[key]; ok {
		p.props[i].Value = value
		return
	}
	p.index[key] = len(p.props)
	p.props = append(p.props, Property{Key: key, Value: value})
}

// Len reports the number of properties.
func (p *Packet) Len() int { return len(p.props) }

// Properties returns the ordered property list.
func (p *Packet) Properties() []Property {
	out := make([]Property, len(p.props))
	copy(out, p.props)
	return out
}

// Map flattens the packet for the read response.
func (p *Packet) Map() map[string]string {
	if len(p.props) == 0 {
		return nil
	}
	out := make(map[string]string, len(p.props))
	for _, prop := range p.props {
		out[prop.Key] = prop.Value
	}
	return out
}

// Merge folds the requested updates into the packet without discarding any
// existing entry, so other tools' properties survive an unrelated write. The
// reserved datetime key is normalized to ISO 8601; custom keys must be valid
// element names since they serialize as markup.
func (p *Packet) Merge(set map[string]string, keys []string) error {
	for _, k := range keys {
		v := set[k]
		if k == "datetime" {
			iso, err := normalizeISO(v)
			if err != nil {
				return &core.FieldError{Namespace: core.NamespaceXMP, Key: k, Err: err}
			}
			v = iso
		}
		if !knownKey(k) && !validElementName(k) {
			return &core.FieldError{
				Namespace: core.NamespaceXMP,
				Key:       k,
				Err:       core.ErrInvalidFieldValue,
			}
		}
		p.Set(k, v)
	}
	return nil
}

var knownForms = map[string]bool{
	"description":  true,
	"artist":       true,
	"copyright":    true,
	"software":     true,
	"datetime":     true,
	"user_comment": true,
}

func knownKey(k string) bool { return knownForms[k] }

// validElementName accepts the conservative subset of XML names the vendor
// namespace uses: an ASCII letter or underscore followed by letters, digits,
// '_', '-' or '.'.
func validElementName(k string) bool {
	if k == "" {
		return false
	}
	for i := 0; i < len(k); i++ {
		c := k[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case i > 0 && (c >= '0' && c <= '9' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// normalizeISO converts a timestamp to ISO 8601 for xmp:ModifyDate. It
// accepts RFC 3339, the zone-less ISO forms, and the EXIF layout; a
// malformed date is a field error, never a silent substitution.
func normalizeISO(value string) (string, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006:01:02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(time.RFC3339), nil
		}
	}
	return "", core.ErrInvalidFieldValue
}

func xmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
