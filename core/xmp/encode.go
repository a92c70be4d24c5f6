package xmp

import "strings"

const (
	packetHeader = "<?xpacket begin=\"\uFEFF\" id=\"W5M0MpCehiHzreSzNTczkc9d\"?>\n"
	packetFooter = "<?xpacket end='w'?>"
)

// Encode serializes the packet. Properties are emitted in bag order, each in
// its standard RDF form, custom keys under the vendor namespace, so an
// unchanged packet always re-serializes to the same bytes.
func (p *Packet) Encode() []byte {
	var b strings.Builder
	b.WriteString(packetHeader)
	b.WriteString("<x:xmpmeta xmlns:x='" + nsX + "'>\n")
	b.WriteString("  <rdf:RDF xmlns:rdf='" + nsRDF + "'\n")
	b.WriteString("           xmlns:dc='" + nsDC + "'\n")
	b.WriteString("           xmlns:xmp='" + nsXMP + "'\n")
	b.WriteString("           xmlns:ims='" + nsIMS + "'>\n")
	b.WriteString("    <rdf:Description rdf:about=''>\n")

	for _, prop := range p.props {
		writeProperty(&b, prop.Key, prop.Value)
	}

	b.WriteString("    </rdf:Description>\n")
	b.WriteString("  </rdf:RDF>\n")
	b.WriteString("</x:xmpmeta>\n")
	b.WriteString(packetFooter)
	return []byte(b.String())
}

func writeProperty(b *strings.Builder, key, value string) {
	v := xmlEscape(value)
	switch key {
	case "description":
		writeAlt(b, "dc:description", v)
	case "copyright":
		writeAlt(b, "dc:rights", v)
	case "artist":
		b.WriteString("      <dc:creator>\n")
		b.WriteString("        <rdf:Seq>\n")
		b.WriteString("          <rdf:li>" + v + "</rdf:li>\n")
		b.WriteString("        </rdf:Seq>\n")
		b.WriteString("      </dc:creator>\n")
	case "software":
		b.WriteString("      <xmp:CreatorTool>" + v + "</xmp:CreatorTool>\n")
	case "datetime":
		b.WriteString("      <xmp:ModifyDate>" + v + "</xmp:ModifyDate>\n")
	case "user_comment":
		b.WriteString("      <xmp:Label>" + v + "</xmp:Label>\n")
	default:
		b.WriteString("      <ims:" + key + ">" + v + "</ims:" + key + ">\n")
	}
}

func writeAlt(b *strings.Builder, element, value string) {
	b.WriteString("      <" + element + ">\n")
	b.WriteString("        <rdf:Alt>\n")
	b.WriteString("          <rdf:li xml:lang='x-default'>" + value + "</rdf:li>\n")
	b.WriteString("        </rdf:Alt>\n")
	b.WriteString("      </" + element + ">\n")
}
