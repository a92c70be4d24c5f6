package xmp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/image-metadata-service/core"
)

func TestPacketPreservesInsertionOrder(t *testing.T) {
	p := NewPacket()
	p.Set("zebra", "1")
	p.Set("apple", "2")
	p.Set("mango", "3")
	p.Set("apple", "updated") // in-place, keeps position

	want := []Property{
		{Key: "zebra", Value: "1"},
		{Key: "apple", Value: "updated"},
		{Key: "mango", Value: "3"},
	}
	if diff := cmp.Diff(want, p.Properties()); diff != "" {
		t.Fatalf("property order mismatch (-want +got):\n%s", diff)
	}

	v, ok := p.Get("apple")
	require.True(t, ok)
	require.Equal(t, "updated", v)
	_, ok = p.Get("missing")
	require.False(t, ok)
}

func TestEncodeParseRoundTrip(t *testing.T) {
	p := NewPacket()
	p.Set("description", "a <description> with & entities")
	p.Set("artist", "Jo Bloggs")
	p.Set("copyright", "© nobody")
	p.Set("software", "imgmeta 1.0")
	p.Set("datetime", "2024-06-01T12:30:00Z")
	p.Set("user_comment", "labelled")
	p.Set("project_id", "alpha-7")

	parsed, err := Parse(p.Encode())
	require.NoError(t, err)

	if diff := cmp.Diff(p.Properties(), parsed.Properties()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	// A second serialization of the reparsed packet is byte-identical.
	require.Equal(t, p.Encode(), parsed.Encode())
}

func TestParseForeignPacket(t *testing.T) {
	// A packet written by another tool: attribute shorthand, an Alt with two
	// language alternatives, and a vendor property in an unknown namespace.
	src := []byte(`<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
          xmlns:dc="http://purl.org/dc/elements/1.1/"
          xmlns:xmp="http://ns.adobe.com/xap/1.0/"
          xmlns:acme="https://acme.example/schema/">
  <rdf:Description rdf:about="" xmp:CreatorTool="Acme Shop 9">
   <dc:description>
    <rdf:Alt>
     <rdf:li xml:lang="de">Bild</rdf:li>
     <rdf:li xml:lang="x-default">picture</rdf:li>
    </rdf:Alt>
   </dc:description>
   <dc:creator><rdf:Seq><rdf:li>First Author</rdf:li><rdf:li>Second</rdf:li></rdf:Seq></dc:creator>
   <acme:batch>run-42</acme:batch>
  </rdf:Description>
 </rdf:RDF>
</x:xmpmeta>
<?xpacket end="w"?>`)

	p, err := Parse(src)
	require.NoError(t, err)

	m := p.Map()
	require.Equal(t, "Acme Shop 9", m["software"])
	require.Equal(t, "picture", m["description"], "x-default alternative wins")
	require.Equal(t, "First Author", m["artist"], "first sequence item wins")
	require.Equal(t, "run-42", m["batch"], "vendor property preserved")
}

func TestParseMalformedPacket(t *testing.T) {
	_, err := Parse([]byte("<x:xmpmeta><unclosed"))
	require.ErrorIs(t, err, core.ErrInvalidFieldValue)
}

func TestMergeKeepsForeignProperties(t *testing.T) {
	p := NewPacket()
	p.Set("batch", "run-42")
	p.Set("description", "old")

	err := p.Merge(map[string]string{
		"description": "new",
		"rating":      "5",
	}, []string{"description", "rating"})
	require.NoError(t, err)

	want := []Property{
		{Key: "batch", Value: "run-42"},
		{Key: "description", Value: "new"},
		{Key: "rating", Value: "5"},
	}
	if diff := cmp.Diff(want, p.Properties()); diff != "" {
		t.Fatalf("merge result mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeValidation(t *testing.T) {
	t.Run("datetime normalized to ISO", func(t *testing.T) {
		p := NewPacket()
		require.NoError(t, p.Merge(map[string]string{"datetime": "2024:06:01 12:30:00"}, []string{"datetime"}))
		v, _ := p.Get("datetime")
		require.Equal(t, "2024-06-01T12:30:00Z", v)
	})

	t.Run("malformed datetime rejected", func(t *testing.T) {
		p := NewPacket()
		err := p.Merge(map[string]string{"datetime": "soon"}, []string{"datetime"})
		require.ErrorIs(t, err, core.ErrInvalidFieldValue)
		var fe *core.FieldError
		require.ErrorAs(t, err, &fe)
		require.Equal(t, core.NamespaceXMP, fe.Namespace)
	})

	t.Run("custom key must be a valid element name", func(t *testing.T) {
		p := NewPacket()
		err := p.Merge(map[string]string{"bad key!": "v"}, []string{"bad key!"})
		require.ErrorIs(t, err, core.ErrInvalidFieldValue)
	})
}

func TestValidElementName(t *testing.T) {
	for _, ok := range []string{"rating", "project_id", "a", "_x", "Mixed-Case.2"} {
		require.True(t, validElementName(ok), ok)
	}
	for _, bad := range []string{"", "9lives", "-lead", "sp ace", "em<b>ed"} {
		require.False(t, validElementName(bad), bad)
	}
}
