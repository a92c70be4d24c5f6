package xmp

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/image-metadata-service/core"
	"github.com/ankit-chaubey/image-metadata-service/core/jpg"
	"github.com/ankit-chaubey/image-metadata-service/core/png"
)

func minimalJPEGSegments() []jpg.Segment {
	return []jpg.Segment{
		{Marker: jpg.MarkerSOI},
		{Marker: jpg.MarkerAPP0, Data: []byte("JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")},
		{Marker: jpg.MarkerSOS, Data: []byte{0x01, 0x01, 0x00, 0x00, 0x3F, 0x00}},
		{Marker: 0x00, Data: []byte{0x12, 0x34, 0xFF, 0xD9}},
	}
}

func minimalPNGChunks() []png.Chunk {
	return []png.Chunk{
		{Type: "IHDR", Data: make([]byte, 13)},
		{Type: "IDAT", Data: []byte{1, 2, 3}},
		{Type: "IEND"},
	}
}

func TestEmbedExtractJPEG(t *testing.T) {
	p := NewPacket()
	p.Set("description", "embedded")
	p.Set("rating", "5")

	segs, err := EmbedJPEG(minimalJPEGSegments(), p)
	require.NoError(t, err)

	i := jpg.FindAPP1(segs, JPEGHeader)
	require.GreaterOrEqual(t, i, 0)
	require.True(t, bytes.HasPrefix(segs[i].Data, JPEGHeader))

	got, found, err := ExtractJPEG(segs)
	require.NoError(t, err)
	require.True(t, found)
	if diff := cmp.Diff(p.Properties(), got.Properties()); diff != "" {
		t.Fatalf("packet mismatch (-want +got):\n%s", diff)
	}

	// Embedding again replaces the segment instead of adding a second one.
	got.Set("rating", "4")
	again, err := EmbedJPEG(segs, got)
	require.NoError(t, err)
	require.Len(t, again, len(segs))
}

func TestExtractJPEGAbsent(t *testing.T) {
	_, found, err := ExtractJPEG(minimalJPEGSegments())
	require.NoError(t, err)
	require.False(t, found)
}

func TestEmbedExtractPNG(t *testing.T) {
	limits := core.DefaultLimits()
	p := NewPacket()
	p.Set("software", "imgmeta")

	chunks := EmbedPNG(minimalPNGChunks(), p)
	// The packet chunk lands immediately before IEND, as iTXt.
	require.Equal(t, "IEND", chunks[len(chunks)-1].Type)
	require.Equal(t, "iTXt", chunks[len(chunks)-2].Type)
	require.True(t, isXMPChunk(chunks[len(chunks)-2]))

	got, found, err := ExtractPNG(chunks, limits)
	require.NoError(t, err)
	require.True(t, found)
	v, _ := got.Get("software")
	require.Equal(t, "imgmeta", v)

	// Replacement is positional.
	got.Set("software", "other tool")
	replaced := EmbedPNG(chunks, got)
	require.Len(t, replaced, len(chunks))

	reread, found, err := ExtractPNG(replaced, limits)
	require.NoError(t, err)
	require.True(t, found)
	v, _ = reread.Get("software")
	require.Equal(t, "other tool", v)
}

func TestExtractPNGIgnoresOtherITXT(t *testing.T) {
	chunks := minimalPNGChunks()
	chunks = append(chunks[:2], png.Chunk{
		Type: "iTXt",
		Data: []byte("Comment\x00\x00\x00\x00\x00just a note"),
	}, chunks[2])

	_, found, err := ExtractPNG(chunks, core.DefaultLimits())
	require.NoError(t, err)
	require.False(t, found)
}
