package png

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	stdpng "image/png"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/image-metadata-service/core"
)

func pngFixture(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 25), G: uint8(y * 25), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, stdpng.Encode(&buf, img))
	return buf.Bytes()
}

// rawChunk serializes one chunk with a correct CRC for hand-built streams.
func rawChunk(typ string, data []byte) []byte {
	var buf bytes.Buffer
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], uint32(len(data)))
	buf.Write(scratch[:])
	buf.WriteString(typ)
	buf.Write(data)
	binary.BigEndian.PutUint32(scratch[:], chunkCRC(typ, data))
	buf.Write(scratch[:])
	return buf.Bytes()
}

func TestParseAssembleByteExact(t *testing.T) {
	fixture := pngFixture(t)
	chunks, err := ParseChunks(fixture, core.DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, "IHDR", chunks[0].Type)
	require.Equal(t, "IEND", chunks[len(chunks)-1].Type)
	require.Equal(t, fixture, Assemble(chunks))
}

func TestParseRejectsCorruption(t *testing.T) {
	limits := core.DefaultLimits()

	t.Run("bad signature", func(t *testing.T) {
		_, err := ParseChunks([]byte("definitely not a png"), limits)
		require.ErrorIs(t, err, core.ErrUnrecognizedFormat)
	})

	t.Run("flipped data byte fails CRC", func(t *testing.T) {
		buf := append([]byte{}, pngFixture(t)...)
		i := bytes.Index(buf, []byte("IDAT"))
		require.Greater(t, i, 0)
		buf[i+6] ^= 0xFF
		_, err := ParseChunks(buf, limits)
		require.ErrorIs(t, err, core.ErrChunkCRCMismatch)
	})

	t.Run("declared length past end", func(t *testing.T) {
		buf := append([]byte{}, core.PNGSignature...)
		buf = binary.BigEndian.AppendUint32(buf, 100)
		buf = append(buf, "IHDR"...)
		_, err := ParseChunks(buf, limits)
		require.ErrorIs(t, err, core.ErrTruncatedChunk)
	})

	t.Run("chunk over limit", func(t *testing.T) {
		tight := limits
		tight.MaxChunk = 8
		_, err := ParseChunks(pngFixture(t), tight)
		require.ErrorIs(t, err, core.ErrChunkTooLarge)
	})

	t.Run("missing IEND", func(t *testing.T) {
		buf := append([]byte{}, core.PNGSignature...)
		buf = append(buf, rawChunk("IHDR", make([]byte, 13))...)
		_, err := ParseChunks(buf, limits)
		require.ErrorIs(t, err, core.ErrTruncatedChunk)
	})
}

func TestDimensions(t *testing.T) {
	chunks, err := ParseChunks(pngFixture(t), core.DefaultLimits())
	require.NoError(t, err)
	w, h := Dimensions(chunks)
	require.Equal(t, 10, w)
	require.Equal(t, 10, h)
}

func TestDecodeTextVariants(t *testing.T) {
	limits := core.DefaultLimits()

	t.Run("tEXt latin1", func(t *testing.T) {
		c := Chunk{Type: "tEXt", Data: []byte("Comment\x00caf\xE9 time")}
		entry, err := DecodeText(c, limits)
		require.NoError(t, err)
		require.Equal(t, "Comment", entry.Key)
		require.Equal(t, "café time", entry.Value)
	})

	t.Run("zTXt inflates", func(t *testing.T) {
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		_, err := zw.Write([]byte("compressed payload"))
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		data := append([]byte("Description\x00\x00"), z.Bytes()...)
		entry, err := DecodeText(Chunk{Type: "zTXt", Data: data}, limits)
		require.NoError(t, err)
		require.Equal(t, "Description", entry.Key)
		require.Equal(t, "compressed payload", entry.Value)
	})

	t.Run("iTXt utf8", func(t *testing.T) {
		data := []byte("Title\x00\x00\x00\x00\x00emoji ✓ text")
		entry, err := DecodeText(Chunk{Type: "iTXt", Data: data}, limits)
		require.NoError(t, err)
		require.Equal(t, "Title", entry.Key)
		require.Equal(t, "emoji ✓ text", entry.Value)
	})

	t.Run("iTXt compressed", func(t *testing.T) {
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		_, err := zw.Write([]byte("squeezed"))
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		data := append([]byte("Key\x00\x01\x00\x00\x00"), z.Bytes()...)
		entry, err := DecodeText(Chunk{Type: "iTXt", Data: data}, limits)
		require.NoError(t, err)
		require.Equal(t, "squeezed", entry.Value)
	})

	t.Run("missing keyword separator", func(t *testing.T) {
		_, err := DecodeText(Chunk{Type: "tEXt", Data: []byte("no separator")}, limits)
		require.ErrorIs(t, err, core.ErrInvalidFieldValue)
	})

	t.Run("bad zlib stream", func(t *testing.T) {
		_, err := DecodeText(Chunk{Type: "zTXt", Data: []byte("K\x00\x00garbage")}, limits)
		require.ErrorIs(t, err, core.ErrInvalidFieldValue)
	})
}

func TestEncodeTextChoosesChunkType(t *testing.T) {
	t.Run("latin1 value gets tEXt", func(t *testing.T) {
		c, err := EncodeText("Comment", "plain café")
		require.NoError(t, err)
		require.Equal(t, "tEXt", c.Type)
	})

	t.Run("non-latin1 value gets iTXt", func(t *testing.T) {
		c, err := EncodeText("Comment", "日本語")
		require.NoError(t, err)
		require.Equal(t, "iTXt", c.Type)

		entry, err := DecodeText(c, core.DefaultLimits())
		require.NoError(t, err)
		require.Equal(t, "日本語", entry.Value)
	})

	t.Run("keyword rules", func(t *testing.T) {
		_, err := EncodeText("", "v")
		require.ErrorIs(t, err, core.ErrInvalidFieldValue)
		_, err = EncodeText(string(make([]byte, 80)), "v")
		require.ErrorIs(t, err, core.ErrInvalidFieldValue)
	})
}

func TestSetTextPreservesOtherChunks(t *testing.T) {
	limits := core.DefaultLimits()
	chunks, err := ParseChunks(pngFixture(t), limits)
	require.NoError(t, err)
	var idat []byte
	for _, c := range chunks {
		if c.Type == "IDAT" {
			idat = c.Data
		}
	}

	withText, err := SetText(chunks, "Author", "someone", limits)
	require.NoError(t, err)
	// New chunk sits immediately before IEND.
	require.Equal(t, "IEND", withText[len(withText)-1].Type)
	require.Equal(t, "tEXt", withText[len(withText)-2].Type)

	reparsed, err := ParseChunks(Assemble(withText), limits)
	require.NoError(t, err)
	entries, err := TextEntries(reparsed, limits)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "Author", entries[0].Key)
	require.Equal(t, "someone", entries[0].Value)

	for _, c := range reparsed {
		if c.Type == "IDAT" {
			require.Equal(t, idat, c.Data)
		}
	}

	// Replacing keeps the chunk's position instead of re-appending.
	replaced, err := SetText(withText, "Author", "someone else", limits)
	require.NoError(t, err)
	require.Len(t, replaced, len(withText))
	entry, err := DecodeText(replaced[len(replaced)-2], limits)
	require.NoError(t, err)
	require.Equal(t, "someone else", entry.Value)
}

func TestInflateBombRejected(t *testing.T) {
	// A tiny zlib stream expanding past MaxChunk must fail the limit, not
	// allocate the expansion.
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	_, err := zw.Write(bytes.Repeat([]byte{0}, 1<<16))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	tight := core.DefaultLimits()
	tight.MaxChunk = 1024
	data := append([]byte("K\x00\x00"), z.Bytes()...)
	_, err = DecodeText(Chunk{Type: "zTXt", Data: data}, tight)
	require.ErrorIs(t, err, core.ErrResourceLimitExceeded)
}
