package webp

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/image-metadata-service/core"
)

// riff assembles a WebP container from chunks, with RIFF padding rules.
func riff(chunks ...Chunk) []byte {
	var body bytes.Buffer
	for _, c := range chunks {
		body.WriteString(c.ID)
		binary.Write(&body, binary.LittleEndian, uint32(len(c.Data)))
		body.Write(c.Data)
		if len(c.Data)%2 != 0 {
			body.WriteByte(0)
		}
	}
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(body.Len()+4))
	buf.WriteString("WEBP")
	buf.Write(body.Bytes())
	return buf.Bytes()
}

func vp8Chunk(w, h uint16) Chunk {
	data := make([]byte, 10)
	data[3], data[4], data[5] = 0x9D, 0x01, 0x2A
	binary.LittleEndian.PutUint16(data[6:8], w)
	binary.LittleEndian.PutUint16(data[8:10], h)
	return Chunk{ID: "VP8 ", Data: data}
}

func TestChunksWalk(t *testing.T) {
	buf := riff(vp8Chunk(64, 48), Chunk{ID: "EXIF", Data: []byte{1, 2, 3}})
	chunks, err := Chunks(buf, core.DefaultLimits())
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	data, ok := Find(chunks, "EXIF")
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, data)

	// Odd-sized chunks are padded; the chunk after one still parses.
	buf = riff(Chunk{ID: "XMP ", Data: []byte("odd")}, vp8Chunk(8, 8))
	chunks, err = Chunks(buf, core.DefaultLimits())
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, "VP8 ", chunks[1].ID)
}

func TestChunksRejectsTruncation(t *testing.T) {
	t.Run("short header", func(t *testing.T) {
		_, err := Chunks([]byte("RIFF"), core.DefaultLimits())
		require.ErrorIs(t, err, core.ErrTruncatedChunk)
	})

	t.Run("declared size past end", func(t *testing.T) {
		buf := riff(vp8Chunk(8, 8))
		binary.LittleEndian.PutUint32(buf[16:20], 4096)
		_, err := Chunks(buf, core.DefaultLimits())
		require.ErrorIs(t, err, core.ErrTruncatedChunk)
	})

	t.Run("trailing bytes shorter than a header", func(t *testing.T) {
		buf := append(riff(vp8Chunk(8, 8)), 'E', 'X', 'I')
		_, err := Chunks(buf, core.DefaultLimits())
		require.ErrorIs(t, err, core.ErrTruncatedChunk)
	})

	t.Run("chunk over limit", func(t *testing.T) {
		tight := core.DefaultLimits()
		tight.MaxChunk = 4
		_, err := Chunks(riff(vp8Chunk(8, 8)), tight)
		require.ErrorIs(t, err, core.ErrChunkTooLarge)
	})
}

func TestDimensions(t *testing.T) {
	t.Run("vp8", func(t *testing.T) {
		chunks, err := Chunks(riff(vp8Chunk(320, 240)), core.DefaultLimits())
		require.NoError(t, err)
		w, h := Dimensions(chunks)
		require.Equal(t, 320, w)
		require.Equal(t, 240, h)
	})

	t.Run("vp8l", func(t *testing.T) {
		// 14-bit fields store size-1: 100x50 packs as 99 | 49<<14.
		bits := uint32(99) | uint32(49)<<14
		data := []byte{0x2F, byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}
		chunks, err := Chunks(riff(Chunk{ID: "VP8L", Data: data}), core.DefaultLimits())
		require.NoError(t, err)
		w, h := Dimensions(chunks)
		require.Equal(t, 100, w)
		require.Equal(t, 50, h)
	})

	t.Run("vp8x", func(t *testing.T) {
		data := make([]byte, 10)
		// 24-bit canvas size minus one: 1920x1080.
		cw, ch := uint32(1919), uint32(1079)
		data[4], data[5], data[6] = byte(cw), byte(cw>>8), byte(cw>>16)
		data[7], data[8], data[9] = byte(ch), byte(ch>>8), byte(ch>>16)
		chunks, err := Chunks(riff(Chunk{ID: "VP8X", Data: data}), core.DefaultLimits())
		require.NoError(t, err)
		w, h := Dimensions(chunks)
		require.Equal(t, 1920, w)
		require.Equal(t, 1080, h)
	})

	t.Run("no bitstream chunk", func(t *testing.T) {
		chunks, err := Chunks(riff(Chunk{ID: "EXIF", Data: []byte{0}}), core.DefaultLimits())
		require.NoError(t, err)
		w, h := Dimensions(chunks)
		require.Zero(t, w)
		require.Zero(t, h)
	})
}
