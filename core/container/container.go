// Package container orchestrates the format-specific codecs: it classifies
// a buffer, dispatches read or write work to the codecs that apply, and
// reassembles the output. Requests are independent; a Service holds no
// mutable state and is safe for any number of concurrent callers.
package container

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ankit-chaubey/image-metadata-service/core"
	"github.com/ankit-chaubey/image-metadata-service/core/exif"
	"github.com/ankit-chaubey/image-metadata-service/core/jpg"
	"github.com/ankit-chaubey/image-metadata-service/core/png"
	"github.com/ankit-chaubey/image-metadata-service/core/webp"
	"github.com/ankit-chaubey/image-metadata-service/core/xmp"
)

// Service is the per-request entry point of the codec.
type Service struct {
	limits core.Limits
}

// New returns a Service bounded by limits. Zero-valued limit fields fall
// back to the defaults.
func New(limits core.Limits) *Service {
	def := core.DefaultLimits()
	if limits.MaxBuffer <= 0 {
		limits.MaxBuffer = def.MaxBuffer
	}
	if limits.MaxChunk <= 0 {
		limits.MaxChunk = def.MaxChunk
	}
	if limits.MaxIFDEntries <= 0 {
		limits.MaxIFDEntries = def.MaxIFDEntries
	}
	return &Service{limits: limits}
}

// Read extracts every metadata namespace applicable to the detected format
// and merges them into one result. A parse failure in any applicable codec
// fails the whole read; there are no silent empty results.
func (s *Service) Read(buf []byte) (*core.ReadResult, error) {
	if err := s.checkSize(buf); err != nil {
		return nil, err
	}
	format, err := core.DetectFormat(buf)
	if err != nil {
		return nil, err
	}
	res := &core.ReadResult{Format: format}
	switch format {
	case core.FmtJPEG:
		err = s.readJPEG(buf, res)
	case core.FmtPNG:
		err = s.readPNG(buf, res)
	case core.FmtTIFF:
		err = s.readTIFF(buf, res)
	case core.FmtWebP:
		err = s.readWebP(buf, res)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// writeKey selects a write codec by container format and field namespace —
// behavior varies by the pair, not per instance, so a table beats a type
// hierarchy here.
type writeKey struct {
	format core.FormatID
	ns     core.Namespace
}

type writeFunc func(s *Service, buf []byte, keys []string, set map[string]string) ([]byte, error)

var writers = map[writeKey]writeFunc{
	{core.FmtJPEG, core.NamespaceXMP}:    (*Service).writeJPEGXMP,
	{core.FmtJPEG, core.NamespaceEXIF}:   (*Service).writeJPEGEXIF,
	{core.FmtPNG, core.NamespaceXMP}:     (*Service).writePNGXMP,
	{core.FmtPNG, core.NamespacePNGText}: (*Service).writePNGText,
	{core.FmtTIFF, core.NamespaceEXIF}:   (*Service).writeTIFFEXIF,
	// XMP is never embedded in TIFF; those writes fall back to the EXIF
	// codec, which rejects keys with no EXIF equivalent.
	{core.FmtTIFF, core.NamespaceXMP}: (*Service).writeTIFFEXIF,
}

func defaultNamespace(format core.FormatID) core.Namespace {
	if format == core.FmtTIFF {
		return core.NamespaceEXIF
	}
	return core.NamespaceXMP
}

// Write applies all requested field updates through the owning codec and
// reassembles the container once. Any single field failure aborts the whole
// write with the failing key and namespace; a partially mutated buffer is
// never returned.
func (s *Service) Write(buf []byte, req core.WriteRequest) (*core.WriteResult, error) {
	if err := s.checkSize(buf); err != nil {
		return nil, err
	}
	format, err := core.DetectFormat(buf)
	if err != nil {
		return nil, err
	}
	ns := req.Namespace
	if ns == "" {
		ns = defaultNamespace(format)
	}

	fn, ok := writers[writeKey{format, ns}]
	if !ok {
		return nil, fmt.Errorf("%w: cannot write %s metadata into %s", core.ErrUnsupportedOperation, ns, format)
	}

	keys := sortedKeys(req.Set)
	out := buf
	if len(keys) > 0 {
		if out, err = fn(s, buf, keys, req.Set); err != nil {
			return nil, err
		}
	}

	updated := make(map[string]string, len(req.Set))
	for k, v := range req.Set {
		updated[k] = v
	}
	return &core.WriteResult{Image: out, Format: format, Updated: updated}, nil
}

// ─── Read paths ──────────────────────────────────────────────────────────────

func (s *Service) readJPEG(buf []byte, res *core.ReadResult) error {
	segs, err := jpg.Parse(buf, s.limits)
	if err != nil {
		return err
	}
	res.Width, res.Height = jpg.Dimensions(segs)

	if i := jpg.FindAPP1(segs, jpg.ExifPrefix); i >= 0 {
		block, err := exif.Parse(segs[i].Data[len(jpg.ExifPrefix):], s.limits)
		if err != nil {
			return err
		}
		res.EXIF = block.Fields()
	}

	packet, found, err := xmp.ExtractJPEG(segs)
	if err != nil {
		return err
	}
	if found {
		res.XMP = packet.Map()
	}
	return nil
}

func (s *Service) readPNG(buf []byte, res *core.ReadResult) error {
	chunks, err := png.ParseChunks(buf, s.limits)
	if err != nil {
		return err
	}
	res.Width, res.Height = png.Dimensions(chunks)

	entries, err := png.TextEntries(chunks, s.limits)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Key == xmp.PNGKeyword {
			continue
		}
		if res.PNGText == nil {
			res.PNGText = map[string]string{}
		}
		res.PNGText[e.Key] = e.Value
	}

	if data, ok := png.FindEXIF(chunks); ok {
		block, err := exif.Parse(data, s.limits)
		if err != nil {
			return err
		}
		res.EXIF = block.Fields()
	}

	packet, found, err := xmp.ExtractPNG(chunks, s.limits)
	if err != nil {
		return err
	}
	if found {
		res.XMP = packet.Map()
	}
	return nil
}

func (s *Service) readTIFF(buf []byte, res *core.ReadResult) error {
	block, err := exif.Parse(buf, s.limits)
	if err != nil {
		return err
	}
	res.Width, res.Height = block.Dimensions()
	res.EXIF = block.Fields()
	return nil
}

func (s *Service) readWebP(buf []byte, res *core.ReadResult) error {
	chunks, err := webp.Chunks(buf, s.limits)
	if err != nil {
		return err
	}
	res.Width, res.Height = webp.Dimensions(chunks)

	if data, ok := webp.Find(chunks, "EXIF"); ok {
		// Some writers include the JPEG-style Exif\x00\x00 preamble.
		data = bytes.TrimPrefix(data, jpg.ExifPrefix)
		block, err := exif.Parse(data, s.limits)
		if err != nil {
			return err
		}
		res.EXIF = block.Fields()
	}
	if data, ok := webp.Find(chunks, "XMP "); ok {
		packet, err := xmp.Parse(data)
		if err != nil {
			return err
		}
		res.XMP = packet.Map()
	}
	return nil
}

// ─── Write paths ─────────────────────────────────────────────────────────────

func (s *Service) writeJPEGXMP(buf []byte, keys []string, set map[string]string) ([]byte, error) {
	segs, err := jpg.Parse(buf, s.limits)
	if err != nil {
		return nil, err
	}
	packet, found, err := xmp.ExtractJPEG(segs)
	if err != nil {
		return nil, err
	}
	if !found {
		packet = xmp.NewPacket()
	}
	if err := packet.Merge(set, keys); err != nil {
		return nil, err
	}
	segs, err = xmp.EmbedJPEG(segs, packet)
	if err != nil {
		return nil, err
	}
	return jpg.Assemble(segs), nil
}

func (s *Service) writeJPEGEXIF(buf []byte, keys []string, set map[string]string) ([]byte, error) {
	segs, err := jpg.Parse(buf, s.limits)
	if err != nil {
		return nil, err
	}
	block := exif.NewBlock()
	if i := jpg.FindAPP1(segs, jpg.ExifPrefix); i >= 0 {
		if block, err = exif.Parse(segs[i].Data[len(jpg.ExifPrefix):], s.limits); err != nil {
			return nil, err
		}
	}
	for _, k := range keys {
		if err := block.SetField(k, set[k]); err != nil {
			return nil, &core.FieldError{Namespace: core.NamespaceEXIF, Key: k, Err: err}
		}
	}
	encoded, err := block.Encode()
	if err != nil {
		return nil, err
	}
	if err := exif.Verify(encoded); err != nil {
		return nil, err
	}
	payload := append(append([]byte{}, jpg.ExifPrefix...), encoded...)
	segs, err = jpg.ReplaceOrInsertAPP1(segs, jpg.ExifPrefix, payload)
	if err != nil {
		return nil, err
	}
	return jpg.Assemble(segs), nil
}

func (s *Service) writePNGXMP(buf []byte, keys []string, set map[string]string) ([]byte, error) {
	chunks, err := png.ParseChunks(buf, s.limits)
	if err != nil {
		return nil, err
	}
	packet, found, err := xmp.ExtractPNG(chunks, s.limits)
	if err != nil {
		return nil, err
	}
	if !found {
		packet = xmp.NewPacket()
	}
	if err := packet.Merge(set, keys); err != nil {
		return nil, err
	}
	return png.Assemble(xmp.EmbedPNG(chunks, packet)), nil
}

func (s *Service) writePNGText(buf []byte, keys []string, set map[string]string) ([]byte, error) {
	chunks, err := png.ParseChunks(buf, s.limits)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if k == xmp.PNGKeyword {
			return nil, &core.FieldError{
				Namespace: core.NamespacePNGText,
				Key:       k,
				Err:       fmt.Errorf("%w: reserved for the XMP codec", core.ErrUnsupportedOperation),
			}
		}
		if chunks, err = png.SetText(chunks, k, set[k], s.limits); err != nil {
			return nil, &core.FieldError{Namespace: core.NamespacePNGText, Key: k, Err: err}
		}
	}
	return png.Assemble(chunks), nil
}

func (s *Service) writeTIFFEXIF(buf []byte, keys []string, set map[string]string) ([]byte, error) {
	out, err := exif.PatchTIFF(buf, set, s.limits)
	if err != nil {
		return nil, err
	}
	if err := exif.Verify(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) checkSize(buf []byte) error {
	if len(buf) == 0 {
		return core.ErrUnrecognizedFormat
	}
	if s.limits.MaxBuffer > 0 && len(buf) > s.limits.MaxBuffer {
		return fmt.Errorf("%w: buffer of %d bytes exceeds limit %d",
			core.ErrResourceLimitExceeded, len(buf), s.limits.MaxBuffer)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
