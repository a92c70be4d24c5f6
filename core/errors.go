package core

import (
	"errors"
	"fmt"
)

// Error taxonomy for the metadata codec. Every failure surfaced by the
// service wraps exactly one of these sentinels so the transport shell can
// report a distinct reason instead of a generic 500.
var (
	// ErrUnrecognizedFormat: the buffer matches none of the supported
	// magic-byte prefixes. Reading must not proceed past detection.
	ErrUnrecognizedFormat = errors.New("unrecognized image format")

	// ErrTruncatedIFD: an IFD declares more entries than the remaining
	// buffer can hold.
	ErrTruncatedIFD = errors.New("truncated IFD")

	// ErrOffsetOutOfBounds: an IFD value or sub-IFD pointer targets bytes
	// outside the TIFF block.
	ErrOffsetOutOfBounds = errors.New("IFD offset out of bounds")

	// ErrUnsupportedTagType: an IFD entry carries a type code with no
	// defined element size.
	ErrUnsupportedTagType = errors.New("unsupported IFD tag type")

	// ErrChunkCRCMismatch: a PNG chunk's stored CRC-32 does not match its
	// type + data bytes.
	ErrChunkCRCMismatch = errors.New("PNG chunk CRC mismatch")

	// ErrTruncatedChunk: a chunk or segment declares a length past the end
	// of the buffer.
	ErrTruncatedChunk = errors.New("truncated chunk")

	// ErrChunkTooLarge: a PNG chunk's declared length exceeds the
	// configured maximum.
	ErrChunkTooLarge = errors.New("PNG chunk too large")

	// ErrInvalidFieldValue: a requested field value cannot be encoded for
	// its target namespace (e.g. a malformed datetime).
	ErrInvalidFieldValue = errors.New("invalid field value")

	// ErrUnsupportedOperation: the requested mutation has no codec for the
	// detected container (e.g. XMP-only keys on TIFF, any write on WebP).
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrResourceLimitExceeded: a declared length would force an
	// allocation beyond the configured bounds.
	ErrResourceLimitExceeded = errors.New("resource limit exceeded")
)

// FieldError reports which key failed in which namespace during a write.
// The orchestrator aborts the whole request on the first one; no partially
// mutated buffer is ever returned.
type FieldError struct {
	Namespace Namespace
	Key       string
	Err       error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: field %q: %v", e.Namespace, e.Key, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }
