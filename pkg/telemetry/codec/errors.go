package codec

import (
	"errors"
	"fmt"
)

// FrameError is a framing-level decode failure (spec.md §4.1, §7). Kind
// names one of the codes the spec calls out by name; Offset is the byte
// offset where the problem was detected, when known. Header/Type carry
// the packet's own header and type bytes when the decoder got far enough
// to read them, so callers can build an accurate
// ERROR(code, causing_header, causing_type) response (spec.md §7) instead
// of guessing from the raw frame bytes, which only coincidentally match
// for binary framing and never do for ASCII framing.
type FrameError struct {
	Kind          string
	Offset        int
	Err           error
	Header        byte
	Type          byte
	HasHeaderType bool
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("frame error (%s) at offset %d: %v", e.Kind, e.Offset, e.Err)
	}
	return fmt.Sprintf("frame error (%s) at offset %d", e.Kind, e.Offset)
}

func (e *FrameError) Unwrap() error { return e.Err }

// withCause records the packet's header/type bytes on a FrameError once
// the decoder has read them, and returns the receiver for chaining at the
// call site.
func (e *FrameError) withCause(header, typ byte) *FrameError {
	e.Header = header
	e.Type = typ
	e.HasHeaderType = true
	return e
}

func newFrameError(kind string, offset int, err error) *FrameError {
	return &FrameError{Kind: kind, Offset: offset, Err: err}
}

// Named framing error kinds, matching spec.md §4.1 vocabulary exactly.
const (
	KindMalformedLength = "MALFORMED_LENGTH"
	KindBadEncoding     = "BAD_ENCODING"
	KindBadChecksum     = "BAD_CHECKSUM"
	KindBadHeader       = "BAD_HEADER"
	KindBadLength       = "BAD_LENGTH"
)

// ErrIncompleteFrame names the condition where the buffered data does not
// yet contain a whole frame. Scanner.Next does not return it; it reports
// that condition with ok=false and keeps the bytes as Residue.
var ErrIncompleteFrame = errors.New("incomplete frame")

// IsFrameErrorKind reports whether err is a *FrameError of the given kind.
func IsFrameErrorKind(err error, kind string) bool {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
