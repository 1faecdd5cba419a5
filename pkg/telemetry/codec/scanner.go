package codec

import "github.com/khansohel/traffometer-server/pkg/telemetry/protocol"

// Scanner splits a byte stream into individual frames, one at a time,
// tolerating arbitrary interleaving of binary and ASCII frames and of
// \r/\n end-of-line sequences (spec.md §4.1 "Frame scanner").
//
// It holds no decoded state: it only finds frame boundaries. Decoding is
// the caller's job (DecodeBinary / DecodeASCII).
type Scanner struct {
	buf []byte
}

// NewScanner returns a Scanner with an empty internal buffer.
func NewScanner() *Scanner {
	return &Scanner{}
}

// Feed appends newly read bytes to the scanner's internal buffer.
func (s *Scanner) Feed(data []byte) {
	s.buf = append(s.buf, data...)
}

// Next extracts the next complete frame from the buffered data, if any.
// It returns the raw frame bytes (for binary: header..payload end,
// excluding nothing; for ASCII: the line including leading '$' but
// excluding the EOL bytes), whether a frame was found, and whether the
// frame is ASCII (vs binary) so the caller knows which decoder to use.
func (s *Scanner) Next() (frame []byte, isASCII bool, ok bool) {
	for len(s.buf) > 0 {
		switch s.buf[0] {
		case protocol.Header:
			if len(s.buf) < 3 {
				return nil, false, false
			}
			total := BinaryFrameLength(s.buf)
			if total > len(s.buf) {
				return nil, false, false
			}
			frame = s.buf[:total]
			s.buf = s.buf[total:]
			return frame, false, true
		case '$':
			eol := indexEOL(s.buf)
			if eol == -1 {
				return nil, false, false
			}
			frame = s.buf[:eol]
			s.buf = skipEOL(s.buf, eol)
			return frame, true, true
		default:
			// Resynchronize: drop bytes until a recognizable frame start.
			s.buf = s.buf[1:]
		}
	}
	return nil, false, false
}

// Residue returns the bytes currently buffered with no complete frame yet.
func (s *Scanner) Residue() []byte {
	return s.buf
}

// indexEOL finds the offset of the first \r or \n in data, or -1.
func indexEOL(data []byte) int {
	for i, b := range data {
		if b == '\r' || b == '\n' {
			return i
		}
	}
	return -1
}

// skipEOL advances past one logical EOL (\r, \n, or \r\n) and any
// additional trailing EOL bytes, per spec.md's relaxed parsing tolerance.
func skipEOL(data []byte, eol int) []byte {
	i := eol
	for i < len(data) && (data[i] == '\r' || data[i] == '\n') {
		i++
	}
	return data[i:]
}
