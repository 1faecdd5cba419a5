// Package codec implements the pure decode/encode core of the telemetry
// wire protocol: the Packet value, the Payload read/write cursor, the two
// wire framings (binary and ASCII), and a frame scanner for streaming
// transports. Nothing in this package performs I/O.
package codec

import (
	"github.com/khansohel/traffometer-server/pkg/telemetry/protocol"
)

// Payload is an append/consume cursor over a byte buffer. Writes append at
// the write index and truncate silently once the buffer reaches
// protocol.MaxPayloadLength; reads consume from the read index and return
// zero values (not errors) once the read index reaches the write index.
type Payload struct {
	buf      []byte
	readIdx  int
}

// NewPayload wraps an existing byte slice for reading (e.g. a frame the
// scanner just produced). The read cursor starts at zero.
func NewPayload(data []byte) *Payload {
	return &Payload{buf: data}
}

// NewPayloadWriter returns an empty Payload ready for writing.
func NewPayloadWriter() *Payload {
	return &Payload{buf: make([]byte, 0, protocol.MaxPayloadLength)}
}

// Bytes returns the full underlying buffer (ignores the read cursor).
func (p *Payload) Bytes() []byte {
	return p.buf
}

// Len returns the number of bytes written so far.
func (p *Payload) Len() int {
	return len(p.buf)
}

// Remaining returns the number of unread bytes.
func (p *Payload) Remaining() int {
	if p.readIdx >= len(p.buf) {
		return 0
	}
	return len(p.buf) - p.readIdx
}

// room reports how many more bytes can be appended before hitting the cap.
func (p *Payload) room() int {
	r := protocol.MaxPayloadLength - len(p.buf)
	if r < 0 {
		return 0
	}
	return r
}

// WriteUint writes n (1-8 bytes, big-endian) unsigned.
func (p *Payload) WriteUint(v uint64, width int) {
	b := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	p.writeBytes(b)
}

// WriteInt writes n (1-8 bytes, big-endian) two's-complement signed.
func (p *Payload) WriteInt(v int64, width int) {
	p.WriteUint(uint64(v), width)
}

// WriteString writes s padded or truncated to exactly width bytes. pad is
// the fill byte (typically ' ' or 0x00).
func (p *Payload) WriteString(s string, width int, pad byte) {
	b := make([]byte, width)
	for i := range b {
		b[i] = pad
	}
	copy(b, s)
	p.writeBytes(b)
}

// WriteBlob writes a variable-length blob as a 1-byte length prefix
// followed by the blob bytes. The length is clamped to what fits under
// the payload cap.
func (p *Payload) WriteBlob(data []byte) {
	room := p.room() - 1 // reserve the length-prefix byte
	if room < 0 {
		room = 0
	}
	if len(data) > room {
		data = data[:room]
	}
	p.writeBytes([]byte{byte(len(data))})
	p.writeBytes(data)
}

// writeBytes truncates to the remaining room and appends.
func (p *Payload) writeBytes(b []byte) {
	room := p.room()
	if room <= 0 {
		return
	}
	if len(b) > room {
		b = b[:room]
	}
	p.buf = append(p.buf, b...)
}

// ReadUint reads width bytes (1-8, big-endian) unsigned. Reading past the
// end yields zero, consuming only what was available.
func (p *Payload) ReadUint(width int) uint64 {
	var v uint64
	for i := 0; i < width; i++ {
		v <<= 8
		if p.readIdx < len(p.buf) {
			v |= uint64(p.buf[p.readIdx])
			p.readIdx++
		}
	}
	return v
}

// ReadInt reads width bytes (1-8, big-endian) two's-complement signed.
func (p *Payload) ReadInt(width int) int64 {
	v := p.ReadUint(width)
	if width >= 8 {
		return int64(v)
	}
	signBit := uint64(1) << (uint(width)*8 - 1)
	if v&signBit != 0 {
		v -= signBit << 1
	}
	return int64(v)
}

// ReadString reads a fixed-width string and trims trailing pad bytes
// (space or NUL). Reading past the end yields an empty string.
func (p *Payload) ReadString(width int, pad byte) string {
	end := p.readIdx + width
	if end > len(p.buf) {
		end = len(p.buf)
	}
	if p.readIdx >= end {
		return ""
	}
	b := p.buf[p.readIdx:end]
	p.readIdx = end
	for len(b) > 0 && (b[len(b)-1] == pad || b[len(b)-1] == 0x00 || b[len(b)-1] == ' ') {
		b = b[:len(b)-1]
	}
	return string(b)
}

// ReadBlob reads a 1-byte-length-prefixed blob. Reading past the end
// yields an empty slice.
func (p *Payload) ReadBlob() []byte {
	n := int(p.ReadUint(1))
	end := p.readIdx + n
	if end > len(p.buf) {
		end = len(p.buf)
	}
	if p.readIdx >= end {
		return nil
	}
	b := p.buf[p.readIdx:end]
	p.readIdx = end
	return b
}

// ReadBytes reads exactly n raw bytes, zero-padding if fewer remain.
func (p *Payload) ReadBytes(n int) []byte {
	b := make([]byte, n)
	end := p.readIdx + n
	avail := end
	if avail > len(p.buf) {
		avail = len(p.buf)
	}
	if p.readIdx < avail {
		copy(b, p.buf[p.readIdx:avail])
	}
	if avail > p.readIdx {
		p.readIdx = avail
	}
	return b
}

// WriteRaw appends raw bytes verbatim (subject to the size cap).
func (p *Payload) WriteRaw(b []byte) {
	p.writeBytes(b)
}
