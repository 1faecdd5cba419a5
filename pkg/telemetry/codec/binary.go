package codec

import "github.com/khansohel/traffometer-server/pkg/telemetry/protocol"

// DecodeBinary decodes a single binary frame:
// header(1) | type(1) | length(1) | payload(length bytes).
//
// A packet length in bytes must equal 3+length_byte; a mismatch between
// the declared length and the bytes actually present is reported as
// MALFORMED_LENGTH (spec.md §4.1).
func DecodeBinary(data []byte, dir Direction) (*Packet, error) {
	if len(data) < 3 {
		return nil, newFrameError(KindBadLength, 0, nil)
	}
	header := data[0]
	typ := data[1]
	if header != protocol.Header {
		return nil, newFrameError(KindBadHeader, 0, nil).withCause(header, typ)
	}
	length := int(data[2])
	if length > protocol.MaxPayloadLength {
		return nil, newFrameError(KindMalformedLength, 2, nil).withCause(header, typ)
	}
	expected := 3 + length
	if len(data) != expected {
		return nil, newFrameError(KindMalformedLength, 2, nil).withCause(header, typ)
	}

	return &Packet{
		Header:    header,
		Type:      typ,
		Direction: dir,
		Encoding:  protocol.EncodingBinary,
		Payload:   NewPayload(append([]byte(nil), data[3:]...)),
	}, nil
}

// EncodeBinary produces the wire bytes for a packet using binary framing.
// The payload is truncated to MaxPayloadLength if it somehow exceeds it
// (writers are expected to have already enforced the cap via Payload).
func EncodeBinary(p *Packet) []byte {
	body := p.Payload.Bytes()
	if len(body) > protocol.MaxPayloadLength {
		body = body[:protocol.MaxPayloadLength]
	}
	out := make([]byte, 0, 3+len(body))
	out = append(out, p.Header, p.Type, byte(len(body)))
	out = append(out, body...)
	return out
}

// BinaryFrameLength returns the total byte length of the binary frame
// beginning at the start of data, given the length byte at data[2]. The
// caller must already know data has at least 3 bytes.
func BinaryFrameLength(data []byte) int {
	return 3 + int(data[2])
}
