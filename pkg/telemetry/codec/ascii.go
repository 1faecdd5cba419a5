package codec

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/khansohel/traffometer-server/pkg/telemetry/protocol"
)

// CSVCodec lets the ASCII framing delegate CSV payload encoding/decoding
// to the payload template registry without codec depending on it
// directly (Design Notes §9: single parser parameterised by encoding, not
// six parallel code paths, but CSV specifically needs an external schema
// lookup). A nil CSVCodec, or one that returns ok=false, means "no
// template for this type": EncodeASCII then falls back to Base64 per
// spec.md §4.1, and DecodeASCII rejects the CSV line as BAD_ENCODING.
type CSVCodec interface {
	EncodeCSV(packetType byte, dir Direction, payload *Payload) (fields string, ok bool)
	DecodeCSV(packetType byte, dir Direction, fields string) (payload *Payload, ok bool)
}

const (
	discBase64 = '='
	discHex    = ':'
	discCSV    = ','
)

// DecodeASCII decodes one ASCII line (without its trailing EOL) of the
// form "$HHTT<disc><encoded-payload>[*HH]".
func DecodeASCII(line []byte, dir Direction, csv CSVCodec) (*Packet, error) {
	s := string(line)
	if len(s) == 0 || s[0] != '$' {
		return nil, newFrameError(KindBadLength, 0, nil)
	}
	s = s[1:]

	checksumPresent := false
	var declaredChecksum byte
	if idx := strings.LastIndexByte(s, '*'); idx != -1 && len(s)-idx == 3 {
		hi, err1 := hexNibble(s[idx+1])
		lo, err2 := hexNibble(s[idx+2])
		if err1 == nil && err2 == nil {
			declaredChecksum = hi<<4 | lo
			checksumPresent = true
			s = s[:idx]
		}
	}

	if len(s) < 4 {
		return nil, newFrameError(KindBadLength, 0, nil)
	}
	headerByte, headerErr := hexByte(s[0:2])
	typeByte, typeErr := hexByte(s[2:4])
	if headerErr != nil {
		return nil, newFrameError(KindBadHeader, 0, headerErr)
	}
	if headerByte != protocol.Header {
		fe := newFrameError(KindBadHeader, 0, nil)
		if typeErr == nil {
			fe.withCause(headerByte, typeByte)
		}
		return nil, fe
	}
	if typeErr != nil {
		return nil, newFrameError(KindBadLength, 2, typeErr).withCause(headerByte, 0)
	}

	rest := s[4:]

	var enc protocol.EncodingTag
	var payload *Payload
	if rest == "" {
		enc = protocol.EncodingEmpty
		payload = NewPayload(nil)
	} else {
		disc := rest[0]
		encoded := rest[1:]
		switch disc {
		case discBase64:
			raw, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, newFrameError(KindBadEncoding, 4, err).withCause(headerByte, typeByte)
			}
			enc = protocol.EncodingBase64
			payload = NewPayload(raw)
		case discHex:
			raw, err := hex.DecodeString(encoded)
			if err != nil {
				return nil, newFrameError(KindBadEncoding, 4, err).withCause(headerByte, typeByte)
			}
			enc = protocol.EncodingHex
			payload = NewPayload(raw)
		case discCSV:
			if csv == nil {
				return nil, newFrameError(KindBadEncoding, 4, nil).withCause(headerByte, typeByte)
			}
			p, ok := csv.DecodeCSV(typeByte, dir, encoded)
			if !ok {
				return nil, newFrameError(KindBadEncoding, 4, nil).withCause(headerByte, typeByte)
			}
			enc = protocol.EncodingCSV
			payload = p
		default:
			return nil, newFrameError(KindBadEncoding, 4, nil).withCause(headerByte, typeByte)
		}
	}

	if checksumPresent {
		computed := xorChecksum([]byte(s))
		if computed != declaredChecksum {
			return nil, newFrameError(KindBadChecksum, 0, nil).withCause(headerByte, typeByte)
		}
	}

	return &Packet{
		Header:    headerByte,
		Type:      typeByte,
		Direction: dir,
		Encoding:  enc,
		Payload:   payload,
		Checksum:  checksumPresent,
	}, nil
}

// EncodeASCII renders a packet as an ASCII line (without a trailing EOL).
// If enc is EncodingCSV and csv reports no template for the type, the
// encoding silently falls back to Base64 (spec.md §4.1).
func EncodeASCII(p *Packet, enc protocol.EncodingTag, checksum bool, csv CSVCodec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%02X%02X", p.Header, p.Type)

	body := p.Payload.Bytes()
	switch enc {
	case protocol.EncodingEmpty:
		// no discriminator, no payload
	case protocol.EncodingCSV:
		if csv != nil {
			if fields, ok := csv.EncodeCSV(p.Type, p.Direction, p.Payload); ok {
				b.WriteByte(discCSV)
				b.WriteString(fields)
				break
			}
		}
		b.WriteByte(discBase64)
		b.WriteString(base64.StdEncoding.EncodeToString(body))
	case protocol.EncodingHex:
		b.WriteByte(discHex)
		b.WriteString(hex.EncodeToString(body))
	default: // EncodingBase64 and anything else defaults to base64
		b.WriteByte(discBase64)
		b.WriteString(base64.StdEncoding.EncodeToString(body))
	}

	line := b.String()
	out := "$" + line
	if checksum {
		cs := xorChecksum([]byte(line))
		out += fmt.Sprintf("*%02X", cs)
	}
	return out
}

// xorChecksum XORs every byte of data together (spec.md §4.1: "hex XOR of
// all preceding bytes from $ exclusive up to *").
func xorChecksum(data []byte) byte {
	var c byte
	for _, b := range data {
		c ^= b
	}
	return c
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex nibble %q", c)
	}
}

func hexByte(s string) (byte, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("invalid hex byte %q", s)
	}
	hi, err := hexNibble(s[0])
	if err != nil {
		return 0, err
	}
	lo, err := hexNibble(s[1])
	if err != nil {
		return 0, err
	}
	return hi<<4 | lo, nil
}
