package session

import (
	"github.com/khansohel/traffometer-server/pkg/telemetry/codec"
	"github.com/khansohel/traffometer-server/pkg/telemetry/protocol"
)

// responses builds the outbound protocol surface packets of spec.md §4.6.
// Grounded on the teacher's pkg/jimi/encoder (per-response-type builder
// functions over a shared Encoder value), generalized from a fixed
// checksum-and-length framing to the abstract Packet value this codec
// produces, leaving actual wire rendering to codec.EncodeBinary/ASCII.

// newResponse builds a server->client packet with a writable payload.
func newResponse(typ byte, enc protocol.EncodingTag) *codec.Packet {
	return codec.NewPacket(typ, codec.ServerToClient, enc)
}

// ackResponse acknowledges a block of events up to lastSequence.
func ackResponse(lastSequence uint64, enc protocol.EncodingTag) *codec.Packet {
	p := newResponse(protocol.STypeAck, enc)
	p.Payload.WriteUint(lastSequence, 4)
	return p
}

// eobDoneResponse signals a block boundary after EOB_DONE.
func eobDoneResponse(enc protocol.EncodingTag) *codec.Packet {
	return newResponse(protocol.STypeEOBDone, enc)
}

// eobSpeakFreelyResponse signals a block boundary after EOB_MORE.
func eobSpeakFreelyResponse(enc protocol.EncodingTag) *codec.Packet {
	return newResponse(protocol.STypeEOBSpeakFreely, enc)
}

// errorResponse builds ERROR(code, causing_header, causing_type, extra).
func errorResponse(code protocol.ErrorCode, causingHeader, causingType byte, extra []byte, enc protocol.EncodingTag) *codec.Packet {
	p := newResponse(protocol.STypeError, enc)
	p.Payload.WriteUint(uint64(code), 2)
	p.Payload.WriteUint(uint64(causingHeader), 1)
	p.Payload.WriteUint(uint64(causingType), 1)
	if len(extra) > 0 {
		p.Payload.WriteBlob(extra)
	}
	return p
}

// eotResponse signals the server intends to close the transport.
func eotResponse(enc protocol.EncodingTag) *codec.Packet {
	return newResponse(protocol.STypeEOT, enc)
}

// getPropertyResponse requests a configuration value from the device.
func getPropertyResponse(key uint32, enc protocol.EncodingTag) *codec.Packet {
	p := newResponse(protocol.STypeGetProperty, enc)
	p.Payload.WriteUint(uint64(key), 4)
	return p
}

// setPropertyResponse pushes a configuration value to the device.
func setPropertyResponse(key uint16, value []byte, enc protocol.EncodingTag) *codec.Packet {
	p := newResponse(protocol.STypeSetProperty, enc)
	p.Payload.WriteUint(uint64(key), 2)
	p.Payload.WriteBlob(value)
	return p
}

// fileUploadResponse pushes a chunk of a server-initiated file transfer.
func fileUploadResponse(kind byte, offset uint32, data []byte, enc protocol.EncodingTag) *codec.Packet {
	p := newResponse(protocol.STypeFileUpload, enc)
	p.Payload.WriteUint(uint64(kind), 1)
	p.Payload.WriteUint(uint64(offset), 3)
	p.Payload.WriteRaw(data)
	return p
}
