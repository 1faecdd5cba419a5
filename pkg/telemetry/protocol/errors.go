package protocol

import "fmt"

// ErrorCode is the negative-acknowledgement code namespace carried in an
// ERROR packet's payload (spec.md §6, §7).
type ErrorCode uint16

// NAKOk is never sent on the wire; it exists so zero-value ErrorCode reads
// as "no error" in tests and logs.
const NAKOk ErrorCode = 0

const (
	ErrPacketHeader ErrorCode = iota + 1
	ErrPacketLength
	ErrPacketEncoding
	ErrPacketChecksum
	ErrPacketType
	ErrFormatNotRecognized
	ErrAccountInvalid
	ErrDeviceInvalid
	ErrUniqueIDInvalid
	ErrExcessiveConnections
	ErrExcessiveEvents
	ErrEventError
	ErrIDExpected
)

var codeNames = map[ErrorCode]string{
	NAKOk:                   "NAK_OK",
	ErrPacketHeader:         "PACKET_HEADER",
	ErrPacketLength:         "PACKET_LENGTH",
	ErrPacketEncoding:       "PACKET_ENCODING",
	ErrPacketChecksum:       "PACKET_CHECKSUM",
	ErrPacketType:           "PACKET_TYPE",
	ErrFormatNotRecognized:  "FORMAT_NOT_RECOGNIZED",
	ErrAccountInvalid:       "ACCOUNT_INVALID",
	ErrDeviceInvalid:        "DEVICE_INVALID",
	ErrUniqueIDInvalid:      "UNIQUE_ID_INVALID",
	ErrExcessiveConnections: "EXCESSIVE_CONNECTIONS",
	ErrExcessiveEvents:      "EXCESSIVE_EVENTS",
	ErrEventError:           "EVENT_ERROR",
	ErrIDExpected:           "ID_EXPECTED",
}

// String returns the symbolic name of the error code, or a numeric
// fallback for an unrecognized value.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ERROR(%d)", uint16(c))
}

// Terminates reports whether this error code always tears the session
// down per spec.md §7's propagation policy: identity errors, ID_EXPECTED
// and EXCESSIVE_CONNECTIONS are terminating; EXCESSIVE_EVENTS and
// framing/semantic/persistence errors on their own are not.
func (c ErrorCode) Terminates() bool {
	switch c {
	case ErrAccountInvalid, ErrDeviceInvalid, ErrUniqueIDInvalid,
		ErrExcessiveConnections, ErrIDExpected:
		return true
	default:
		return false
	}
}
