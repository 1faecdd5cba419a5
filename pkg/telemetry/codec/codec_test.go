package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khansohel/traffometer-server/pkg/telemetry/protocol"
)

func TestBinaryRoundTrip(t *testing.T) {
	p := NewPacket(protocol.TypeUniqueID, ClientToServer, protocol.EncodingBinary)
	p.Payload.WriteUint(0x123456, 6)

	wire := EncodeBinary(p)
	decoded, err := DecodeBinary(wire, ClientToServer)
	require.NoError(t, err)
	assert.True(t, p.Equal(decoded))
}

func TestBinaryMaxLength(t *testing.T) {
	body := make([]byte, protocol.MaxPayloadLength)
	wire := append([]byte{protocol.Header, 0x30, protocol.MaxPayloadLength}, body...)
	pkt, err := DecodeBinary(wire, ClientToServer)
	require.NoError(t, err)
	assert.Equal(t, protocol.MaxPayloadLength, pkt.Payload.Len())
}

func TestBinaryMalformedLength(t *testing.T) {
	wire := []byte{protocol.Header, 0x30, 0x05, 0x01, 0x02}
	_, err := DecodeBinary(wire, ClientToServer)
	require.Error(t, err)
	assert.True(t, IsFrameErrorKind(err, KindMalformedLength))
}

func TestBinaryBadHeader(t *testing.T) {
	wire := []byte{0x00, 0x30, 0x00}
	_, err := DecodeBinary(wire, ClientToServer)
	require.Error(t, err)
	assert.True(t, IsFrameErrorKind(err, KindBadHeader))
}

func TestASCIIEmptyPayload(t *testing.T) {
	p := NewPacket(protocol.TypeUniqueID, ClientToServer, protocol.EncodingEmpty)
	line := EncodeASCII(p, protocol.EncodingEmpty, false, nil)
	assert.Equal(t, "$E011", line)

	decoded, err := DecodeASCII([]byte(line), ClientToServer, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, decoded.Payload.Len())
}

func TestASCIIBase64RoundTrip(t *testing.T) {
	p := NewPacket(protocol.TypeEventFixedStd, ClientToServer, protocol.EncodingBase64)
	p.Payload.WriteUint(1234, 4)
	p.Payload.WriteUint(99, 2)

	line := EncodeASCII(p, protocol.EncodingBase64, true, nil)
	decoded, err := DecodeASCII([]byte(line), ClientToServer, nil)
	require.NoError(t, err)
	assert.True(t, p.Equal(decoded))
}

func TestASCIIHexRoundTrip(t *testing.T) {
	p := NewPacket(protocol.TypeEventFixedStd, ClientToServer, protocol.EncodingHex)
	p.Payload.WriteUint(0xDEADBEEF, 4)

	line := EncodeASCII(p, protocol.EncodingHex, false, nil)
	decoded, err := DecodeASCII([]byte(line), ClientToServer, nil)
	require.NoError(t, err)
	assert.True(t, p.Equal(decoded))
}

func TestASCIIBadChecksum(t *testing.T) {
	line := "$E011:0011*00"
	_, err := DecodeASCII([]byte(line), ClientToServer, nil)
	require.Error(t, err)
	assert.True(t, IsFrameErrorKind(err, KindBadChecksum))
}

func TestASCIIBadEncodingDiscriminator(t *testing.T) {
	line := "$E011?deadbeef"
	_, err := DecodeASCII([]byte(line), ClientToServer, nil)
	require.Error(t, err)
	assert.True(t, IsFrameErrorKind(err, KindBadEncoding))
}

func TestScannerBinaryAndASCIIInterleaved(t *testing.T) {
	s := NewScanner()
	bin := []byte{protocol.Header, 0x00, 0x00}
	ascii := []byte("$E011:ABCD\r\n")

	s.Feed(bin)
	s.Feed(ascii)
	s.Feed([]byte{protocol.Header, 0x00, 0x00})

	frame1, isASCII1, ok1 := s.Next()
	require.True(t, ok1)
	assert.False(t, isASCII1)
	assert.Equal(t, bin, frame1)

	frame2, isASCII2, ok2 := s.Next()
	require.True(t, ok2)
	assert.True(t, isASCII2)
	assert.Equal(t, "$E011:ABCD", string(frame2))

	frame3, isASCII3, ok3 := s.Next()
	require.True(t, ok3)
	assert.False(t, isASCII3)
	assert.Equal(t, bin, frame3)

	_, _, ok4 := s.Next()
	assert.False(t, ok4)
}

func TestScannerToleratesMixedEOL(t *testing.T) {
	s := NewScanner()
	s.Feed([]byte("$E011\r\r\n\n$E011\n"))

	_, _, ok1 := s.Next()
	require.True(t, ok1)
	_, _, ok2 := s.Next()
	require.True(t, ok2)
	_, _, ok3 := s.Next()
	assert.False(t, ok3)
}

func TestScannerIncompleteFrameKeptAsResidue(t *testing.T) {
	s := NewScanner()
	s.Feed([]byte{protocol.Header, 0x30, 0x05, 0x01, 0x02})
	_, _, ok := s.Next()
	assert.False(t, ok)
	assert.Equal(t, 5, len(s.Residue()))
}

func TestPayloadTruncatesAtCap(t *testing.T) {
	p := NewPayloadWriter()
	big := make([]byte, protocol.MaxPayloadLength+50)
	p.WriteRaw(big)
	assert.Equal(t, protocol.MaxPayloadLength, p.Len())
}

func TestPayloadReadPastEndYieldsZero(t *testing.T) {
	p := NewPayload([]byte{0x01})
	assert.Equal(t, uint64(0x01), p.ReadUint(1))
	assert.Equal(t, uint64(0), p.ReadUint(4))
	assert.Equal(t, "", p.ReadString(4, ' '))
	assert.Equal(t, 0, len(p.ReadBlob()))
}

func TestPayloadIntegerRoundTrip(t *testing.T) {
	p := NewPayloadWriter()
	p.WriteInt(-42, 2)
	p.WriteUint(0xFF, 1)
	p.WriteString("ab", 4, ' ')
	p.WriteBlob([]byte{1, 2, 3})

	r := NewPayload(p.Bytes())
	assert.Equal(t, int64(-42), r.ReadInt(2))
	assert.Equal(t, uint64(0xFF), r.ReadUint(1))
	assert.Equal(t, "ab", r.ReadString(4, ' '))
	assert.Equal(t, []byte{1, 2, 3}, r.ReadBlob())
}
