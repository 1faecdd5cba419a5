package codec

import "github.com/khansohel/traffometer-server/pkg/telemetry/protocol"

// Direction distinguishes client->server from server->client packets,
// since the two directions assign different meanings to the same type
// byte (spec.md Design Notes §9: "never index tables by raw byte alone").
type Direction int

const (
	ClientToServer Direction = iota
	ServerToClient
)

func (d Direction) String() string {
	if d == ServerToClient {
		return "server->client"
	}
	return "client->server"
}

// Packet is the abstract (header, type, payload) triple shared by both
// wire framings, tagged with the direction it travels and the encoding it
// was decoded from (or should be encoded with).
type Packet struct {
	Header    byte
	Type      byte
	Direction Direction
	Encoding  protocol.EncodingTag
	Payload   *Payload
	// Checksum records whether the ASCII frame carried a *HH checksum
	// suffix, so Encode can reproduce it (spec.md §8 property 1: checksum
	// variants round-trip the checksum byte).
	Checksum bool
}

// NewPacket builds a packet with an empty payload cursor ready for writing.
func NewPacket(typ byte, dir Direction, enc protocol.EncodingTag) *Packet {
	return &Packet{
		Header:    protocol.Header,
		Type:      typ,
		Direction: dir,
		Encoding:  enc,
		Payload:   NewPayloadWriter(),
	}
}

// Equal compares two packets as abstract values: header, type, direction,
// and raw payload bytes. Encoding and checksum flag are presentation
// details, not part of packet identity, except where the caller cares
// (tests compare those separately).
func (p *Packet) Equal(o *Packet) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.Header != o.Header || p.Type != o.Type || p.Direction != o.Direction {
		return false
	}
	a, b := p.Payload.Bytes(), o.Payload.Bytes()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
