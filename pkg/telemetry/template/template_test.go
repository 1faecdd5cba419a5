package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khansohel/traffometer-server/pkg/telemetry/codec"
	"github.com/khansohel/traffometer-server/pkg/telemetry/geo"
	"github.com/khansohel/traffometer-server/pkg/telemetry/protocol"
)

func TestStaticLookupResolvesUniqueID(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup(codec.ClientToServer, protocol.TypeUniqueID, DeviceKey{}, nil)
	assert.True(t, ok)
}

func TestLookupOrderSessionBeforeDeviceBeforeStatic(t *testing.T) {
	r := NewRegistry()
	dk := DeviceKey{AccountID: "acc", DeviceID: "dev"}

	deviceTpl := NewTemplate(FieldDescriptor{Semantic: FieldInteger, Length: 1})
	r.RegisterDeviceTemplate(dk, 0x72, deviceTpl)

	got, ok := r.Lookup(codec.ClientToServer, 0x72, dk, nil)
	require.True(t, ok)
	assert.Equal(t, deviceTpl, got)

	sessionTpl := NewTemplate(FieldDescriptor{Semantic: FieldInteger, Length: 2})
	session := NewSessionOverrides()
	session.Set(0x72, sessionTpl)

	got, ok = r.Lookup(codec.ClientToServer, 0x72, dk, session)
	require.True(t, ok)
	assert.Equal(t, sessionTpl, got)
}

func TestUnknownCustomTypeHasNoTemplate(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup(codec.ClientToServer, 0x75, DeviceKey{}, nil)
	assert.False(t, ok)
}

func TestCSVRoundTripFixedEvent(t *testing.T) {
	r := NewRegistry()
	dc := DeviceCodec{Registry: r}

	p := codec.NewPayloadWriter()
	p.WriteUint(1700000000, 4)
	p.WriteUint(0x0001, 2)
	gpsBytes := geo.Encode6(geo.Point{Lat: 40.0, Lon: -74.0})
	p.WriteRaw(gpsBytes[:])
	p.WriteUint(55, 1)
	p.WriteUint(180, 2)
	p.WriteUint(120, 2)
	p.WriteUint(1000, 4)
	p.WriteUint(200, 2)
	p.WriteUint(1, 2)
	p.WriteUint(2, 2)
	p.WriteUint(7, 2)

	fields, ok := dc.EncodeCSV(protocol.TypeEventFixedStd, codec.ClientToServer, p)
	require.True(t, ok)

	decoded, ok := dc.DecodeCSV(protocol.TypeEventFixedStd, codec.ClientToServer, fields)
	require.True(t, ok)
	assert.Equal(t, p.Bytes(), decoded.Bytes())
}

func TestCSVFallsBackWhenNoTemplate(t *testing.T) {
	r := NewRegistry()
	dc := DeviceCodec{Registry: r}
	_, ok := dc.EncodeCSV(0x75, codec.ClientToServer, codec.NewPayloadWriter())
	assert.False(t, ok)
}
