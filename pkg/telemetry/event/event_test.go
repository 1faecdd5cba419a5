package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/khansohel/traffometer-server/pkg/telemetry/codec"
	"github.com/khansohel/traffometer-server/pkg/telemetry/geo"
	"github.com/khansohel/traffometer-server/pkg/telemetry/template"
)

func standardTemplate() template.Template {
	return template.NewTemplate(
		template.FieldDescriptor{Semantic: template.FieldTimestamp, Length: 4},
		template.FieldDescriptor{Semantic: template.FieldStatusCode, Length: 2},
		template.FieldDescriptor{Semantic: template.FieldGPS, Length: 6},
		template.FieldDescriptor{Semantic: template.FieldSpeed, Length: 1},
		template.FieldDescriptor{Semantic: template.FieldHeading, Length: 2},
		template.FieldDescriptor{Semantic: template.FieldAltitude, Length: 2},
		template.FieldDescriptor{Semantic: template.FieldDistance, Index: 0, Length: 4},
		template.FieldDescriptor{Semantic: template.FieldDistance, Index: 1, Length: 2},
		template.FieldDescriptor{Semantic: template.FieldGeofenceID, Index: 0, Length: 2},
		template.FieldDescriptor{Semantic: template.FieldGeofenceID, Index: 1, Length: 2},
		template.FieldDescriptor{Semantic: template.FieldSequence, Length: 2},
	)
}

func TestDecodeStandardEvent(t *testing.T) {
	tpl := standardTemplate()
	p := codec.NewPayloadWriter()
	p.WriteUint(1700000000, 4)
	p.WriteUint(7, 2)
	b := geo.Encode6(geo.Point{Lat: 12.5, Lon: 77.5})
	p.WriteRaw(b[:])
	p.WriteUint(60, 1)
	p.WriteUint(270, 2)
	p.WriteUint(50, 2)
	p.WriteUint(1234, 4)
	p.WriteUint(99, 2)
	p.WriteUint(1, 2)
	p.WriteUint(2, 2)
	p.WriteUint(42, 2)

	r := codec.NewPayload(p.Bytes())
	ev := Decode(tpl, r, 0x30, p.Bytes())

	assert.Equal(t, uint64(1700000000), ev.Timestamp)
	assert.Equal(t, uint16(7), ev.StatusCode)
	assert.InDelta(t, 12.5, ev.Point.Lat, 0.001)
	assert.InDelta(t, 77.5, ev.Point.Lon, 0.001)
	assert.Equal(t, uint64(60), ev.SpeedKPH)
	assert.Equal(t, uint64(270), ev.HeadingDeg)
	assert.Equal(t, uint64(50), ev.AltitudeM)
	assert.Equal(t, uint64(1234), ev.Odometer)
	assert.Equal(t, uint64(99), ev.TopSpeed)
	assert.Equal(t, [2]uint64{1, 2}, ev.GeofenceIDs)
	assert.Equal(t, uint64(42), ev.Sequence)
	assert.Equal(t, byte(0x30), ev.DataSource)
}

func TestRequiresValidPointTrueForGPSTemplate(t *testing.T) {
	assert.True(t, RequiresValidPoint(standardTemplate()))
}

func TestRequiresValidPointFalseWithoutGPS(t *testing.T) {
	tpl := template.NewTemplate(template.FieldDescriptor{Semantic: template.FieldInteger, Length: 1})
	assert.False(t, RequiresValidPoint(tpl))
}
