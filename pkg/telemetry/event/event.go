// Package event decodes a GeoEvent (spec.md §3) from a Payload using a
// resolved template. It provides no encoder back to wire form.
package event

import (
	"github.com/khansohel/traffometer-server/pkg/telemetry/codec"
	"github.com/khansohel/traffometer-server/pkg/telemetry/geo"
	"github.com/khansohel/traffometer-server/pkg/telemetry/template"
)

// GeoEvent is everything the session decodes from one event packet
// (spec.md §3): timestamp, status code, location, motion/position
// readings, two geofence identifiers, sequence number, the raw packet
// bytes it was decoded from, and a data-source tag identifying which
// packet type/template produced it.
type GeoEvent struct {
	Timestamp   uint64
	StatusCode  uint16
	Point       geo.Point
	SpeedKPH    uint64
	HeadingDeg  uint64
	AltitudeM   uint64
	Odometer    uint64
	TopSpeed    uint64
	GeofenceIDs [2]uint64
	Sequence    uint64
	Raw         []byte
	DataSource  byte
}

// Decode reads a GeoEvent out of payload according to t's ordered field
// list. It consumes the payload cursor in field order; callers must pass
// a fresh Payload positioned at the start of the event body.
func Decode(t template.Template, payload *codec.Payload, dataSource byte, raw []byte) GeoEvent {
	var ev GeoEvent
	ev.DataSource = dataSource
	ev.Raw = raw

	distIdx := 0
	geofenceIdx := 0
	for _, f := range t.Fields {
		switch f.Semantic {
		case template.FieldTimestamp:
			// Epoch seconds are unsigned; ReadInt would decode a 4-byte
			// value with bit 31 set (any time from 2038 onward) negative.
			ev.Timestamp = payload.ReadUint(f.Length)
		case template.FieldStatusCode:
			ev.StatusCode = uint16(payload.ReadUint(f.Length))
		case template.FieldGPS:
			if f.HiRes {
				var b [8]byte
				copy(b[:], payload.ReadBytes(8))
				ev.Point = geo.Decode8(b)
			} else {
				var b [6]byte
				copy(b[:], payload.ReadBytes(6))
				ev.Point = geo.Decode6(b)
			}
		case template.FieldSpeed:
			ev.SpeedKPH = payload.ReadUint(f.Length)
		case template.FieldHeading:
			ev.HeadingDeg = payload.ReadUint(f.Length)
		case template.FieldAltitude:
			ev.AltitudeM = payload.ReadUint(f.Length)
		case template.FieldDistance:
			v := payload.ReadUint(f.Length)
			if distIdx == 0 {
				ev.Odometer = v
			} else {
				ev.TopSpeed = v
			}
			distIdx++
		case template.FieldGeofenceID:
			v := payload.ReadUint(f.Length)
			if geofenceIdx < len(ev.GeofenceIDs) {
				ev.GeofenceIDs[geofenceIdx] = v
			}
			geofenceIdx++
		case template.FieldSequence:
			ev.Sequence = payload.ReadUint(f.Length)
		case template.FieldInteger:
			// generic fields outside the fixed layout are not surfaced on
			// GeoEvent; custom templates that need them decode separately.
			payload.ReadUint(f.Length)
		case template.FieldString:
			payload.ReadString(f.Length, ' ')
		case template.FieldBlob:
			payload.ReadBlob()
		}
	}
	return ev
}

// RequiresValidPoint reports whether a decoded GeoEvent's GeoPoint must be
// valid for this event type to be accepted (spec.md §4.3 step 2). All
// location-bearing event types require a valid point; purely-diagnostic
// templates with no GPS field never reach this check.
func RequiresValidPoint(t template.Template) bool {
	for _, f := range t.Fields {
		if f.Semantic == template.FieldGPS {
			return true
		}
	}
	return false
}
