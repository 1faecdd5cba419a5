package template

import (
	"github.com/khansohel/traffometer-server/pkg/telemetry/codec"
	"github.com/khansohel/traffometer-server/pkg/telemetry/protocol"
)

// wellKnownTemplates returns the static table's entries: direction-tagged
// templates for identification, property get/set, error, end-of-block,
// the two fixed-format event layouts, and the DMTSP event types
// (0x50-0x5F, all using the standard layout) (spec.md §4.2). Custom types
// (0x70-0x7F) have no static entry and resolve only through
// device/session overrides; an unmatched custom type fails
// FORMAT_NOT_RECOGNIZED at the session layer, not here.
func wellKnownTemplates() map[tplKey]Template {
	m := make(map[tplKey]Template)

	m[tplKey{codec.ClientToServer, protocol.TypeUniqueID}] = NewTemplate(
		FieldDescriptor{Semantic: FieldInteger, Length: 6},
	)
	m[tplKey{codec.ClientToServer, protocol.TypeAccountID}] = NewTemplate(
		FieldDescriptor{Semantic: FieldString, Length: 20},
	)
	m[tplKey{codec.ClientToServer, protocol.TypeDeviceID}] = NewTemplate(
		FieldDescriptor{Semantic: FieldString, Length: 20},
	)

	m[tplKey{codec.ClientToServer, protocol.TypePropertyValue}] = NewTemplate(
		FieldDescriptor{Semantic: FieldInteger, Length: 2},
		FieldDescriptor{Semantic: FieldBlob},
	)
	m[tplKey{codec.ServerToClient, protocol.STypeGetProperty}] = NewTemplate(
		FieldDescriptor{Semantic: FieldInteger, Length: 4},
	)
	m[tplKey{codec.ServerToClient, protocol.STypeSetProperty}] = NewTemplate(
		FieldDescriptor{Semantic: FieldInteger, Length: 2},
		FieldDescriptor{Semantic: FieldBlob},
	)

	m[tplKey{codec.ClientToServer, protocol.TypeError}] = NewTemplate(
		FieldDescriptor{Semantic: FieldInteger, Length: 2},
		FieldDescriptor{Semantic: FieldInteger, Length: 1},
		FieldDescriptor{Semantic: FieldInteger, Length: 1},
		FieldDescriptor{Semantic: FieldBlob},
	)
	m[tplKey{codec.ServerToClient, protocol.STypeError}] = m[tplKey{codec.ClientToServer, protocol.TypeError}]

	m[tplKey{codec.ClientToServer, protocol.TypeEOBDone}] = NewTemplate()
	m[tplKey{codec.ClientToServer, protocol.TypeEOBMore}] = NewTemplate()
	m[tplKey{codec.ServerToClient, protocol.STypeEOBDone}] = NewTemplate()
	m[tplKey{codec.ServerToClient, protocol.STypeEOBSpeakFreely}] = NewTemplate()
	m[tplKey{codec.ServerToClient, protocol.STypeAck}] = NewTemplate(
		FieldDescriptor{Semantic: FieldSequence, Length: 4},
	)
	m[tplKey{codec.ServerToClient, protocol.STypeEOT}] = NewTemplate()

	m[tplKey{codec.ClientToServer, protocol.TypeEventFixedStd}] = standardEventFields(false)
	m[tplKey{codec.ClientToServer, protocol.TypeEventFixedHigh}] = standardEventFields(true)

	for i := byte(0); i <= 0x0F; i++ {
		m[tplKey{codec.ClientToServer, protocol.TypeEventDMTSPBase + i}] = standardEventFields(false)
	}

	return m
}

// standardEventFields is the fixed-format event layout shared by
// EVENT_FIXED_STD/HIGH and the DMTSP event family: timestamp, status
// code, GPS, speed, heading, altitude, odometer, top speed, two geofence
// ids, sequence number (spec.md §3 GeoEvent).
func standardEventFields(hiRes bool) Template {
	gpsLen := 6
	if hiRes {
		gpsLen = 8
	}
	return NewTemplate(
		FieldDescriptor{Semantic: FieldTimestamp, Length: 4},
		FieldDescriptor{Semantic: FieldStatusCode, Length: 2},
		FieldDescriptor{Semantic: FieldGPS, HiRes: hiRes, Length: gpsLen},
		FieldDescriptor{Semantic: FieldSpeed, Length: 1},
		FieldDescriptor{Semantic: FieldHeading, Length: 2},
		FieldDescriptor{Semantic: FieldAltitude, Length: 2},
		FieldDescriptor{Semantic: FieldDistance, Index: 0, Length: 4},
		FieldDescriptor{Semantic: FieldDistance, Index: 1, Length: 2},
		FieldDescriptor{Semantic: FieldGeofenceID, Index: 0, Length: 2},
		FieldDescriptor{Semantic: FieldGeofenceID, Index: 1, Length: 2},
		FieldDescriptor{Semantic: FieldSequence, Length: 2},
	)
}
