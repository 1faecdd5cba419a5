package template

import (
	"strconv"
	"strings"

	"github.com/khansohel/traffometer-server/pkg/telemetry/codec"
	"github.com/khansohel/traffometer-server/pkg/telemetry/geo"
)

// fieldSeparator joins CSV-encoded column values within one payload; the
// line-level ',' is already spent on the ASCII framing's CSV discriminator
// (spec.md §4.1), so columns inside the payload use ';'.
const fieldSeparator = ';'

// gpsSeparator joins the two decimal-degree halves of a GPS column.
const gpsSeparator = '|'

// DeviceCodec adapts one Registry, scoped to a single device and its
// current session overrides, to codec.CSVCodec. The packet codec calls
// this without any template-registry knowledge of its own (Design Notes
// §9: single parser parameterised by encoding).
type DeviceCodec struct {
	Registry *Registry
	Device   DeviceKey
	Session  *SessionOverrides
}

// EncodeCSV renders payload's fields as ';'-joined CSV columns per the
// resolved template. ok is false when no template resolves for the type,
// signalling the ASCII encoder to fall back to Base64.
func (c DeviceCodec) EncodeCSV(packetType byte, dir codec.Direction, payload *codec.Payload) (string, bool) {
	t, ok := c.Registry.Lookup(dir, packetType, c.Device, c.Session)
	if !ok {
		return "", false
	}
	cols := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		cols = append(cols, encodeField(f, payload))
	}
	return strings.Join(cols, string(fieldSeparator)), true
}

// DecodeCSV parses ';'-joined CSV columns back into a binary-layout
// Payload per the resolved template. ok is false when no template
// resolves, or when the column count mismatches the template.
func (c DeviceCodec) DecodeCSV(packetType byte, dir codec.Direction, fields string) (*codec.Payload, bool) {
	t, ok := c.Registry.Lookup(dir, packetType, c.Device, c.Session)
	if !ok {
		return nil, false
	}
	var cols []string
	if fields != "" {
		cols = strings.Split(fields, string(fieldSeparator))
	}
	if len(cols) != len(t.Fields) {
		return nil, false
	}
	p := codec.NewPayloadWriter()
	for i, f := range t.Fields {
		if !decodeField(f, cols[i], p) {
			return nil, false
		}
	}
	return p, true
}

// encodeField reads one field from payload per its descriptor and renders
// it as a single CSV column; each field contributes exactly one column,
// per spec.md Design Notes §9(b).
func encodeField(f FieldDescriptor, p *codec.Payload) string {
	switch f.Semantic {
	case FieldGPS:
		if f.HiRes {
			var b [8]byte
			copy(b[:], p.ReadBytes(8))
			pt := geo.Decode8(b)
			return formatFloat(pt.Lat) + string(gpsSeparator) + formatFloat(pt.Lon)
		}
		var b [6]byte
		copy(b[:], p.ReadBytes(6))
		pt := geo.Decode6(b)
		return formatFloat(pt.Lat) + string(gpsSeparator) + formatFloat(pt.Lon)
	case FieldString:
		return p.ReadString(f.Length, ' ')
	case FieldBlob:
		return string(p.ReadBlob())
	default:
		return strconv.FormatUint(p.ReadUint(f.Length), 10)
	}
}

// decodeField parses one CSV column and writes it into p per the field's
// descriptor; reports false if the column does not parse.
func decodeField(f FieldDescriptor, col string, p *codec.Payload) bool {
	switch f.Semantic {
	case FieldGPS:
		halves := strings.SplitN(col, string(gpsSeparator), 2)
		if len(halves) != 2 {
			return false
		}
		lat, err1 := strconv.ParseFloat(halves[0], 64)
		lon, err2 := strconv.ParseFloat(halves[1], 64)
		if err1 != nil || err2 != nil {
			return false
		}
		pt := geo.Point{Lat: lat, Lon: lon}
		if f.HiRes {
			b := geo.Encode8(pt)
			p.WriteRaw(b[:])
		} else {
			b := geo.Encode6(pt)
			p.WriteRaw(b[:])
		}
	case FieldString:
		p.WriteString(col, f.Length, ' ')
	case FieldBlob:
		p.WriteBlob([]byte(col))
	default:
		v, err := strconv.ParseUint(col, 10, 64)
		if err != nil {
			return false
		}
		p.WriteUint(v, f.Length)
	}
	return true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
