// Package template implements the Payload Template Registry (spec.md
// §4.2): direction-tagged, packet-type-keyed ordered field schemas that
// drive the CSV encoding and custom event-type decoding.
package template

// SemanticType tags what a field descriptor means, independent of its
// wire position.
type SemanticType int

const (
	FieldTimestamp SemanticType = iota
	FieldStatusCode
	FieldGPS
	FieldSpeed
	FieldHeading
	FieldAltitude
	FieldDistance
	FieldGeofenceID
	FieldSequence
	FieldInteger
	FieldString
	FieldBlob
)

// FieldDescriptor is one ordered entry of a PayloadTemplate (spec.md §3):
// a semantic tag, whether it uses the high-resolution GPS encoding,
// an optional disambiguating index for repeated tags, and a byte length.
type FieldDescriptor struct {
	Semantic SemanticType
	HiRes    bool
	Index    int
	Length   int
}

// Template is the ordered field list for one (direction, packet-type) pair.
type Template struct {
	Fields []FieldDescriptor
}

// NewTemplate builds a Template from an ordered field list.
func NewTemplate(fields ...FieldDescriptor) Template {
	return Template{Fields: append([]FieldDescriptor(nil), fields...)}
}
