package dataset

import "fmt"

// FieldType is the semantic type of a schema field.
type FieldType int

const (
	// TypeTimestamp is an observation timestamp, normalized to UTC.
	TypeTimestamp FieldType = iota

	// TypeFloat is a numeric measurement.
	TypeFloat

	// TypeString is free text, used for the locale key.
	TypeString

	// TypeCategory is a categorical field restricted to a declared
	// value set.
	TypeCategory
)

// String returns the string representation of the field type.
func (t FieldType) String() string {
	switch t {
	case TypeTimestamp:
		return "timestamp"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeCategory:
		return "category"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}

// RangePolicy selects what happens to a numeric value outside [Min, Max].
type RangePolicy int

const (
	// RangeClamp clamps the value to the violated bound.
	RangeClamp RangePolicy = iota

	// RangeDrop drops the whole row.
	RangeDrop
)

// Join key column names shared by every dataset kind.
const (
	KeyTimestamp = "timestamp"
	KeyLocale    = "locale"
)

// Field declares one column of a dataset schema.
type Field struct {
	Name     string
	Type     FieldType
	Required bool

	// Key marks the field as part of the (timestamp, locale) join key.
	// A null key value drops the row during cleaning.
	Key bool

	// Min/Max bound numeric values; nil means unbounded.
	Min *float64
	Max *float64

	// OnOutOfRange selects clamp-or-drop for range violations.
	OnOutOfRange RangePolicy

	// Categories is the declared value set for TypeCategory fields.
	Categories []string
}

// InCategories reports whether v is one of the declared categories.
func (f *Field) InCategories(v string) bool {
	for _, c := range f.Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Schema declares the columns of one dataset kind.
type Schema struct {
	Kind   string
	Fields []Field
}

// Field returns the declared field with the given name.
func (s *Schema) Field(name string) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// Columns returns the declared column names in order.
func (s *Schema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i := range s.Fields {
		cols[i] = s.Fields[i].Name
	}
	return cols
}

func bound(v float64) *float64 { return &v }

// WeatherSchema returns the declared schema for the weather dataset.
//
// Physical measurements clamp to their bounds; a reading slightly past a
// sensor's range is still informative, unlike a fabricated count.
func WeatherSchema() *Schema {
	return &Schema{
		Kind: "weather",
		Fields: []Field{
			{Name: KeyTimestamp, Type: TypeTimestamp, Required: true, Key: true},
			{Name: KeyLocale, Type: TypeString, Required: true, Key: true},
			{Name: "temperature_c", Type: TypeFloat, Required: true, Min: bound(-30), Max: bound(45), OnOutOfRange: RangeClamp},
			{Name: "humidity", Type: TypeFloat, Required: true, Min: bound(0), Max: bound(100), OnOutOfRange: RangeClamp},
			{Name: "rain_mm", Type: TypeFloat, Required: true, Min: bound(0), Max: bound(300), OnOutOfRange: RangeClamp},
			{Name: "wind_speed_kmh", Type: TypeFloat, Required: true, Min: bound(0), Max: bound(200), OnOutOfRange: RangeClamp},
			{Name: "air_pressure_hpa", Type: TypeFloat, Required: true, Min: bound(870), Max: bound(1085), OnOutOfRange: RangeClamp},
			{Name: "season", Type: TypeCategory, Required: true, Categories: []string{"winter", "spring", "summer", "autumn"}},
		},
	}
}

// TrafficSchema returns the declared schema for the traffic dataset.
//
// Counts drop out-of-range rows instead of clamping; a clamped count
// would fabricate a plausible-looking observation.
func TrafficSchema() *Schema {
	return &Schema{
		Kind: "traffic",
		Fields: []Field{
			{Name: KeyTimestamp, Type: TypeTimestamp, Required: true, Key: true},
			{Name: KeyLocale, Type: TypeString, Required: true, Key: true},
			{Name: "vehicle_count", Type: TypeFloat, Required: true, Min: bound(0), Max: bound(100000), OnOutOfRange: RangeDrop},
			{Name: "avg_speed_kmh", Type: TypeFloat, Required: true, Min: bound(0), Max: bound(130), OnOutOfRange: RangeClamp},
			{Name: "accident_count", Type: TypeFloat, Required: true, Min: bound(0), Max: bound(50), OnOutOfRange: RangeDrop},
			{Name: "congestion_level", Type: TypeCategory, Required: true, Categories: []string{"low", "moderate", "high", "severe"}},
			{Name: "road_condition", Type: TypeCategory, Required: true, Categories: []string{"dry", "wet", "icy", "snowy"}},
		},
	}
}

// SchemaForKind returns the declared schema for a dataset kind.
func SchemaForKind(kind string) (*Schema, error) {
	switch kind {
	case "weather":
		return WeatherSchema(), nil
	case "traffic":
		return TrafficSchema(), nil
	default:
		return nil, fmt.Errorf("unknown dataset kind: %s", kind)
	}
}
