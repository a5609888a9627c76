package dataset

import (
	"testing"
	"time"
)

func TestKeyExtraction(t *testing.T) {
	d := New(WeatherSchema())
	ts := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	row := Row{
		KeyTimestamp: TimeValue(ts),
		KeyLocale:    StringValue("camden"),
	}
	key, ok := d.Key(row)
	if !ok {
		t.Fatal("expected a valid key")
	}
	if key.Timestamp != ts.Unix() {
		t.Errorf("key timestamp = %d, want %d", key.Timestamp, ts.Unix())
	}
	if key.Locale != "camden" {
		t.Errorf("key locale = %q, want %q", key.Locale, "camden")
	}

	// Null key cells invalidate the key.
	row[KeyLocale] = NullValue()
	if _, ok := d.Key(row); ok {
		t.Error("null locale should not produce a key")
	}

	// Missing key columns invalidate the key.
	if _, ok := d.Key(Row{KeyTimestamp: TimeValue(ts)}); ok {
		t.Error("missing locale should not produce a key")
	}
}

func TestSortByKey(t *testing.T) {
	d := New(WeatherSchema())
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	d.Rows = []Row{
		{KeyTimestamp: TimeValue(base.Add(2 * time.Hour)), KeyLocale: StringValue("camden")},
		{KeyTimestamp: TimeValue(base), KeyLocale: StringValue("westminster")},
		{KeyTimestamp: TimeValue(base), KeyLocale: StringValue("camden")},
	}
	d.SortByKey()

	wantLocales := []string{"camden", "westminster", "camden"}
	wantOffsets := []time.Duration{0, 0, 2 * time.Hour}
	for i, row := range d.Rows {
		if got := row[KeyLocale].Str; got != wantLocales[i] {
			t.Errorf("row %d locale = %q, want %q", i, got, wantLocales[i])
		}
		if got := row[KeyTimestamp].Time; !got.Equal(base.Add(wantOffsets[i])) {
			t.Errorf("row %d timestamp = %v, want %v", i, got, base.Add(wantOffsets[i]))
		}
	}
}

func TestImputedCount(t *testing.T) {
	row := Row{
		"humidity":       {Float: 60, Imputed: true},
		"temperature_c":  {Float: 12},
		"wind_speed_kmh": {Float: 9, Imputed: true},
	}
	if got := row.ImputedCount(); got != 2 {
		t.Errorf("ImputedCount = %d, want 2", got)
	}
}

func TestRowClone(t *testing.T) {
	row := Row{"temperature_c": FloatValue(12)}
	clone := row.Clone()
	clone["temperature_c"] = FloatValue(99)

	if row["temperature_c"].Float != 12 {
		t.Error("mutating the clone should not touch the original")
	}
}

func TestSchemasDeclareJoinKeys(t *testing.T) {
	for _, schema := range []*Schema{WeatherSchema(), TrafficSchema()} {
		for _, key := range []string{KeyTimestamp, KeyLocale} {
			f, ok := schema.Field(key)
			if !ok {
				t.Fatalf("schema %s missing key column %s", schema.Kind, key)
			}
			if !f.Key || !f.Required {
				t.Errorf("schema %s field %s should be a required key", schema.Kind, key)
			}
		}
	}
}

func TestSchemaForKind(t *testing.T) {
	for _, kind := range []string{"weather", "traffic"} {
		schema, err := SchemaForKind(kind)
		if err != nil {
			t.Fatalf("SchemaForKind(%q): %v", kind, err)
		}
		if schema.Kind != kind {
			t.Errorf("schema kind = %q, want %q", schema.Kind, kind)
		}
	}
	if _, err := SchemaForKind("pollution"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestUnknownAndUnmatchedAreDistinct(t *testing.T) {
	if Unknown == Unmatched {
		t.Fatal("the cleaning marker and the merge marker must differ")
	}
	v := UnmatchedValue()
	if !v.Unmatched || v.Str != Unmatched {
		t.Errorf("UnmatchedValue = %+v", v)
	}
}
