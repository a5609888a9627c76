package merge

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lmoraga/lakeflow/internal/dataset"
	"github.com/lmoraga/lakeflow/internal/fault"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// weatherAt and trafficAt build minimal cleaned rows sharing the
// (timestamp, locale) key layout the cleaning engine produces.
func weatherAt(d *dataset.Dataset, hour int, locale string) {
	d.Rows = append(d.Rows, dataset.Row{
		dataset.KeyTimestamp: dataset.TimeValue(base.Add(time.Duration(hour) * time.Hour)),
		dataset.KeyLocale:    dataset.StringValue(locale),
		"temperature_c":      dataset.FloatValue(12),
		"humidity":           dataset.FloatValue(70),
		"rain_mm":            dataset.FloatValue(0),
		"wind_speed_kmh":     dataset.FloatValue(10),
		"air_pressure_hpa":   dataset.FloatValue(1012),
		"season":             dataset.StringValue("spring"),
	})
}

func trafficAt(d *dataset.Dataset, hour int, locale string) {
	d.Rows = append(d.Rows, dataset.Row{
		dataset.KeyTimestamp: dataset.TimeValue(base.Add(time.Duration(hour) * time.Hour)),
		dataset.KeyLocale:    dataset.StringValue(locale),
		"vehicle_count":      dataset.FloatValue(300),
		"avg_speed_kmh":      dataset.FloatValue(32),
		"accident_count":     dataset.FloatValue(0),
		"congestion_level":   dataset.StringValue("moderate"),
		"road_condition":     dataset.StringValue("dry"),
	})
}

func TestMergeScenario(t *testing.T) {
	// 4988 weather rows, 4950 traffic rows, 4900 shared keys: an inner
	// join yields exactly the shared keys.
	w := dataset.New(dataset.WeatherSchema())
	tr := dataset.New(dataset.TrafficSchema())

	for i := 0; i < 4988; i++ {
		weatherAt(w, i, fmt.Sprintf("locale-%d", i))
	}
	// 4900 shared keys, then 50 traffic-only keys.
	for i := 0; i < 4900; i++ {
		trafficAt(tr, i, fmt.Sprintf("locale-%d", i))
	}
	for i := 0; i < 50; i++ {
		trafficAt(tr, i, fmt.Sprintf("traffic-only-%d", i))
	}

	merged, stats, err := Merge(w, tr, JoinInner)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Len() != 4900 {
		t.Errorf("merged rows = %d, want 4900", merged.Len())
	}
	if stats.Matched != 4900 || stats.Unmatched != 0 {
		t.Errorf("matched/unmatched = %d/%d, want 4900/0", stats.Matched, stats.Unmatched)
	}
	if stats.WeatherRows != 4988 || stats.TrafficRows != 4950 {
		t.Errorf("input counts = %d/%d, want 4988/4950", stats.WeatherRows, stats.TrafficRows)
	}
}

func TestMergeCardinality(t *testing.T) {
	w := dataset.New(dataset.WeatherSchema())
	tr := dataset.New(dataset.TrafficSchema())
	for i := 0; i < 10; i++ {
		weatherAt(w, i, "camden")
	}
	for i := 5; i < 20; i++ {
		trafficAt(tr, i, "camden")
	}

	inner, _, err := Merge(w, tr, JoinInner)
	if err != nil {
		t.Fatalf("inner merge: %v", err)
	}
	if inner.Len() > w.Len() || inner.Len() > tr.Len() {
		t.Errorf("inner join produced %d rows, more than an input side", inner.Len())
	}
	if inner.Len() != 5 {
		t.Errorf("inner rows = %d, want 5", inner.Len())
	}

	left, stats, err := Merge(w, tr, JoinLeftOuter)
	if err != nil {
		t.Fatalf("left merge: %v", err)
	}
	if left.Len() != w.Len() {
		t.Errorf("left join rows = %d, want |weather| = %d", left.Len(), w.Len())
	}
	if stats.Matched != 5 || stats.Unmatched != 5 {
		t.Errorf("matched/unmatched = %d/%d, want 5/5", stats.Matched, stats.Unmatched)
	}
}

func TestMergeUnmatchedMarkers(t *testing.T) {
	w := dataset.New(dataset.WeatherSchema())
	tr := dataset.New(dataset.TrafficSchema())
	weatherAt(w, 0, "camden")  // no traffic for this key
	weatherAt(w, 1, "camden")  // matched
	trafficAt(tr, 1, "camden")

	merged, _, err := Merge(w, tr, JoinLeftOuter)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Len() != 2 {
		t.Fatalf("merged rows = %d, want 2", merged.Len())
	}

	// Sorted by key, the unmatched row comes first.
	unmatched := merged.Rows[0]
	if v := unmatched["congestion_level"]; !v.Unmatched || v.Str != dataset.Unmatched {
		t.Errorf("unmatched text cell = %+v, want the unmatched marker", v)
	}
	if v := unmatched["vehicle_count"]; !v.Null || !v.Unmatched {
		t.Errorf("unmatched numeric cell = %+v, want null+unmatched", v)
	}
	// The merge marker must not be confused with the cleaning marker.
	if unmatched["congestion_level"].Str == dataset.Unknown {
		t.Error("unmatched filler must differ from the cleaning unknown")
	}

	matched := merged.Rows[1]
	if v := matched["vehicle_count"]; v.Null || v.Float != 300 {
		t.Errorf("matched numeric cell = %+v, want 300", v)
	}
}

func TestMergeJoinKeyMissing(t *testing.T) {
	w := dataset.New(dataset.WeatherSchema())
	tr := dataset.New(dataset.TrafficSchema())

	// Strip the locale column from the traffic side.
	cols := tr.Columns[:0]
	for _, c := range tr.Columns {
		if c != dataset.KeyLocale {
			cols = append(cols, c)
		}
	}
	tr.Columns = cols

	_, _, err := Merge(w, tr, JoinInner)
	if !errors.Is(err, fault.ErrJoinKeyMissing) {
		t.Errorf("expected join key error, got %v", err)
	}
}

func TestMergeColumnCollisions(t *testing.T) {
	w := &dataset.Dataset{
		Kind: "weather",
		Schema: &dataset.Schema{Kind: "weather", Fields: []dataset.Field{
			{Name: dataset.KeyTimestamp, Type: dataset.TypeTimestamp, Required: true, Key: true},
			{Name: dataset.KeyLocale, Type: dataset.TypeString, Required: true, Key: true},
			{Name: "observed_at_station", Type: dataset.TypeString},
		}},
	}
	tr := &dataset.Dataset{
		Kind: "traffic",
		Schema: &dataset.Schema{Kind: "traffic", Fields: []dataset.Field{
			{Name: dataset.KeyTimestamp, Type: dataset.TypeTimestamp, Required: true, Key: true},
			{Name: dataset.KeyLocale, Type: dataset.TypeString, Required: true, Key: true},
			{Name: "observed_at_station", Type: dataset.TypeString},
		}},
	}
	w.Columns = w.Schema.Columns()
	tr.Columns = tr.Schema.Columns()

	w.Rows = append(w.Rows, dataset.Row{
		dataset.KeyTimestamp:  dataset.TimeValue(base),
		dataset.KeyLocale:     dataset.StringValue("camden"),
		"observed_at_station": dataset.StringValue("w-17"),
	})
	tr.Rows = append(tr.Rows, dataset.Row{
		dataset.KeyTimestamp:  dataset.TimeValue(base),
		dataset.KeyLocale:     dataset.StringValue("camden"),
		"observed_at_station": dataset.StringValue("t-03"),
	})

	merged, _, err := Merge(w, tr, JoinInner)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	row := merged.Rows[0]
	if got := row["observed_at_station"].Str; got != "w-17" {
		t.Errorf("weather column = %q, want w-17", got)
	}
	if got := row["traffic_observed_at_station"].Str; got != "t-03" {
		t.Errorf("prefixed traffic column = %q, want t-03", got)
	}
	if !merged.HasColumn("traffic_observed_at_station") {
		t.Error("merged schema should declare the prefixed column")
	}
}

func TestMergeDuplicateTrafficKeys(t *testing.T) {
	w := dataset.New(dataset.WeatherSchema())
	tr := dataset.New(dataset.TrafficSchema())
	weatherAt(w, 0, "camden")
	trafficAt(tr, 0, "camden")
	trafficAt(tr, 0, "camden")
	// Second copy carries an imputed field; the clean copy wins.
	tr.Rows[1]["avg_speed_kmh"] = dataset.Value{Float: 50, Imputed: true}
	tr.Rows[1]["vehicle_count"] = dataset.FloatValue(999)

	merged, stats, err := Merge(w, tr, JoinInner)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if stats.DuplicateKeys != 1 {
		t.Errorf("duplicate keys = %d, want 1", stats.DuplicateKeys)
	}
	if got := merged.Rows[0]["vehicle_count"].Float; got != 300 {
		t.Errorf("vehicle_count = %v, want 300 (fewest-imputed row)", got)
	}
}

func TestParseJoinPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    JoinPolicy
		wantErr bool
	}{
		{"inner", JoinInner, false},
		{"", JoinInner, false},
		{"left", JoinLeftOuter, false},
		{"left-outer", JoinLeftOuter, false},
		{"full", JoinInner, true},
	}
	for _, tt := range tests {
		got, err := ParseJoinPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseJoinPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseJoinPolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
