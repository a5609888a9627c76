package clean

import (
	"math"

	"github.com/DataDog/sketches-go/ddsketch"
)

// Report summarizes one cleaning pass. It is a pure by-product: the
// cleaning engine mutates nothing outside the dataset it returns.
type Report struct {
	Kind      string `json:"kind"`
	RawRows   int    `json:"raw_rows"`
	CleanRows int    `json:"clean_rows"`

	NullsImputed          int `json:"nulls_imputed"`
	RowsDroppedNullKey    int `json:"rows_dropped_null_key"`
	RowsDroppedOutOfRange int `json:"rows_dropped_out_of_range"`
	ValuesClamped         int `json:"values_clamped"`
	DuplicatesDropped     int `json:"duplicates_dropped"`
	TimestampsNormalized  int `json:"timestamps_normalized"`
	CategoricalUnknown    int `json:"categorical_unknown"`

	// Profiles holds per-column numeric summaries of the cleaned output.
	Profiles map[string]ColumnProfile `json:"profiles,omitempty"`
}

// ColumnProfile is a numeric column summary for the cleaning report.
// Quantiles are approximate (DDSketch, 1% relative accuracy); min/max
// and count are exact.
type ColumnProfile struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
}

// profiler accumulates one column's values.
type profiler struct {
	sketch *ddsketch.DDSketch
	count  int64
	min    float64
	max    float64
}

func newProfiler() *profiler {
	sk, err := ddsketch.NewDefaultDDSketch(0.01)
	if err != nil {
		// The default relative accuracy is a constant; construction
		// cannot fail for it.
		panic(err)
	}
	return &profiler{sketch: sk, min: math.Inf(1), max: math.Inf(-1)}
}

func (p *profiler) add(v float64) {
	if err := p.sketch.Add(v); err != nil {
		return
	}
	p.count++
	if v < p.min {
		p.min = v
	}
	if v > p.max {
		p.max = v
	}
}

func (p *profiler) profile() ColumnProfile {
	if p.count == 0 {
		return ColumnProfile{}
	}
	p50, err50 := p.sketch.GetValueAtQuantile(0.5)
	p95, err95 := p.sketch.GetValueAtQuantile(0.95)
	if err50 != nil {
		p50 = 0
	}
	if err95 != nil {
		p95 = 0
	}
	return ColumnProfile{
		Count: p.count,
		Min:   p.min,
		Max:   p.max,
		P50:   p50,
		P95:   p95,
	}
}
