// Package clean implements the schema and cleaning engine.
//
// Clean is a pure function of (raw dataset, schema): it validates the
// input against the declared schema and produces a cleaned dataset that
// holds the tier invariants — zero nulls in required fields, no duplicate
// (timestamp, locale) keys, categorical values restricted to the declared
// set — plus a report of every repair it made.
package clean

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lmoraga/lakeflow/internal/dataset"
	"github.com/lmoraga/lakeflow/internal/fault"
)

// Imputation selects how numeric nulls are filled.
type Imputation int

const (
	// ImputeMedian fills numeric nulls with the column median.
	ImputeMedian Imputation = iota

	// ImputeMean fills numeric nulls with the column mean.
	ImputeMean
)

// ParseImputation parses an imputation strategy name.
func ParseImputation(s string) (Imputation, error) {
	switch s {
	case "median", "":
		return ImputeMedian, nil
	case "mean":
		return ImputeMean, nil
	default:
		return ImputeMedian, fmt.Errorf("unknown imputation strategy: %s", s)
	}
}

// Options configures a cleaning pass.
type Options struct {
	Imputation Imputation
}

// Timestamp layouts accepted from raw input, canonical first.
// Anything parsed by a non-canonical layout counts as normalized.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04",
	"2006-01-02",
}

// Null markers accepted in raw input.
var nullMarkers = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"null": true,
	"nan":  true,
	"none": true,
}

// Clean validates and normalizes a raw dataset against its declared
// schema. Raw cells are expected as text (the raw tier is row-oriented);
// type coercion happens here, at the cleaning boundary, not downstream.
//
// Fails with fault.ErrSchemaViolation only when a required field is
// absent in every row — a structurally incompatible input. Per-row
// problems are repaired or dropped and counted in the report.
func Clean(raw *dataset.Dataset, schema *dataset.Schema, opts Options) (*dataset.Dataset, *Report, error) {
	report := &Report{
		Kind:     schema.Kind,
		RawRows:  raw.Len(),
		Profiles: make(map[string]ColumnProfile),
	}

	if err := checkStructure(raw, schema); err != nil {
		return nil, nil, err
	}

	// First pass: coerce every cell to its schema type. Numeric parse
	// failures become nulls; they are imputed in the second pass.
	typed := make([]dataset.Row, 0, raw.Len())
	numeric := make(map[string][]float64)
	for _, rawRow := range raw.Rows {
		row := make(dataset.Row, len(schema.Fields))
		for i := range schema.Fields {
			f := &schema.Fields[i]
			row[f.Name] = coerce(rawRow[f.Name], f, report)
		}
		typed = append(typed, row)
		for name, v := range row {
			f, _ := schema.Field(name)
			if f.Type == dataset.TypeFloat && !v.Null {
				numeric[name] = append(numeric[name], v.Float)
			}
		}
	}

	// Imputation statistics over the observed (non-null) values.
	fill := make(map[string]float64)
	for name, vals := range numeric {
		fill[name] = impute(vals, opts.Imputation)
	}

	// Second pass: drop null-key rows, impute numeric nulls, enforce
	// declared ranges.
	kept := make([]dataset.Row, 0, len(typed))
rows:
	for _, row := range typed {
		if ts := row[dataset.KeyTimestamp]; ts.Null {
			report.RowsDroppedNullKey++
			continue
		}
		if loc := row[dataset.KeyLocale]; loc.Null {
			report.RowsDroppedNullKey++
			continue
		}
		for i := range schema.Fields {
			f := &schema.Fields[i]
			if f.Type != dataset.TypeFloat {
				continue
			}
			v := row[f.Name]
			if v.Null {
				v = dataset.Value{Float: fill[f.Name], Imputed: true}
				report.NullsImputed++
			}
			if out, lo := outOfRange(v.Float, f); out {
				switch f.OnOutOfRange {
				case dataset.RangeClamp:
					if lo {
						v.Float = *f.Min
					} else {
						v.Float = *f.Max
					}
					report.ValuesClamped++
				case dataset.RangeDrop:
					report.RowsDroppedOutOfRange++
					continue rows
				}
			}
			row[f.Name] = v
		}
		kept = append(kept, row)
	}

	// Duplicate keys collapse to the most recently observed row.
	out := dataset.New(schema)
	seen := make(map[dataset.Key]int)
	for _, row := range kept {
		key, _ := out.Key(row)
		if idx, dup := seen[key]; dup {
			out.Rows[idx] = row
			report.DuplicatesDropped++
			continue
		}
		seen[key] = len(out.Rows)
		out.Rows = append(out.Rows, row)
	}
	out.SortByKey()

	report.CleanRows = out.Len()
	profileColumns(out, report)
	return out, report, nil
}

// checkStructure fails with a SchemaViolation when a required field is
// missing from the header or null in every row.
func checkStructure(raw *dataset.Dataset, schema *dataset.Schema) error {
	for i := range schema.Fields {
		f := &schema.Fields[i]
		if !f.Required {
			continue
		}
		if !raw.HasColumn(f.Name) {
			return fmt.Errorf("%w: dataset %q has no column %q",
				fault.ErrSchemaViolation, schema.Kind, f.Name)
		}
		if raw.Len() == 0 {
			continue
		}
		empty := true
		for _, row := range raw.Rows {
			if v, ok := row[f.Name]; ok && !v.Null && !isNullMarker(v.Str) {
				empty = false
				break
			}
		}
		if empty {
			return fmt.Errorf("%w: dataset %q field %q is null in every row",
				fault.ErrSchemaViolation, schema.Kind, f.Name)
		}
	}
	return nil
}

// coerce converts one raw text cell to its schema type.
func coerce(raw dataset.Value, f *dataset.Field, report *Report) dataset.Value {
	s := strings.TrimSpace(raw.Str)
	if raw.Null || isNullMarker(s) {
		if f.Type == dataset.TypeCategory {
			report.CategoricalUnknown++
			return dataset.StringValue(dataset.Unknown)
		}
		return dataset.NullValue()
	}

	switch f.Type {
	case dataset.TypeTimestamp:
		for i, layout := range timestampLayouts {
			t, err := time.Parse(layout, s)
			if err != nil {
				continue
			}
			if i > 0 {
				report.TimestampsNormalized++
			}
			return dataset.TimeValue(t)
		}
		return dataset.NullValue()

	case dataset.TypeFloat:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return dataset.NullValue()
		}
		return dataset.FloatValue(v)

	case dataset.TypeCategory:
		norm := strings.ToLower(strings.Join(strings.Fields(s), " "))
		if f.InCategories(norm) {
			return dataset.StringValue(norm)
		}
		report.CategoricalUnknown++
		return dataset.StringValue(dataset.Unknown)

	default:
		return dataset.StringValue(s)
	}
}

func isNullMarker(s string) bool {
	return nullMarkers[strings.ToLower(strings.TrimSpace(s))]
}

func outOfRange(v float64, f *dataset.Field) (out, belowMin bool) {
	if f.Min != nil && v < *f.Min {
		return true, true
	}
	if f.Max != nil && v > *f.Max {
		return true, false
	}
	return false, false
}

// impute computes the fill value for a numeric column.
func impute(vals []float64, strategy Imputation) float64 {
	if len(vals) == 0 {
		return 0
	}
	switch strategy {
	case ImputeMean:
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		return sum / float64(len(vals))
	default:
		sorted := make([]float64, len(vals))
		copy(sorted, vals)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 0 {
			return (sorted[mid-1] + sorted[mid]) / 2
		}
		return sorted[mid]
	}
}

// profileColumns fills the report's numeric column profiles from the
// cleaned output.
func profileColumns(d *dataset.Dataset, report *Report) {
	for i := range d.Schema.Fields {
		f := &d.Schema.Fields[i]
		if f.Type != dataset.TypeFloat {
			continue
		}
		p := newProfiler()
		for _, row := range d.Rows {
			if v := row[f.Name]; !v.Null {
				p.add(v.Float)
			}
		}
		report.Profiles[f.Name] = p.profile()
	}
}
