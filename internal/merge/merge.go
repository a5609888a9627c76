// Package merge joins the cleaned weather and traffic datasets on the
// shared (timestamp, locale) key.
package merge

import (
	"fmt"

	"github.com/lmoraga/lakeflow/internal/dataset"
	"github.com/lmoraga/lakeflow/internal/fault"
)

// JoinPolicy selects the join type. It is fixed once per run by
// configuration, never inferred per dataset.
type JoinPolicy int

const (
	// JoinInner keeps only keys present in both datasets.
	JoinInner JoinPolicy = iota

	// JoinLeftOuter keeps every weather row; traffic columns of
	// unmatched rows carry the "unmatched" marker.
	JoinLeftOuter
)

// String returns the string representation of the policy.
func (p JoinPolicy) String() string {
	switch p {
	case JoinLeftOuter:
		return "left"
	default:
		return "inner"
	}
}

// ParseJoinPolicy parses a join policy name.
func ParseJoinPolicy(s string) (JoinPolicy, error) {
	switch s {
	case "inner", "":
		return JoinInner, nil
	case "left", "left-outer":
		return JoinLeftOuter, nil
	default:
		return JoinInner, fmt.Errorf("unknown join policy: %s", s)
	}
}

// MergedKind is the dataset kind of a merge result.
const MergedKind = "merged"

// Stats summarizes one merge.
type Stats struct {
	Policy        string `json:"policy"`
	WeatherRows   int    `json:"weather_rows"`
	TrafficRows   int    `json:"traffic_rows"`
	MergedRows    int    `json:"merged_rows"`
	Matched       int    `json:"matched"`
	Unmatched     int    `json:"unmatched"`
	DuplicateKeys int    `json:"duplicate_keys"`
}

// Merge joins cleaned weather and traffic datasets on (timestamp, locale).
//
// The traffic side is hash-indexed and the weather side streamed, so the
// cost is O(|W|+|T|). Every output row traces to exactly one weather row
// and, for inner joins, exactly one traffic row.
//
// Fails with fault.ErrJoinKeyMissing if either input lacks a join key
// column entirely; that is a schema mismatch, not a data problem.
func Merge(w, t *dataset.Dataset, policy JoinPolicy) (*dataset.Dataset, *Stats, error) {
	for _, d := range []*dataset.Dataset{w, t} {
		for _, key := range []string{dataset.KeyTimestamp, dataset.KeyLocale} {
			if !d.HasColumn(key) {
				return nil, nil, fmt.Errorf("%w: dataset %q has no column %q",
					fault.ErrJoinKeyMissing, d.Kind, key)
			}
		}
	}

	stats := &Stats{
		Policy:      policy.String(),
		WeatherRows: w.Len(),
		TrafficRows: t.Len(),
	}

	schema, trafficCols := mergedSchema(w.Schema, t.Schema)
	out := dataset.New(schema)

	// Index the traffic side. Duplicate keys are impossible after
	// cleaning; if one shows up anyway, keep the row with the fewest
	// imputed fields, else the first encountered.
	index := make(map[dataset.Key]dataset.Row, t.Len())
	for _, row := range t.Rows {
		key, ok := t.Key(row)
		if !ok {
			continue
		}
		if prev, dup := index[key]; dup {
			stats.DuplicateKeys++
			if row.ImputedCount() < prev.ImputedCount() {
				index[key] = row
			}
			continue
		}
		index[key] = row
	}

	for _, wrow := range w.Rows {
		key, ok := w.Key(wrow)
		if !ok {
			continue
		}
		trow, matched := index[key]
		if !matched && policy == JoinInner {
			continue
		}

		row := wrow.Clone()
		for src, dst := range trafficCols {
			if matched {
				row[dst] = trow[src]
			} else {
				row[dst] = unmatchedCell(t.Schema, src)
			}
		}
		out.Rows = append(out.Rows, row)

		if matched {
			stats.Matched++
		} else {
			stats.Unmatched++
		}
	}

	out.SortByKey()
	stats.MergedRows = out.Len()
	return out, stats, nil
}

// mergedSchema builds the output schema: weather columns followed by
// non-key traffic columns, prefixed on name collision. The returned map
// translates traffic column names to their merged names.
func mergedSchema(w, t *dataset.Schema) (*dataset.Schema, map[string]string) {
	schema := &dataset.Schema{Kind: MergedKind}
	schema.Fields = append(schema.Fields, w.Fields...)

	trafficCols := make(map[string]string)
	for _, f := range t.Fields {
		if f.Key {
			continue
		}
		name := f.Name
		if _, taken := w.Field(name); taken {
			name = "traffic_" + name
		}
		merged := f
		merged.Name = name
		schema.Fields = append(schema.Fields, merged)
		trafficCols[f.Name] = name
	}
	return schema, trafficCols
}

// unmatchedCell returns the left-outer filler for one traffic column.
// Numeric cells stay null (distinguishable from any imputed value);
// text cells carry the "unmatched" marker, which is distinct from the
// cleaning-stage "unknown".
func unmatchedCell(t *dataset.Schema, col string) dataset.Value {
	f, ok := t.Field(col)
	if ok && f.Type == dataset.TypeFloat {
		return dataset.Value{Null: true, Unmatched: true}
	}
	return dataset.UnmatchedValue()
}
