// Package dataset defines the core data types moved through the lake.
//
// Key types:
//   - Value: a single typed cell, with null/imputed/unmatched markers
//   - Row: one observation keyed by column name
//   - Dataset: an ordered sequence of rows of one kind plus its schema
//   - Key: the (timestamp, locale) join key shared by all kinds
package dataset

import (
	"sort"
	"time"
)

// Categorical markers. Unknown is assigned during cleaning to nulls and
// unmapped values; Unmatched is assigned during a left-outer merge to
// traffic-side cells with no matching row. The two are distinct so a
// consumer can tell "value was dirty" from "row had no counterpart".
const (
	Unknown   = "unknown"
	Unmatched = "unmatched"
)

// Value is a single cell. Exactly one of the payload fields is
// meaningful, selected by the schema type of the column.
type Value struct {
	Null bool

	Float float64
	Str   string
	Time  time.Time

	// Imputed marks a value filled in by the cleaning engine.
	Imputed bool

	// Unmatched marks a cell null-filled by a left-outer merge.
	Unmatched bool
}

// NullValue returns a null cell.
func NullValue() Value { return Value{Null: true} }

// FloatValue returns a numeric cell.
func FloatValue(f float64) Value { return Value{Float: f} }

// StringValue returns a text cell.
func StringValue(s string) Value { return Value{Str: s} }

// TimeValue returns a timestamp cell, normalized to UTC.
func TimeValue(t time.Time) Value { return Value{Time: t.UTC()} }

// UnmatchedValue returns the left-outer merge filler for one column.
func UnmatchedValue() Value { return Value{Str: Unmatched, Unmatched: true} }

// Row is one observation keyed by column name.
type Row map[string]Value

// ImputedCount returns the number of imputed cells in the row. Used as
// the duplicate-key tie-break during merging: fewer imputations wins.
func (r Row) ImputedCount() int {
	n := 0
	for _, v := range r {
		if v.Imputed {
			n++
		}
	}
	return n
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Key is the (timestamp, locale) join key.
type Key struct {
	Timestamp int64 // unix seconds, UTC
	Locale    string
}

// Dataset is an ordered sequence of rows of one kind.
type Dataset struct {
	Kind    string
	Schema  *Schema
	Columns []string
	Rows    []Row
}

// New creates an empty dataset for the given schema.
func New(schema *Schema) *Dataset {
	return &Dataset{
		Kind:    schema.Kind,
		Schema:  schema,
		Columns: schema.Columns(),
	}
}

// Len returns the row count.
func (d *Dataset) Len() int { return len(d.Rows) }

// HasColumn reports whether the dataset carries the named column.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Key extracts the join key from a row. ok is false if either key cell
// is null or missing.
func (d *Dataset) Key(r Row) (Key, bool) {
	ts, tok := r[KeyTimestamp]
	loc, lok := r[KeyLocale]
	if !tok || !lok || ts.Null || loc.Null {
		return Key{}, false
	}
	return Key{Timestamp: ts.Time.Unix(), Locale: loc.Str}, true
}

// SortByKey orders rows by (timestamp, locale) ascending. Cleaning sorts
// its output so that re-runs over identical input encode to identical
// bytes.
func (d *Dataset) SortByKey() {
	sort.SliceStable(d.Rows, func(i, j int) bool {
		ki, _ := d.Key(d.Rows[i])
		kj, _ := d.Key(d.Rows[j])
		if ki.Timestamp != kj.Timestamp {
			return ki.Timestamp < kj.Timestamp
		}
		return ki.Locale < kj.Locale
	})
}
