// Package codec encodes datasets into their physical artifact formats:
// row-oriented CSV for the raw tier and zstd-compressed Parquet for the
// cleaned and mirrored tiers.
package codec

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/lmoraga/lakeflow/internal/dataset"
)

// ParseCSV reads a raw CSV file into an untyped dataset. Every cell is
// kept as text; type coercion belongs to the cleaning engine.
func ParseCSV(data []byte, schema *dataset.Schema) (*dataset.Dataset, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	out := &dataset.Dataset{
		Kind:    schema.Kind,
		Schema:  schema,
		Columns: header,
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		// A wrong field count still yields the record: short rows become
		// nulls below, which the cleaning engine repairs or drops and
		// counts. Anything else is a real parse failure.
		if err != nil && !errors.Is(err, csv.ErrFieldCount) {
			return nil, fmt.Errorf("read csv row %d: %w", len(out.Rows)+2, err)
		}
		row := make(dataset.Row, len(header))
		for i, col := range header {
			if i >= len(record) || record[i] == "" {
				row[col] = dataset.NullValue()
				continue
			}
			row[col] = dataset.StringValue(record[i])
		}
		out.Rows = append(out.Rows, row)
	}

	return out, nil
}

// EncodeCSV writes a dataset as row-oriented text. Column order follows
// the dataset's declared column order, so identical datasets encode to
// identical bytes.
func EncodeCSV(d *dataset.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(d.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(d.Columns))
	for _, row := range d.Rows {
		for i, col := range d.Columns {
			record[i] = formatCell(row[col], d.Schema, col)
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatCell(v dataset.Value, schema *dataset.Schema, col string) string {
	if v.Unmatched {
		return dataset.Unmatched
	}
	if v.Null {
		return ""
	}

	f, ok := schema.Field(col)
	if !ok {
		return v.Str
	}
	switch f.Type {
	case dataset.TypeTimestamp:
		return v.Time.UTC().Format(time.RFC3339)
	case dataset.TypeFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		return v.Str
	}
}
