package codec

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/lmoraga/lakeflow/internal/dataset"
	"github.com/lmoraga/lakeflow/internal/merge"
)

// WeatherRow represents a cleaned weather observation in Parquet format.
type WeatherRow struct {
	TimestampMs    int64   `parquet:"timestamp_ms"`
	Locale         string  `parquet:"locale,zstd"`
	TemperatureC   float64 `parquet:"temperature_c"`
	Humidity       float64 `parquet:"humidity"`
	RainMm         float64 `parquet:"rain_mm"`
	WindSpeedKmh   float64 `parquet:"wind_speed_kmh"`
	AirPressureHpa float64 `parquet:"air_pressure_hpa"`
	Season         string  `parquet:"season,zstd"`
}

// TrafficRow represents a cleaned traffic observation in Parquet format.
type TrafficRow struct {
	TimestampMs     int64   `parquet:"timestamp_ms"`
	Locale          string  `parquet:"locale,zstd"`
	VehicleCount    float64 `parquet:"vehicle_count"`
	AvgSpeedKmh     float64 `parquet:"avg_speed_kmh"`
	AccidentCount   float64 `parquet:"accident_count"`
	CongestionLevel string  `parquet:"congestion_level,zstd"`
	RoadCondition   string  `parquet:"road_condition,zstd"`
}

// MergedRow represents one joined observation in Parquet format.
// Unmatched traffic-side numerics are NaN; unmatched categoricals carry
// the explicit "unmatched" marker.
type MergedRow struct {
	TimestampMs     int64   `parquet:"timestamp_ms"`
	Locale          string  `parquet:"locale,zstd"`
	TemperatureC    float64 `parquet:"temperature_c"`
	Humidity        float64 `parquet:"humidity"`
	RainMm          float64 `parquet:"rain_mm"`
	WindSpeedKmh    float64 `parquet:"wind_speed_kmh"`
	AirPressureHpa  float64 `parquet:"air_pressure_hpa"`
	Season          string  `parquet:"season,zstd"`
	VehicleCount    float64 `parquet:"vehicle_count"`
	AvgSpeedKmh     float64 `parquet:"avg_speed_kmh"`
	AccidentCount   float64 `parquet:"accident_count"`
	CongestionLevel string  `parquet:"congestion_level,zstd"`
	RoadCondition   string  `parquet:"road_condition,zstd"`
	Matched         bool    `parquet:"matched"`
}

// EncodeParquet writes a cleaned or merged dataset as zstd-compressed
// Parquet. Row order is the dataset's order, so identical datasets
// encode to identical bytes.
func EncodeParquet(d *dataset.Dataset) ([]byte, error) {
	switch d.Kind {
	case "weather":
		return writeParquet(weatherRows(d))
	case "traffic":
		return writeParquet(trafficRows(d))
	case merge.MergedKind:
		return writeParquet(mergedRows(d))
	default:
		return nil, fmt.Errorf("no parquet layout for dataset kind %q", d.Kind)
	}
}

func writeParquet[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[T](&buf, parquet.Compression(&parquet.Zstd))

	if _, err := w.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadParquet decodes a Parquet artifact back into typed rows.
func ReadParquet[T any](data []byte) ([]T, error) {
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}

func weatherRows(d *dataset.Dataset) []WeatherRow {
	rows := make([]WeatherRow, len(d.Rows))
	for i, r := range d.Rows {
		rows[i] = WeatherRow{
			TimestampMs:    ms(r[dataset.KeyTimestamp].Time),
			Locale:         r[dataset.KeyLocale].Str,
			TemperatureC:   num(r["temperature_c"]),
			Humidity:       num(r["humidity"]),
			RainMm:         num(r["rain_mm"]),
			WindSpeedKmh:   num(r["wind_speed_kmh"]),
			AirPressureHpa: num(r["air_pressure_hpa"]),
			Season:         r["season"].Str,
		}
	}
	return rows
}

func trafficRows(d *dataset.Dataset) []TrafficRow {
	rows := make([]TrafficRow, len(d.Rows))
	for i, r := range d.Rows {
		rows[i] = TrafficRow{
			TimestampMs:     ms(r[dataset.KeyTimestamp].Time),
			Locale:          r[dataset.KeyLocale].Str,
			VehicleCount:    num(r["vehicle_count"]),
			AvgSpeedKmh:     num(r["avg_speed_kmh"]),
			AccidentCount:   num(r["accident_count"]),
			CongestionLevel: r["congestion_level"].Str,
			RoadCondition:   r["road_condition"].Str,
		}
	}
	return rows
}

func mergedRows(d *dataset.Dataset) []MergedRow {
	rows := make([]MergedRow, len(d.Rows))
	for i, r := range d.Rows {
		matched := !r["congestion_level"].Unmatched && !r["vehicle_count"].Unmatched
		rows[i] = MergedRow{
			TimestampMs:     ms(r[dataset.KeyTimestamp].Time),
			Locale:          r[dataset.KeyLocale].Str,
			TemperatureC:    num(r["temperature_c"]),
			Humidity:        num(r["humidity"]),
			RainMm:          num(r["rain_mm"]),
			WindSpeedKmh:    num(r["wind_speed_kmh"]),
			AirPressureHpa:  num(r["air_pressure_hpa"]),
			Season:          r["season"].Str,
			VehicleCount:    num(r["vehicle_count"]),
			AvgSpeedKmh:     num(r["avg_speed_kmh"]),
			AccidentCount:   num(r["accident_count"]),
			CongestionLevel: cell(r["congestion_level"]),
			RoadCondition:   cell(r["road_condition"]),
			Matched:         matched,
		}
	}
	return rows
}

func ms(t time.Time) int64 { return t.UTC().UnixMilli() }

func num(v dataset.Value) float64 {
	if v.Null {
		return math.NaN()
	}
	return v.Float
}

func cell(v dataset.Value) string {
	if v.Unmatched {
		return dataset.Unmatched
	}
	return v.Str
}
