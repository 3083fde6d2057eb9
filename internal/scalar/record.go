// Package scalar models the per-class time series a data provider returns for
// a scalar query: values keyed by year, then by day of year.
package scalar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
)

// Sample is one entry of the series.
type Sample struct {
	Average float64 `json:"average"`
}

// Series maps year → day → sample.
type Series map[int]map[int]Sample

// Record is the scalar payload for one class.
type Record struct {
	Data Series `json:"data"`
}

// Point is a flattened series entry.
type Point struct {
	Year    int
	Day     int
	Average float64
}

// Decode parses a provider payload. A JSON null decodes to a nil record.
func Decode(raw []byte) (*Record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode scalar record: %w", err)
	}
	return &r, nil
}

// At returns the average at (year, day). The second result is false when the
// series has no value there.
func (r *Record) At(year, day int) (float64, bool) {
	if r == nil {
		return 0, false
	}
	days, ok := r.Data[year]
	if !ok {
		return 0, false
	}
	s, ok := days[day]
	return s.Average, ok
}

// Len is the number of samples.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, days := range r.Data {
		n += len(days)
	}
	return n
}

// Points returns every sample ordered by year then day.
func (r *Record) Points() []Point {
	if r == nil {
		return nil
	}
	out := make([]Point, 0, r.Len())
	for _, year := range slices.Sorted(maps.Keys(r.Data)) {
		days := r.Data[year]
		for _, day := range slices.Sorted(maps.Keys(days)) {
			out = append(out, Point{Year: year, Day: day, Average: days[day].Average})
		}
	}
	return out
}

// UnmarshalJSON accepts both keyed objects ({"1900": {"0": {...}}}) and
// index-addressed arrays ([[...]]) at either level. Null samples and samples
// without an average are dropped.
func (s *Series) UnmarshalJSON(b []byte) error {
	years, err := indexed(b)
	if err != nil {
		return fmt.Errorf("years: %w", err)
	}
	out := make(Series, len(years))
	for year, rawDays := range years {
		days, err := indexed(rawDays)
		if err != nil {
			return fmt.Errorf("year %d: %w", year, err)
		}
		samples := make(map[int]Sample, len(days))
		for day, rawSample := range days {
			var v struct {
				Average *float64 `json:"average"`
			}
			if err := json.Unmarshal(rawSample, &v); err != nil {
				return fmt.Errorf("year %d day %d: %w", year, day, err)
			}
			if v.Average == nil {
				continue
			}
			samples[day] = Sample{Average: *v.Average}
		}
		if len(samples) > 0 {
			out[year] = samples
		}
	}
	*s = out
	return nil
}

// indexed decodes a JSON object with integer keys or a JSON array into a map
// from index to raw element. Null elements and non-numeric keys are skipped.
func indexed(b []byte) (map[int]json.RawMessage, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}

	out := make(map[int]json.RawMessage)
	switch b[0] {
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
		for k, v := range m {
			i, err := strconv.Atoi(k)
			if err != nil {
				slog.Warn("skipping non-numeric scalar key", "key", k)
				continue
			}
			if isNull(v) {
				continue
			}
			out[i] = v
		}
	case '[':
		var a []json.RawMessage
		if err := json.Unmarshal(b, &a); err != nil {
			return nil, err
		}
		for i, v := range a {
			if isNull(v) {
				continue
			}
			out[i] = v
		}
	default:
		return nil, fmt.Errorf("expected object or array, got %q", b[0])
	}
	return out, nil
}

func isNull(b json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}
