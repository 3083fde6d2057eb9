// Package present holds the read-only views built from the shared-state
// snapshot: the selected feature's chart and metadata table, and the
// location selection published by other modules.
package present

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/joeblew999/plat-water/internal/scalar"
	"github.com/joeblew999/plat-water/internal/state"
)

// NA is shown where a value is missing.
const NA = "N/A"

// ChartView is the line chart of the selected feature's scalar series.
type ChartView struct {
	Label  string    `json:"label" doc:"Feature id, or N/A"`
	Labels []string  `json:"labels" doc:"Sample labels as year-day"`
	Values []float64 `json:"values" doc:"Sample averages"`
}

// Empty reports whether there is nothing to draw.
func (c ChartView) Empty() bool {
	return len(c.Values) == 0
}

// Row is one metadata table row.
type Row struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// LocationSelection is the location another module published under
// gwf-default.locationSelection.
type LocationSelection struct {
	DataSource string `json:"dataSource,omitempty"`
	LocationID *int64 `json:"locationId,omitempty"`
}

// DataSourceText returns the data source or N/A.
func (l LocationSelection) DataSourceText() string {
	if l.DataSource == "" {
		return NA
	}
	return l.DataSource
}

// LocationIDText returns the location id or N/A.
func (l LocationSelection) LocationIDText() string {
	if l.LocationID == nil {
		return NA
	}
	return strconv.FormatInt(*l.LocationID, 10)
}

// selected is the part of a published selection the views read. Values in
// the snapshot may be typed selections or plain JSON objects written over the
// API, so both are read through their JSON form.
type selected struct {
	ID         json.RawMessage `json:"id"`
	Properties map[string]any  `json:"properties"`
	Scalar     *scalar.Record  `json:"scalar"`
}

func decode(v any, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func selection(snap state.Snapshot, namespace string) (*selected, bool) {
	if namespace == "" {
		namespace = state.Namespace
	}
	v, ok := snap[state.Key(namespace, state.SelectedFeature)]
	if !ok || v == nil {
		return nil, false
	}
	var s selected
	if err := decode(v, &s); err != nil {
		return nil, false
	}
	return &s, true
}

// Chart projects the series of the feature selected under namespace, ordered
// by year then day. An empty namespace reads the prairie-water key.
func Chart(snap state.Snapshot, namespace string) ChartView {
	view := ChartView{Label: NA}
	s, ok := selection(snap, namespace)
	if !ok {
		return view
	}
	if id := rawText(s.ID); id != "" {
		view.Label = id
	}
	for _, p := range s.Scalar.Points() {
		view.Labels = append(view.Labels, fmt.Sprintf("%d-%d", p.Year, p.Day))
		view.Values = append(view.Values, p.Average)
	}
	return view
}

// Metadata lists the selected feature's properties sorted by key. It returns
// nil when nothing is selected.
func Metadata(snap state.Snapshot, namespace string) []Row {
	s, ok := selection(snap, namespace)
	if !ok || len(s.Properties) == 0 {
		return nil
	}
	rows := make([]Row, 0, len(s.Properties))
	for _, k := range slices.Sorted(maps.Keys(s.Properties)) {
		rows = append(rows, Row{Key: k, Value: valueText(s.Properties[k])})
	}
	return rows
}

// Location reads the current location selection. The zero value means none.
func Location(snap state.Snapshot) LocationSelection {
	var l LocationSelection
	v, ok := snap[state.LocationSelectionKey()]
	if !ok || v == nil {
		return l
	}
	if err := decode(v, &l); err != nil {
		return LocationSelection{}
	}
	return l
}

func rawText(b json.RawMessage) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s
	}
	return string(b)
}

func valueText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
