package layer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-water/internal/scalar"
)

// Feature is one geographic entity of the layer.
type Feature struct {
	ID       string
	ClassNum string // empty when the feature carries no usable class
	Geo      *geojson.Feature
	Scalar   *scalar.Record
}

// RenderedFeature is a feature currently on the map with its derived style.
type RenderedFeature struct {
	Feature
	Style Style
}

// Selection is the read-only view of a clicked feature published to the
// shared-state store.
type Selection struct {
	Layer      string         `json:"layer"`
	ID         string         `json:"id"`
	ClassNum   string         `json:"classNum"`
	Properties map[string]any `json:"properties,omitempty"`
	Scalar     *scalar.Record `json:"scalar,omitempty"`
}

func (f Feature) selection(layer string) Selection {
	var props map[string]any
	if f.Geo != nil && f.Geo.Properties != nil {
		props = maps.Clone(map[string]any(f.Geo.Properties))
	}
	return Selection{
		Layer:      layer,
		ID:         f.ID,
		ClassNum:   f.ClassNum,
		Properties: props,
		Scalar:     f.Scalar,
	}
}

// geoJSON returns a copy of the underlying GeoJSON feature carrying the
// class and style as extra properties. The geometry is shared.
func (rf RenderedFeature) geoJSON() *geojson.Feature {
	out := &geojson.Feature{
		Type:       "Feature",
		ID:         rf.ID,
		Properties: geojson.Properties{},
	}
	if rf.Geo != nil {
		out.Geometry = rf.Geo.Geometry
		out.BBox = rf.Geo.BBox
		maps.Copy(out.Properties, rf.Geo.Properties)
	}
	out.Properties["classNum"] = rf.ClassNum
	if !rf.Style.IsZero() {
		out.Properties["style"] = rf.Style
	}
	return out
}

// decodeShapes turns a shape payload into features. The payload may be a
// FeatureCollection, a single Feature, or an array of either. A nil payload
// yields no features.
func decodeShapes(raw json.RawMessage, classProp, idProp string) ([]*Feature, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var geos []*geojson.Feature
	if raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode shape array: %w", err)
		}
		for i, item := range items {
			fs, err := decodeGeoJSON(item)
			if err != nil {
				return nil, fmt.Errorf("shape item %d: %w", i, err)
			}
			geos = append(geos, fs...)
		}
	} else {
		fs, err := decodeGeoJSON(raw)
		if err != nil {
			return nil, err
		}
		geos = fs
	}

	out := make([]*Feature, 0, len(geos))
	for i, g := range geos {
		if g == nil {
			continue
		}
		out = append(out, &Feature{
			ID:       featureID(g, idProp, i),
			ClassNum: propertyString(g.Properties, classProp),
			Geo:      g,
		})
	}
	return out, nil
}

func decodeGeoJSON(raw json.RawMessage) ([]*geojson.Feature, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return nil, fmt.Errorf("decode feature collection: %w", err)
		}
		return fc.Features, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("decode feature: %w", err)
		}
		return []*geojson.Feature{f}, nil
	}
	return nil, fmt.Errorf("unsupported geojson type %q", head.Type)
}

func featureID(g *geojson.Feature, idProp string, index int) string {
	if id := propertyString(g.Properties, idProp); id != "" {
		return id
	}
	if g.ID != nil {
		if id := scalarString(g.ID); id != "" {
			return id
		}
	}
	return strconv.Itoa(index)
}

// propertyString looks up path in props and renders it as a string. path may
// be a plain key or a dotted path into nested objects ("data.data.LCClassNum").
func propertyString(props geojson.Properties, path string) string {
	if path == "" || props == nil {
		return ""
	}
	if v, ok := props[path]; ok {
		return scalarString(v)
	}

	var cur any = map[string]any(props)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = m[part]
		if !ok {
			return ""
		}
	}
	return scalarString(cur)
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	return ""
}
