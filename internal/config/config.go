// Package config loads the host descriptor: the namespace and the list of
// feature layers the host instantiates at startup.
//
// Descriptors are YAML. JSON is a subset of YAML, so JSON descriptors load
// too.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-water/internal/layer"
	"github.com/joeblew999/plat-water/internal/provider"
	"github.com/joeblew999/plat-water/internal/state"
)

var ErrInvalid = errors.New("invalid descriptor")

// Layer describes one feature-layer module.
type Layer struct {
	Name          string            `yaml:"name" json:"name"`
	Type          layer.LayerType   `yaml:"type" json:"type"`
	Active        bool              `yaml:"active" json:"active"`
	DataSource    string            `yaml:"dataSource" json:"dataSource"`
	ShapeKey      string            `yaml:"shapeDataAccessKey" json:"shapeDataAccessKey"`
	ClassProperty string            `yaml:"classProperty,omitempty" json:"classProperty,omitempty"`
	IDProperty    string            `yaml:"idProperty,omitempty" json:"idProperty,omitempty"`
	Classes       map[string]string `yaml:"classes,omitempty" json:"classes,omitempty"` // class id → display name
	Filter        []string          `yaml:"filter,omitempty" json:"filter,omitempty"`   // classes visible at startup
}

// EngineConfig converts the descriptor entry into an engine configuration.
func (l Layer) EngineConfig(namespace string) layer.Config {
	return layer.Config{
		Name:          l.Name,
		Type:          l.Type,
		Active:        l.Active,
		DataSource:    l.DataSource,
		ShapeKey:      l.ShapeKey,
		ClassProperty: l.ClassProperty,
		IDProperty:    l.IDProperty,
		Namespace:     namespace,
	}
}

// InitialFilter is the filter the layer starts with.
func (l Layer) InitialFilter() layer.Filter {
	f := layer.Filter{}
	for _, id := range l.Filter {
		f[id] = true
	}
	return f
}

// Descriptor is the host configuration.
type Descriptor struct {
	Namespace string  `yaml:"namespace" json:"namespace"`
	Layers    []Layer `yaml:"layers" json:"layers"`
}

// Default is the descriptor used when none is given: a single basin overlay
// backed by the built-in data service at baseURL.
func Default(baseURL string) Descriptor {
	return Descriptor{
		Namespace: state.Namespace,
		Layers: []Layer{{
			Name:       "Basins",
			Type:       layer.Overlay,
			Active:     true,
			DataSource: provider.PrairieIdentifier + ":" + strings.TrimRight(baseURL, "/") + "/data",
			ShapeKey:   "basins",
		}},
	}
}

// Load reads the descriptor at path. An empty path yields Default(baseURL).
func Load(path, baseURL string) (Descriptor, error) {
	if path == "" {
		return Default(baseURL), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read descriptor: %w", err)
	}
	return Parse(b)
}

// Parse decodes, defaults and validates a descriptor.
func Parse(b []byte) (Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(b, &d); err != nil {
		return Descriptor{}, fmt.Errorf("parse descriptor: %w", err)
	}
	d.applyDefaults()
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

func (d *Descriptor) applyDefaults() {
	if d.Namespace == "" {
		d.Namespace = state.Namespace
	}
	for i := range d.Layers {
		l := &d.Layers[i]
		if l.Type == "" {
			l.Type = layer.Overlay
		}
		if l.Name == "" {
			l.Name = fmt.Sprintf("GeoJSON %d", i+1)
		}
	}
}

// Validate checks layer names are unique, types are known and data sources
// are routable.
func (d Descriptor) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(d.Layers))
	for i, l := range d.Layers {
		if seen[l.Name] {
			errs = append(errs, fmt.Errorf("layers[%d]: duplicate name %q", i, l.Name))
		}
		seen[l.Name] = true

		switch l.Type {
		case layer.BaseLayer, layer.Overlay:
		default:
			errs = append(errs, fmt.Errorf("layers[%d]: unknown type %q", i, l.Type))
		}
		if _, _, ok := provider.SplitSource(l.DataSource); !ok {
			errs = append(errs, fmt.Errorf("layers[%d]: dataSource %q is not <identifier>:<locator>", i, l.DataSource))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
