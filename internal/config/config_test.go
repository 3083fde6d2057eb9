package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-water/internal/layer"
	"github.com/joeblew999/plat-water/internal/state"
)

const descriptorYAML = `
namespace: gwf-prairie-water
layers:
  - name: Basins
    type: overlay
    active: true
    dataSource: prairie-water:http://localhost:8086/data
    shapeDataAccessKey: basins
    classes:
      "1": Wetland
      "2": Cropland
    filter: ["1"]
  - name: Outline
    type: base-layer
    dataSource: prairie-water:http://localhost:8086/data
    shapeDataAccessKey: outline
    classProperty: data.data.LCClassNum
`

func TestParse_YAML(t *testing.T) {
	d, err := Parse([]byte(descriptorYAML))
	require.NoError(t, err)

	require.Len(t, d.Layers, 2)
	assert.Equal(t, "gwf-prairie-water", d.Namespace)
	assert.Equal(t, layer.Overlay, d.Layers[0].Type)
	assert.Equal(t, "Wetland", d.Layers[0].Classes["1"])
	assert.Equal(t, layer.Filter{"1": true}, d.Layers[0].InitialFilter())
	assert.Equal(t, layer.BaseLayer, d.Layers[1].Type)

	cfg := d.Layers[1].EngineConfig(d.Namespace)
	assert.Equal(t, "outline", cfg.ShapeKey)
	assert.Equal(t, "data.data.LCClassNum", cfg.ClassProperty)
}

func TestParse_JSONAndDefaults(t *testing.T) {
	d, err := Parse([]byte(`{"layers": [{"dataSource": "prairie-water:x", "shapeDataAccessKey": "k"}]}`))
	require.NoError(t, err)

	assert.Equal(t, state.Namespace, d.Namespace)
	assert.Equal(t, "GeoJSON 1", d.Layers[0].Name)
	assert.Equal(t, layer.Overlay, d.Layers[0].Type)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`
layers:
  - name: a
    type: heatmap
    dataSource: nocolon
  - name: a
    dataSource: p:x
`))
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "duplicate name")
	assert.Contains(t, err.Error(), "unknown type")
	assert.Contains(t, err.Error(), "not <identifier>:<locator>")
}

func TestValidate_RejectsBareURL(t *testing.T) {
	d := Default("http://localhost:8086")
	require.NoError(t, d.Validate())

	d.Layers[0].DataSource = "http://localhost:8086/data"
	err := d.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "not <identifier>:<locator>")
}

func TestLoad(t *testing.T) {
	d, err := Load("", "http://localhost:8086/")
	require.NoError(t, err)
	require.Len(t, d.Layers, 1)
	assert.Equal(t, "prairie-water:http://localhost:8086/data", d.Layers[0].DataSource)

	path := filepath.Join(t.TempDir(), "host.yaml")
	require.NoError(t, os.WriteFile(path, []byte(descriptorYAML), 0o644))
	d, err = Load(path, "")
	require.NoError(t, err)
	assert.Len(t, d.Layers, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}
