package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basins = `{"type": "FeatureCollection", "features": [
  {"type": "Feature", "properties": {"HYBAS_ID": 1, "LCClassNum": 2},
   "geometry": {"type": "Point", "coordinates": [-105, 50]}}
]}`

func TestShapeService_SaveListLoad(t *testing.T) {
	s := NewShapeService(t.TempDir())

	files, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, files)

	f, err := s.Save("basins.geojson", []byte(basins))
	require.NoError(t, err)
	assert.Equal(t, "basins", f.Key)

	files, err = s.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "basins.geojson", files[0].Name)

	fc, err := s.Shape("basins")
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.EqualValues(t, 2, fc.Features[0].Properties["LCClassNum"])

	all, err := s.Shapes()
	require.NoError(t, err)
	assert.Contains(t, all, "basins")
}

func TestShapeService_NotFound(t *testing.T) {
	s := NewShapeService(t.TempDir())
	_, err := s.Shape("nope")
	assert.ErrorIs(t, err, ErrShapeNotFound)
}

func TestShapeService_SaveRejects(t *testing.T) {
	s := NewShapeService(t.TempDir())

	_, err := s.Save("../x.geojson", []byte(basins))
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = s.Save("x.csv", []byte(basins))
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = s.Save("x.geojson", []byte(`{"type": "Point"`))
	assert.Error(t, err)
}

func TestShapeService_BrokenFileReported(t *testing.T) {
	dir := t.TempDir()
	s := NewShapeService(dir)
	_, err := s.Save("good.geojson", []byte(basins))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.SourcesDir(), "bad.json"), []byte("{"), 0o644))

	all, err := s.Shapes()
	assert.Error(t, err)
	assert.Contains(t, all, "good")
	assert.NotContains(t, all, "bad")
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2<<20))
}
