package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
)

var (
	ErrShapeNotFound = errors.New("shape not found")
	ErrInvalidName   = errors.New("invalid file name")
)

// shapeExts are the file extensions served as shapes.
var shapeExts = map[string]bool{".geojson": true, ".json": true}

type cachedShape struct {
	modTime time.Time
	fc      *geojson.FeatureCollection
}

// ShapeService serves the GeoJSON files under <dataDir>/sources, keyed by
// file stem. Parsed files are cached until they change on disk.
type ShapeService struct {
	sourcesDir string

	mu    sync.Mutex
	cache map[string]cachedShape
}

// NewShapeService creates a new shape service.
func NewShapeService(dataDir string) *ShapeService {
	return &ShapeService{
		sourcesDir: filepath.Join(dataDir, "sources"),
		cache:      make(map[string]cachedShape),
	}
}

// SourcesDir returns the path to the sources directory.
func (s *ShapeService) SourcesDir() string {
	return s.sourcesDir
}

// List returns all available shape files.
func (s *ShapeService) List() ([]SourceFile, error) {
	entries, err := os.ReadDir(s.sourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SourceFile{}, nil
		}
		return nil, err
	}

	files := []SourceFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !shapeExts[ext] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, SourceFile{
			Name:     entry.Name(),
			Key:      strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Size:     formatSize(info.Size()),
			FileType: "GeoJSON",
		})
	}
	return files, nil
}

// Shape returns the feature collection stored under key.
func (s *ShapeService) Shape(key string) (*geojson.FeatureCollection, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.Key == key {
			return s.load(f.Name)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrShapeNotFound, key)
}

// Shapes returns every shape file keyed by stem. Files that fail to parse are
// left out and reported in the joined error.
func (s *ShapeService) Shapes() (map[string]*geojson.FeatureCollection, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*geojson.FeatureCollection, len(files))
	var errs []error
	for _, f := range files {
		fc, err := s.load(f.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[f.Key] = fc
	}
	return out, errors.Join(errs...)
}

func (s *ShapeService) load(name string) (*geojson.FeatureCollection, error) {
	path := filepath.Join(s.sourcesDir, name)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	c, ok := s.cache[name]
	s.mu.Unlock()
	if ok && c.modTime.Equal(info.ModTime()) {
		return c.fc, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	s.mu.Lock()
	s.cache[name] = cachedShape{modTime: info.ModTime(), fc: fc}
	s.mu.Unlock()
	return fc, nil
}

// Save validates data as a GeoJSON feature collection and writes it to the
// sources directory under name.
func (s *ShapeService) Save(name string, data []byte) (SourceFile, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return SourceFile{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !shapeExts[ext] {
		return SourceFile{}, fmt.Errorf("%w: only .geojson or .json files are allowed", ErrInvalidName)
	}
	if _, err := geojson.UnmarshalFeatureCollection(data); err != nil {
		return SourceFile{}, fmt.Errorf("parse %s: %w", name, err)
	}
	if err := os.MkdirAll(s.sourcesDir, 0755); err != nil {
		return SourceFile{}, err
	}
	if err := os.WriteFile(filepath.Join(s.sourcesDir, name), data, 0644); err != nil {
		return SourceFile{}, err
	}
	return SourceFile{
		Name:     name,
		Key:      strings.TrimSuffix(name, filepath.Ext(name)),
		Size:     formatSize(int64(len(data))),
		FileType: "GeoJSON",
	}, nil
}
