package layer

import (
	"slices"
	"sync"

	"github.com/paulmach/orb/geojson"
)

// MapLayer is the render target an engine hands to the host. The engine
// replaces its contents on every render; the host reads them to draw.
type MapLayer struct {
	name   string
	typ    LayerType
	active bool

	mu       sync.RWMutex
	features []RenderedFeature
	applied  uint64 // engine render sequence of the current contents
	version  uint64
	onUpdate func(*MapLayer)
}

// NewMapLayer creates an empty layer.
func NewMapLayer(name string, typ LayerType, active bool) *MapLayer {
	return &MapLayer{name: name, typ: typ, active: active}
}

func (l *MapLayer) Name() string    { return l.name }
func (l *MapLayer) Type() LayerType { return l.typ }
func (l *MapLayer) Active() bool    { return l.active }

// Version increases on every content change.
func (l *MapLayer) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Features returns the features currently drawn.
func (l *MapLayer) Features() []RenderedFeature {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.features)
}

// FeatureCollection renders the layer as GeoJSON. Each feature carries its
// class as "classNum" and, when styled, its override under "style".
func (l *MapLayer) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, rf := range l.Features() {
		fc.Append(rf.geoJSON())
	}
	return fc
}

// OnUpdate registers fn to run after every content change.
func (l *MapLayer) OnUpdate(fn func(*MapLayer)) {
	l.mu.Lock()
	l.onUpdate = fn
	l.mu.Unlock()
}

// set replaces the contents with the render numbered seq. Renders that arrive
// after a newer one has been applied are dropped.
func (l *MapLayer) set(seq uint64, fs []RenderedFeature) {
	l.mu.Lock()
	if seq < l.applied {
		l.mu.Unlock()
		return
	}
	l.applied = seq
	l.features = slices.Clone(fs)
	l.version++
	fn := l.onUpdate
	l.mu.Unlock()

	if fn != nil {
		fn(l)
	}
}

func (l *MapLayer) clear(seq uint64) {
	l.set(seq, nil)
}
