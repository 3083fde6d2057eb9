// Package layer is the feature-layer engine: one geographic feature
// collection, a per-class visibility filter, a time index and a cache of
// per-class scalar series.
//
// The engine fetches shapes once on activation. Every filter change fetches
// the scalar series of classes it has never seen, then re-renders the
// features whose class is visible. Every time change restyles what is
// already rendered without fetching. A class is fetched at most once per
// engine; a failed fetch is remembered as "no data" and never retried.
package layer

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/joeblew999/plat-water/internal/loading"
	"github.com/joeblew999/plat-water/internal/observability"
	"github.com/joeblew999/plat-water/internal/provider"
	"github.com/joeblew999/plat-water/internal/query"
	"github.com/joeblew999/plat-water/internal/scalar"
	"github.com/joeblew999/plat-water/internal/state"
)

var ErrFeatureNotFound = errors.New("feature not rendered")

// Config is what the host assigns to the module before activation.
type Config struct {
	Name          string
	Type          LayerType
	Active        bool
	DataSource    string
	ShapeKey      string
	ClassProperty string // property holding the class id, dotted paths allowed
	IDProperty    string // property holding the feature id
	Namespace     string // shared-state namespace for published keys
	Identifier    string // data provider identifier the module expects
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "GeoJSON"
	}
	if c.Type == "" {
		c.Type = Overlay
	}
	if c.ClassProperty == "" {
		c.ClassProperty = "LCClassNum"
	}
	if c.IDProperty == "" {
		c.IDProperty = "HYBAS_ID"
	}
	if c.Namespace == "" {
		c.Namespace = state.Namespace
	}
	if c.Identifier == "" {
		c.Identifier = provider.PrairieIdentifier
	}
	return c
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records cache lookups and renders.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine is one feature-layer module instance.
type Engine struct {
	cfg     Config
	d       Delegates
	logger  *slog.Logger
	metrics *observability.Metrics

	fetches singleflight.Group

	mu         sync.Mutex
	activated  bool
	closed     bool
	phase      Phase
	features   []*Feature
	scalars    map[string]*scalar.Record // present key = fetched; nil value = no data
	filter     Filter
	time       TimeIndex
	rendered   []RenderedFeature
	generation uint64 // bumped by every filter change
	pending    int    // filter cycles still waiting on fetches
	renderSeq  uint64
	layer      *MapLayer
}

// New creates an engine in the Uninitialized phase.
func New(cfg Config, d Delegates, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:     cfg,
		d:       d,
		logger:  slog.Default(),
		scalars: make(map[string]*scalar.Record),
		filter:  Filter{},
		time:    DefaultTime(),
		layer:   NewMapLayer(cfg.Name, cfg.Type, cfg.Active),
	}
	for _, o := range opts {
		o(e)
	}
	e.logger = e.logger.With("layer", cfg.Name)
	return e
}

// Header is the title the host shows for the module.
func (e *Engine) Header() string {
	return "GeoJSON Layer - " + e.cfg.Name
}

// Config returns the engine configuration with defaults applied.
func (e *Engine) Config() Config {
	return e.cfg
}

// Layer returns the engine's render target.
func (e *Engine) Layer() *MapLayer {
	return e.layer
}

// Activate is the host's first-load hook: it hands the map layer to the host
// and loads the shapes. Later calls do nothing.
func (e *Engine) Activate(ctx context.Context) {
	e.mu.Lock()
	if e.activated || e.closed {
		e.mu.Unlock()
		return
	}
	e.activated = true
	e.mu.Unlock()

	e.d.addMapLayer(e.layer, e.cfg.Name, e.cfg.Type, e.cfg.Active)
	e.LoadShape(ctx)
}

// LoadShape fetches the feature collection. A missing or undecodable payload
// leaves the engine with zero features; filter and time controls keep working.
func (e *Engine) LoadShape(ctx context.Context) {
	end := loading.Begin(e.d.NotifyLoading)
	defer end()

	raw := e.d.queryData(context.WithoutCancel(ctx), e.cfg.DataSource, query.Shape(e.cfg.ShapeKey))
	features, err := decodeShapes(raw, e.cfg.ClassProperty, e.cfg.IDProperty)
	if err != nil {
		e.logger.Warn("shape data unusable", "error", err)
		features = nil
	}
	if raw == nil {
		e.logger.Warn("shape data unavailable", "data_source", e.cfg.DataSource, "key", e.cfg.ShapeKey)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.features = features
	if e.phase == Uninitialized {
		e.phase = ShapeLoaded
	}
	seq, rendered := e.renderLocked()
	e.mu.Unlock()

	e.logger.Info("shape loaded", "features", len(features))
	e.layer.set(seq, rendered)
}

// SetClassFilter replaces the class filter and runs a filter cycle. It
// returns once the scalar data the new filter needs is cached and, unless a
// newer filter arrived meanwhile, the layer has been re-rendered.
func (e *Engine) SetClassFilter(ctx context.Context, f Filter) {
	e.applyFilter(ctx, func(Filter) Filter { return f.Clone() })
}

// SetClass toggles one class on top of the current filter.
func (e *Engine) SetClass(ctx context.Context, classID string, on bool) {
	e.applyFilter(ctx, func(cur Filter) Filter { return cur.With(classID, on) })
}

func (e *Engine) applyFilter(ctx context.Context, next func(Filter) Filter) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.filter = next(e.filter)
	e.generation++
	gen := e.generation
	e.pending++
	e.phase = Filtering

	var missing []string
	for _, id := range e.filter.EnabledIDs() {
		if _, ok := e.scalars[id]; ok {
			e.metrics.CacheLookup("hit")
			continue
		}
		missing = append(missing, id)
	}
	e.mu.Unlock()

	end := loading.Begin(e.d.NotifyLoading)
	defer end()

	e.fetchScalars(context.WithoutCancel(ctx), missing)

	e.mu.Lock()
	e.pending--
	if e.closed {
		e.mu.Unlock()
		return
	}
	var (
		seq      uint64
		rendered []RenderedFeature
		render   = gen == e.generation
	)
	if render {
		seq, rendered = e.renderLocked()
	}
	if e.pending == 0 {
		e.phase = Styled
	}
	e.mu.Unlock()

	if render {
		e.layer.set(seq, rendered)
	}
}

// fetchScalars loads the given classes concurrently. Each class goes through
// a singleflight group so overlapping cycles share one request.
func (e *Engine) fetchScalars(ctx context.Context, ids []string) {
	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			e.fetchScalar(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) fetchScalar(ctx context.Context, id string) {
	e.fetches.Do(id, func() (any, error) {
		e.mu.Lock()
		_, cached := e.scalars[id]
		e.mu.Unlock()
		if cached {
			return nil, nil
		}

		e.metrics.CacheLookup("miss")
		raw := e.d.queryData(ctx, e.cfg.DataSource, query.Scalar(id))
		rec, err := scalar.Decode(raw)
		if err != nil {
			e.logger.Warn("scalar data unusable", "class", id, "error", err)
			rec = nil
		}
		if rec == nil {
			e.metrics.CacheLookup("negative")
			e.logger.Info("no scalar data for class", "class", id)
		}

		e.mu.Lock()
		if _, ok := e.scalars[id]; !ok {
			e.scalars[id] = rec
		}
		e.mu.Unlock()
		return nil, nil
	})
}

// SetTime moves the time index and restyles the rendered features. It never
// fetches.
func (e *Engine) SetTime(t TimeIndex) error {
	if err := t.Validate(); err != nil {
		return err
	}
	end := loading.Begin(e.d.NotifyLoading)
	defer end()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.time = t
	e.restyleLocked()
	e.renderSeq++
	seq, rendered := e.renderSeq, slices.Clone(e.rendered)
	e.mu.Unlock()

	e.layer.set(seq, rendered)
	return nil
}

// renderLocked recomputes the rendered set from cached shapes, the current
// filter and cached scalars, then styles it. Callers hold e.mu and must pass
// the result to e.layer.set after unlocking.
func (e *Engine) renderLocked() (uint64, []RenderedFeature) {
	out := make([]RenderedFeature, 0, len(e.features))
	for _, f := range e.features {
		if f.ClassNum == "" || !e.filter.Enabled(f.ClassNum) {
			continue
		}
		rf := RenderedFeature{Feature: *f}
		rf.Scalar = e.scalars[f.ClassNum]
		out = append(out, rf)
	}
	e.rendered = out
	e.restyleLocked()
	e.renderSeq++
	e.metrics.Rendered(e.cfg.Name)
	return e.renderSeq, slices.Clone(e.rendered)
}

func (e *Engine) restyleLocked() {
	for i := range e.rendered {
		e.rendered[i].Style = StyleAt(e.rendered[i].Feature, e.time)
	}
}

// Select publishes a rendered feature as the current selection. The write
// carries the whole shared-state snapshot plus the selection, so other keys
// pass through unchanged.
func (e *Engine) Select(featureID string) error {
	e.mu.Lock()
	var (
		sel   Selection
		found bool
	)
	for _, rf := range e.rendered {
		if rf.ID == featureID {
			sel, found = rf.selection(e.cfg.Name), true
			break
		}
	}
	e.mu.Unlock()
	if !found {
		return ErrFeatureNotFound
	}

	patch := e.d.sharedStates().Clone()
	patch[state.Key(e.cfg.Namespace, state.SelectedFeature)] = sel
	e.d.updateSharedStates(patch)
	return nil
}

// Close tears the engine down. Fetches still in flight complete into a cache
// nobody reads.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.renderSeq++
	seq := e.renderSeq
	e.mu.Unlock()

	e.layer.clear(seq)
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Filter returns a copy of the current class filter.
func (e *Engine) Filter() Filter {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filter.Clone()
}

// Time returns the current time index.
func (e *Engine) Time() TimeIndex {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.time
}

// Rendered returns the features currently on the map.
func (e *Engine) Rendered() []RenderedFeature {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.rendered)
}

// Classes lists the distinct class ids found in the shape data.
func (e *Engine) Classes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	seen := make(map[string]struct{})
	for _, f := range e.features {
		if f.ClassNum != "" {
			seen[f.ClassNum] = struct{}{}
		}
	}
	return sortClassIDs(slices.Collect(maps.Keys(seen)))
}

// Info summarises the engine for the host's info panel.
type Info struct {
	Name               string    `json:"name"`
	Type               LayerType `json:"type"`
	Active             bool      `json:"active"`
	DataSource         string    `json:"dataSource"`
	ShapeKey           string    `json:"shapeDataAccessKey"`
	ProviderRegistered bool      `json:"providerRegistered"`
	Phase              string    `json:"phase"`
	Features           int       `json:"features"`
	Rendered           int       `json:"rendered"`
	Filter             Filter    `json:"filter"`
	Time               TimeIndex `json:"time"`
	CachedClasses      []string  `json:"cachedClasses"`
}

// Info returns a snapshot of the engine state.
func (e *Engine) Info() Info {
	registered := e.d.providerRegistered(e.cfg.Identifier)

	e.mu.Lock()
	defer e.mu.Unlock()
	return Info{
		Name:               e.cfg.Name,
		Type:               e.cfg.Type,
		Active:             e.cfg.Active,
		DataSource:         e.cfg.DataSource,
		ShapeKey:           e.cfg.ShapeKey,
		ProviderRegistered: registered,
		Phase:              e.phase.String(),
		Features:           len(e.features),
		Rendered:           len(e.rendered),
		Filter:             e.filter.Clone(),
		Time:               e.time,
		CachedClasses:      sortClassIDs(slices.Collect(maps.Keys(e.scalars))),
	}
}
