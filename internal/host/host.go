// Package host wires modules to the shared services they rely on: the
// shared-state store, the data provider registry and the loading tracker.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/plat-water/internal/config"
	"github.com/joeblew999/plat-water/internal/layer"
	"github.com/joeblew999/plat-water/internal/loading"
	"github.com/joeblew999/plat-water/internal/observability"
	"github.com/joeblew999/plat-water/internal/provider"
	"github.com/joeblew999/plat-water/internal/state"
)

var (
	ErrUnknownLayer   = errors.New("unknown layer")
	ErrDuplicateLayer = errors.New("layer already exists")
)

// Module is one feature-layer instance owned by the host.
type Module struct {
	ID         uuid.UUID
	Descriptor config.Layer
	Engine     *layer.Engine
}

// Name is the layer name the module is addressed by.
func (m *Module) Name() string { return m.Descriptor.Name }

// Host owns the modules and the services they share.
type Host struct {
	namespace string
	logger    *slog.Logger
	metrics   *observability.Metrics
	store     *state.Store
	registry  *provider.Registry
	tracker   *loading.Tracker

	mu        sync.RWMutex
	modules   map[string]*Module
	order     []string
	mapLayers []*layer.MapLayer
	activated bool
}

// Options configures a Host. Zero values are usable.
type Options struct {
	Namespace string
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Tracker   *loading.Tracker
}

// New creates a host with no modules.
func New(opts Options) *Host {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = loading.NewTracker(loading.WithMetrics(opts.Metrics))
	}
	ns := opts.Namespace
	if ns == "" {
		ns = state.Namespace
	}
	return &Host{
		namespace: ns,
		logger:    logger,
		metrics:   opts.Metrics,
		store:     state.NewStore(opts.Metrics),
		registry:  provider.NewRegistry(logger),
		tracker:   tracker,
		modules:   make(map[string]*Module),
	}
}

func (h *Host) Store() *state.Store          { return h.store }
func (h *Host) Registry() *provider.Registry { return h.registry }
func (h *Host) Tracker() *loading.Tracker    { return h.tracker }
func (h *Host) Namespace() string            { return h.namespace }

// RegisterProvider makes p answer queries for its identifiers.
func (h *Host) RegisterProvider(p provider.Provider) error {
	if err := h.registry.Register(p); err != nil {
		return err
	}
	h.logger.Info("data provider registered", "identifiers", p.Identifiers())
	return nil
}

// Delegates builds the capability set handed to the module called name.
func (h *Host) Delegates(name string) layer.Delegates {
	logger := h.logger.With("module", name)
	return layer.Delegates{
		NotifyLoading: h.tracker.Notifier(),
		AddMapLayer: func(l *layer.MapLayer, layerName string, typ layer.LayerType, active bool) {
			h.mu.Lock()
			h.mapLayers = append(h.mapLayers, l)
			h.mu.Unlock()
			logger.Debug("map layer added", "layer", layerName, "type", typ, "active", active)
		},
		SharedStates:                  h.store.Snapshot,
		UpdateSharedStates:            h.store.Write,
		CheckIfDataProviderRegistered: h.registry.Registered,
		QueryData:                     h.registry.Query,
	}
}

// AddLayer creates a module from a descriptor entry. The module stays idle
// until Activate; after the host has been activated it is activated at once.
func (h *Host) AddLayer(ctx context.Context, desc config.Layer) (*Module, error) {
	h.mu.Lock()
	if _, ok := h.modules[desc.Name]; ok {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrDuplicateLayer, desc.Name)
	}
	m := &Module{
		ID:         uuid.New(),
		Descriptor: desc,
		Engine: layer.New(desc.EngineConfig(h.namespace), h.Delegates(desc.Name),
			layer.WithLogger(h.logger), layer.WithMetrics(h.metrics)),
	}
	h.modules[desc.Name] = m
	h.order = append(h.order, desc.Name)
	activated := h.activated
	h.mu.Unlock()

	h.logger.Info("layer module created", "layer", desc.Name, "id", m.ID, "data_source", desc.DataSource)
	if activated {
		h.activate(ctx, m)
	}
	return m, nil
}

// Activate runs every module's first-load hook concurrently and applies the
// descriptor's initial filters. Only the first call has any effect.
func (h *Host) Activate(ctx context.Context) {
	h.mu.Lock()
	if h.activated {
		h.mu.Unlock()
		return
	}
	h.activated = true
	mods := h.modulesLocked()
	h.mu.Unlock()

	var g errgroup.Group
	for _, m := range mods {
		g.Go(func() error {
			h.activate(ctx, m)
			return nil
		})
	}
	_ = g.Wait()
}

func (h *Host) activate(ctx context.Context, m *Module) {
	m.Engine.Activate(ctx)
	if f := m.Descriptor.InitialFilter(); len(f) > 0 {
		m.Engine.SetClassFilter(ctx, f)
	}
}

// Module returns the module called name.
func (h *Host) Module(name string) (*Module, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.modules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
	}
	return m, nil
}

// Modules lists modules in creation order.
func (h *Host) Modules() []*Module {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.modulesLocked()
}

func (h *Host) modulesLocked() []*Module {
	out := make([]*Module, 0, len(h.order))
	for _, name := range h.order {
		out = append(out, h.modules[name])
	}
	return out
}

// MapLayers lists the map layers modules have handed to the host.
func (h *Host) MapLayers() []*layer.MapLayer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.mapLayers)
}

// Close tears down every module.
func (h *Host) Close() {
	for _, m := range h.Modules() {
		m.Engine.Close()
	}
}

// FromDescriptor creates a host with one module per descriptor layer.
func FromDescriptor(ctx context.Context, d config.Descriptor, opts Options) (*Host, error) {
	if opts.Namespace == "" {
		opts.Namespace = d.Namespace
	}
	h := New(opts)
	for _, l := range d.Layers {
		if _, err := h.AddLayer(ctx, l); err != nil {
			return nil, err
		}
	}
	return h, nil
}
