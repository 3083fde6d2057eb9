// Package viewer contains the Datastar SSE handlers behind the viewer page:
// a live event stream of shared state and loading, and signal-driven actions
// on the layer modules.
package viewer

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-water/internal/host"
	"github.com/joeblew999/plat-water/internal/humastar"
	"github.com/joeblew999/plat-water/internal/layer"
	"github.com/joeblew999/plat-water/internal/present"
	"github.com/joeblew999/plat-water/internal/state"
	"github.com/joeblew999/plat-water/internal/templates"
)

// Element ids patched by the stream.
const (
	metadataSelector = "#metadata"
	chartSelector    = "#chart"
	locationSelector = "#location"
	layersSelector   = "#layer-list"
)

// Handler serves the viewer SSE routes.
type Handler struct {
	humastar.Handler
	host *host.Host
}

// NewHandler creates a viewer handler over h.
func NewHandler(h *host.Host, renderer *templates.Renderer) *Handler {
	return &Handler{
		Handler: humastar.Handler{Renderer: renderer},
		host:    h,
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/viewer/events", h.Events, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/filter", h.Filter, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/time", h.Time, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/select", h.Select, huma.OperationTags("viewer"))
}

// Events streams the presentation fragments, re-rendered on every shared
// state change, and the loading signal.
func (h *Handler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			changes := h.host.Store().Watch()
			defer h.host.Store().Unwatch(changes)

			busy := make(chan bool, 8)
			cancel := h.host.Tracker().OnChange(func(b bool) {
				select {
				case busy <- b:
				default:
				}
			})
			defer cancel()

			h.patchPresent(sse, h.host.Store().Snapshot())
			sse.Patch(h.layerList(), layersSelector)
			sse.Signals(map[string]any{"loading": h.host.Tracker().Busy()})

			for {
				select {
				case <-ctx.Done():
					return
				case c, ok := <-changes:
					if !ok {
						return
					}
					h.patchPresent(sse, c.Snapshot)
					sse.DispatchCustomEvent("shared-states-changed", map[string]any{"keys": c.Keys})
				case b := <-busy:
					sse.Signals(map[string]any{"loading": b})
					if !b {
						sse.Patch(h.layerList(), layersSelector)
					}
				}
			}
		},
	}, nil
}

func (h *Handler) patchPresent(sse humastar.SSE, snap state.Snapshot) {
	sse.Patch(h.Render("metadata-table", present.Metadata(snap, h.host.Namespace())), metadataSelector)
	sse.Patch(h.Render("chart-summary", present.Chart(snap, h.host.Namespace())), chartSelector)
	sse.Patch(h.Render("location", present.Location(snap)), locationSelector)
}

func (h *Handler) layerList() string {
	var infos []layer.Info
	for _, m := range h.host.Modules() {
		infos = append(infos, m.Engine.Info())
	}
	return h.Render("layer-list", infos)
}

// Filter applies a class filter change. Signals: layer plus either classes
// (id → bool, replaces the filter) or classid and enabled (toggles one).
func (h *Handler) Filter(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	m, err := h.module(signals)
	if err != nil {
		return nil, err
	}

	switch {
	case signals.Has("classes"):
		f := layer.Filter{}
		for id, v := range signals.Map("classes") {
			on, _ := v.(bool)
			f[id] = on
		}
		m.Engine.SetClassFilter(ctx, f)
	case signals.String("classid") != "":
		m.Engine.SetClass(ctx, signals.String("classid"), signals.Bool("enabled"))
	default:
		return nil, huma.Error400BadRequest("classes or classid is required")
	}

	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.layerList(), layersSelector)
		sse.DispatchCustomEvent("layer-changed", map[string]any{"layer": m.Name(), "action": "filtered"})
	}), nil
}

// Time moves the time index of one layer, or of every layer when no layer
// signal is sent.
func (h *Handler) Time(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	t := layer.TimeIndex{Year: signals.Int("year"), Day: signals.Int("day")}
	if err := t.Validate(); err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}

	mods := h.host.Modules()
	if signals.String("layer") != "" {
		m, err := h.module(signals)
		if err != nil {
			return nil, err
		}
		mods = []*host.Module{m}
	}
	for _, m := range mods {
		if err := m.Engine.SetTime(t); err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
	}

	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{"year": t.Year, "day": t.Day})
		sse.Patch(h.layerList(), layersSelector)
	}), nil
}

// Select publishes a rendered feature. Signals: layer, featureid.
func (h *Handler) Select(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	m, err := h.module(signals)
	if err != nil {
		return nil, err
	}
	id := signals.String("featureid")

	return h.Stream(func(sse humastar.SSE) {
		if err := m.Engine.Select(id); err != nil {
			if errors.Is(err, layer.ErrFeatureNotFound) {
				sse.Error(fmt.Sprintf("Feature %q is not on the map", id))
				return
			}
			sse.Error(err.Error())
			return
		}
		sse.Success(fmt.Sprintf("Selected %s", id))
	}), nil
}

func (h *Handler) module(signals humastar.Signals) (*host.Module, error) {
	name := signals.String("layer")
	if name == "" {
		return nil, huma.Error400BadRequest("layer is required")
	}
	m, err := h.host.Module(name)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return m, nil
}
