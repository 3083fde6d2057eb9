// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-water/internal/host"
	"github.com/joeblew999/plat-water/internal/layer"
	"github.com/joeblew999/plat-water/internal/present"
	"github.com/joeblew999/plat-water/internal/service"
	"github.com/joeblew999/plat-water/internal/state"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the service dependencies for API handlers.
type Services struct {
	Host    *host.Host
	Shapes  *service.ShapeService
	Scalars ScalarSource
	DataDir string
}

// Types

type NameInput struct {
	Name string `path:"name" doc:"Layer name" example:"Basins"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
	Busy    bool   `json:"busy" doc:"Whether any module is loading"`
}

// Class is one entry of a layer's class list.
type Class struct {
	ID      string `json:"id" doc:"Class identifier" example:"1"`
	Name    string `json:"name,omitempty" doc:"Display name from the descriptor"`
	Enabled bool   `json:"enabled" doc:"Whether the class is visible"`
}

// LayerBody describes one feature-layer module.
type LayerBody struct {
	ID     string `json:"id" doc:"Module instance id"`
	Header string `json:"header" doc:"Module header"`
	layer.Info
	Classes []Class `json:"classes" doc:"Classes found in the shape data plus any named by the filter"`
}

type FilterBody struct {
	Classes map[string]bool `json:"classes" doc:"Class id to visibility; missing classes are hidden"`
}

type SelectBody struct {
	FeatureID string `json:"featureId" minLength:"1" doc:"Rendered feature id" example:"7001"`
}

type MetadataBody struct {
	Rows []present.Row `json:"rows" doc:"Selected feature properties, empty when nothing is selected"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterLayers registers layer module routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{name}", h.GetLayer, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{name}/features", h.GetFeatures, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/layers/{name}/filter", h.PutFilter, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/layers/{name}/time", h.PutTime, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers/{name}/select", h.PostSelect, huma.OperationTags("layers"))
}

// RegisterStates registers shared-state routes.
func (h *APIHandler) RegisterStates(api huma.API) {
	huma.Get(api, "/api/v1/states", h.GetStates, huma.OperationTags("states"))
	huma.Patch(api, "/api/v1/states", h.PatchStates, huma.OperationTags("states"))
}

// RegisterPresent registers the read-only presentation routes.
func (h *APIHandler) RegisterPresent(api huma.API) {
	huma.Get(api, "/api/v1/present/chart", h.GetChart, huma.OperationTags("present"))
	huma.Get(api, "/api/v1/present/metadata", h.GetMetadata, huma.OperationTags("present"))
	huma.Get(api, "/api/v1/present/location", h.GetLocation, huma.OperationTags("present"))
}

// RegisterSources registers shape file listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{
		Status:  "ok",
		Version: Version,
		Busy:    h.svc.Host.Tracker().Busy(),
	}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*struct{ Body []LayerBody }, error) {
	mods := h.svc.Host.Modules()
	out := make([]LayerBody, 0, len(mods))
	for _, m := range mods {
		out = append(out, layerBody(m))
	}
	return &struct{ Body []LayerBody }{Body: out}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *NameInput) (*struct{ Body LayerBody }, error) {
	m, err := h.module(input.Name)
	if err != nil {
		return nil, err
	}
	return &struct{ Body LayerBody }{Body: layerBody(m)}, nil
}

type FeaturesOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func (h *APIHandler) GetFeatures(ctx context.Context, input *NameInput) (*FeaturesOutput, error) {
	m, err := h.module(input.Name)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(m.Engine.Layer().FeatureCollection())
	if err != nil {
		return nil, huma.Error500InternalServerError("encode features", err)
	}
	return &FeaturesOutput{ContentType: "application/geo+json", Body: b}, nil
}

func (h *APIHandler) PutFilter(ctx context.Context, input *struct {
	NameInput
	Body FilterBody
}) (*struct{ Body LayerBody }, error) {
	m, err := h.module(input.Name)
	if err != nil {
		return nil, err
	}
	m.Engine.SetClassFilter(ctx, layer.Filter(input.Body.Classes))
	return &struct{ Body LayerBody }{Body: layerBody(m)}, nil
}

func (h *APIHandler) PutTime(ctx context.Context, input *struct {
	NameInput
	Body layer.TimeIndex
}) (*struct{ Body LayerBody }, error) {
	m, err := h.module(input.Name)
	if err != nil {
		return nil, err
	}
	if err := m.Engine.SetTime(input.Body); err != nil {
		return nil, toHTTP(err)
	}
	return &struct{ Body LayerBody }{Body: layerBody(m)}, nil
}

func (h *APIHandler) PostSelect(ctx context.Context, input *struct {
	NameInput
	Body SelectBody
}) (*struct{ Body layer.Selection }, error) {
	m, err := h.module(input.Name)
	if err != nil {
		return nil, err
	}
	if err := m.Engine.Select(input.Body.FeatureID); err != nil {
		return nil, toHTTP(err)
	}
	v, _ := h.svc.Host.Store().Read(state.Key(h.svc.Host.Namespace(), state.SelectedFeature))
	sel, _ := v.(layer.Selection)
	return &struct{ Body layer.Selection }{Body: sel}, nil
}

func (h *APIHandler) GetStates(ctx context.Context, input *struct{}) (*struct{ Body map[string]any }, error) {
	return &struct{ Body map[string]any }{Body: h.svc.Host.Store().Snapshot()}, nil
}

func (h *APIHandler) PatchStates(ctx context.Context, input *struct {
	Body map[string]any
}) (*struct{ Body map[string]any }, error) {
	h.svc.Host.Store().Write(input.Body)
	return &struct{ Body map[string]any }{Body: h.svc.Host.Store().Snapshot()}, nil
}

func (h *APIHandler) GetChart(ctx context.Context, input *struct{}) (*struct{ Body present.ChartView }, error) {
	return &struct{ Body present.ChartView }{Body: present.Chart(h.svc.Host.Store().Snapshot(), h.svc.Host.Namespace())}, nil
}

func (h *APIHandler) GetMetadata(ctx context.Context, input *struct{}) (*struct{ Body MetadataBody }, error) {
	rows := present.Metadata(h.svc.Host.Store().Snapshot(), h.svc.Host.Namespace())
	if rows == nil {
		rows = []present.Row{}
	}
	return &struct{ Body MetadataBody }{Body: MetadataBody{Rows: rows}}, nil
}

func (h *APIHandler) GetLocation(ctx context.Context, input *struct{}) (*struct{ Body present.LocationSelection }, error) {
	return &struct{ Body present.LocationSelection }{Body: present.Location(h.svc.Host.Store().Snapshot())}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.svc.Shapes == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	sources, err := h.svc.Shapes.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("list sources", err)
	}
	if sources == nil {
		sources = []service.SourceFile{}
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}

// helpers

func (h *APIHandler) module(name string) (*host.Module, error) {
	m, err := h.svc.Host.Module(name)
	if err != nil {
		return nil, toHTTP(err)
	}
	return m, nil
}

func layerBody(m *host.Module) LayerBody {
	info := m.Engine.Info()
	seen := map[string]bool{}
	var classes []Class
	addClass := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		classes = append(classes, Class{ID: id, Name: m.Descriptor.Classes[id], Enabled: info.Filter.Enabled(id)})
	}
	for _, id := range m.Engine.Classes() {
		addClass(id)
	}
	for _, id := range info.Filter.ClassIDs() {
		addClass(id)
	}
	if classes == nil {
		classes = []Class{}
	}
	return LayerBody{
		ID:      m.ID.String(),
		Header:  m.Engine.Header(),
		Info:    info,
		Classes: classes,
	}
}

// toHTTP maps domain errors onto Huma status errors.
func toHTTP(err error) error {
	switch {
	case errors.Is(err, host.ErrUnknownLayer),
		errors.Is(err, layer.ErrFeatureNotFound),
		errors.Is(err, service.ErrShapeNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, layer.ErrTimeOutOfRange):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
