package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	svc *Services
}

func NewInfoHandler(svc *Services) *InfoHandler {
	return &InfoHandler{svc: svc}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name      string   `json:"name" doc:"Service name"`
	Version   string   `json:"version" doc:"Service version"`
	DataDir   string   `json:"data_dir" doc:"Data directory path"`
	DB        bool     `json:"db" doc:"Whether the scalar store is available"`
	Tables    []string `json:"tables" doc:"Tables in the scalar store"`
	Namespace string   `json:"namespace" doc:"Shared-state namespace"`
	Providers []string `json:"providers" doc:"Registered data provider identifiers"`
	Layers    []string `json:"layers" doc:"Layer module names"`
	InFlight  int      `json:"in_flight" doc:"Loading operations in flight"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	hst := h.svc.Host
	names := []string{}
	for _, m := range hst.Modules() {
		names = append(names, m.Name())
	}
	tables := []string{}
	if h.svc.Scalars != nil {
		if t, err := h.svc.Scalars.Tables(ctx); err == nil && t != nil {
			tables = t
		}
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:      "plat-water",
		Version:   Version,
		DataDir:   h.svc.DataDir,
		DB:        h.svc.Scalars != nil,
		Tables:    tables,
		Namespace: hst.Namespace(),
		Providers: hst.Registry().Identifiers(),
		Layers:    names,
		InFlight:  hst.Tracker().InFlight(),
	}}, nil
}
