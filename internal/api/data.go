package api

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-water/internal/db"
	"github.com/joeblew999/plat-water/internal/scalar"
)

// ScalarSource looks up the scalar series of a class.
type ScalarSource interface {
	Record(ctx context.Context, classID string) (*scalar.Record, error)
	Classes(ctx context.Context) ([]string, error)
	Tables(ctx context.Context) ([]string, error)
}

// DataHandler serves the prairie-water data protocol: the shape object at
// the locator root and one scalar record per class below it.
type DataHandler struct {
	svc *Services
}

func NewDataHandler(svc *Services) *DataHandler {
	return &DataHandler{svc: svc}
}

func (h *DataHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/data", h.GetShapes, huma.OperationTags("data"))
	huma.Get(api, "/data/scaler/map/{classId}", h.GetScalar, huma.OperationTags("data"))
	huma.Get(api, "/api/v1/data/classes", h.GetClasses, huma.OperationTags("data"))
}

// DataClass is a class that has scalar samples.
type DataClass struct {
	ID   string `json:"id" doc:"Class identifier" example:"1"`
	Name string `json:"name,omitempty" doc:"Display name from the descriptor"`
}

type RawOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func jsonOutput(v any) (*RawOutput, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, huma.Error500InternalServerError("encode response", err)
	}
	return &RawOutput{ContentType: "application/json", Body: b}, nil
}

// GetShapes returns every shape file keyed by access key. Unparseable files
// are left out.
func (h *DataHandler) GetShapes(ctx context.Context, input *struct{}) (*RawOutput, error) {
	shapes := map[string]*geojson.FeatureCollection{}
	if h.svc.Shapes != nil {
		all, err := h.svc.Shapes.Shapes()
		if all == nil && err != nil {
			return nil, huma.Error500InternalServerError("read shapes", err)
		}
		if all != nil {
			shapes = all
		}
	}
	return jsonOutput(shapes)
}

func (h *DataHandler) GetScalar(ctx context.Context, input *struct {
	ClassID string `path:"classId" doc:"Class identifier" example:"1"`
}) (*RawOutput, error) {
	if h.svc.Scalars == nil {
		return nil, huma.Error503ServiceUnavailable("scalar store not available")
	}
	rec, err := h.svc.Scalars.Record(ctx, input.ClassID)
	if errors.Is(err, db.ErrUnknownClass) {
		return nil, huma.Error404NotFound(err.Error())
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("read scalar", err)
	}
	return jsonOutput(rec)
}

// GetClasses lists the classes with scalar data, named from the layer
// descriptors where one gives a name.
func (h *DataHandler) GetClasses(ctx context.Context, input *struct{}) (*struct{ Body []DataClass }, error) {
	if h.svc.Scalars == nil {
		return nil, huma.Error503ServiceUnavailable("scalar store not available")
	}
	ids, err := h.svc.Scalars.Classes(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("list classes", err)
	}
	names := map[string]string{}
	if h.svc.Host != nil {
		for _, m := range h.svc.Host.Modules() {
			for id, name := range m.Descriptor.Classes {
				if _, ok := names[id]; !ok {
					names[id] = name
				}
			}
		}
	}
	out := make([]DataClass, 0, len(ids))
	for _, id := range ids {
		out = append(out, DataClass{ID: id, Name: names[id]})
	}
	return &struct{ Body []DataClass }{Body: out}, nil
}
