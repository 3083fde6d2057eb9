package api

import (
	"github.com/danielgtaylor/huma/v2"
)

// RegisterRoutes registers every REST handler.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
	NewInfoHandler(svc).RegisterRoutes(api)
	NewDataHandler(svc).RegisterRoutes(api)
}
