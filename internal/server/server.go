package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joeblew999/plat-water/internal/api"
	"github.com/joeblew999/plat-water/internal/api/viewer"
	"github.com/joeblew999/plat-water/internal/config"
	"github.com/joeblew999/plat-water/internal/db"
	"github.com/joeblew999/plat-water/internal/host"
	"github.com/joeblew999/plat-water/internal/humastar"
	"github.com/joeblew999/plat-water/internal/observability"
	"github.com/joeblew999/plat-water/internal/provider"
	"github.com/joeblew999/plat-water/internal/service"
	"github.com/joeblew999/plat-water/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host         string
	Port         string
	DataDir      string
	WebDir       string // Path to web/ directory for static files and page templates
	Descriptor   string // Host descriptor path; empty uses the built-in default
	BaseURL      string // URL the built-in data provider is reached at; derived from Host/Port when empty
	QueryTimeout time.Duration
	Logger       *slog.Logger
	Metrics      *observability.Metrics
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	h := c.Host
	if h == "" || h == "0.0.0.0" {
		h = "localhost"
	}
	return fmt.Sprintf("http://%s:%s", h, c.Port)
}

// Server is the water visualization HTTP server.
type Server struct {
	config   Config
	logger   *slog.Logger
	mux      *http.ServeMux
	humaAPI  huma.API
	links    *humastar.Links
	host     *host.Host
	shapes   *service.ShapeService
	scalars  *db.ScalarStore
	renderer *templates.Renderer
	frags    string
}

// New creates a server: it opens the scalar store, builds the host from the
// descriptor and registers the prairie-water provider. Modules are not
// activated until Activate.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	desc, err := config.Load(cfg.Descriptor, cfg.baseURL())
	if err != nil {
		return nil, err
	}

	h, err := host.FromDescriptor(context.Background(), desc, host.Options{
		Logger:  logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	prairie := provider.NewPrairie(provider.PrairieConfig{
		Timeout: cfg.QueryTimeout,
		Notify:  h.Tracker().Notifier(),
		Logger:  logger,
		Metrics: cfg.Metrics,
	})
	if err := h.RegisterProvider(prairie); err != nil {
		return nil, err
	}

	s := &Server{
		config: cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		links:  humastar.NewLinks(),
		host:   h,
		shapes: service.NewShapeService(cfg.DataDir),
	}

	if store, err := db.Open(db.Config{DataDir: cfg.DataDir, DBName: "water"}); err != nil {
		logger.Warn("scalar store unavailable", "error", err)
	} else {
		s.scalars = store
	}

	if cfg.WebDir != "" {
		s.frags = filepath.Join(cfg.WebDir, "templates", "fragments")
	}
	s.renderer, err = templates.New(s.frags)
	if err != nil {
		return nil, fmt.Errorf("load fragment templates: %w", err)
	}

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-water API", api.Version)
	humaConfig.Info.Description = "Prairie water visualization host: feature layers, shared state and the prairie-water data service."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.baseURL(), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, s.links.Transformer())
	s.humaAPI = humago.New(s.mux, humaConfig)

	s.routes()
	return s, nil
}

// Host returns the module host.
func (s *Server) Host() *host.Host {
	return s.host
}

// Scalars returns the scalar store, or nil when it could not be opened.
func (s *Server) Scalars() *db.ScalarStore {
	return s.scalars
}

// Shapes returns the shape file service.
func (s *Server) Shapes() *service.ShapeService {
	return s.shapes
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Activate runs every module's first-load hook. Call it once the server is
// reachable at its base URL, since the default descriptor points the modules
// back at this server's data routes.
func (s *Server) Activate(ctx context.Context) {
	start := time.Now()
	s.host.Activate(ctx)
	s.logger.Info("modules activated", "layers", len(s.host.Modules()), "elapsed", time.Since(start))
}

// ReloadTemplates re-reads the viewer fragments from the web directory.
func (s *Server) ReloadTemplates() error {
	if err := s.renderer.Reload(s.frags); err != nil {
		return fmt.Errorf("reload fragment templates: %w", err)
	}
	s.logger.Info("fragment templates reloaded", "dir", s.frags)
	return nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close closes server resources.
func (s *Server) Close() error {
	s.host.Close()
	if s.scalars != nil {
		return s.scalars.Close()
	}
	return nil
}

func (s *Server) routes() {
	svc := &api.Services{
		Host:    s.host,
		Shapes:  s.shapes,
		DataDir: s.config.DataDir,
	}
	if s.scalars != nil {
		svc.Scalars = s.scalars
	}

	// Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, svc)

	// Viewer SSE routes using Huma + Datastar SDK
	v := viewer.NewHandler(s.host, s.renderer)
	v.Logger = s.logger
	v.RegisterRoutes(s.humaAPI)

	s.links.Build(s.humaAPI, "viewer")

	s.mux.Handle("/metrics", promhttp.Handler())

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	s.mux.HandleFunc("/viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.For("/health") {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-water",
		"status":  "running",
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	templatePath := filepath.Join(s.config.WebDir, "templates", "viewer.html")
	if _, err := os.Stat(templatePath); err != nil {
		http.Error(w, "viewer page not installed; set --web-dir", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, templatePath)
}
