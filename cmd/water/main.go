package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-water/internal/observability"
	"github.com/joeblew999/plat-water/internal/server"
)

// Options defines all CLI flags and env vars for the water server.
// Flags: --host, --port, --data-dir, --web-dir, --descriptor, --log-level,
// --log-format, --query-timeout
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, ...
type Options struct {
	Host         string `doc:"Host to bind to" default:"0.0.0.0"`
	Port         int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir      string `doc:"Directory for shape files and the scalar database" default:".data"`
	WebDir       string `doc:"Path to web/ directory" default:"web"`
	Descriptor   string `doc:"Host descriptor (YAML or JSON); empty serves one basin layer from the built-in data service"`
	LogLevel     string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat    string `doc:"Log format: text or json" default:"text"`
	QueryTimeout int    `doc:"Data provider query timeout in seconds" default:"30"`
}

func newServer(opts *Options, metrics *observability.Metrics) (*server.Server, *slog.Logger, error) {
	logger := observability.NewLogger(opts.LogLevel, opts.LogFormat)
	slog.SetDefault(logger)
	srv, err := server.New(server.Config{
		Host:         opts.Host,
		Port:         fmt.Sprintf("%d", opts.Port),
		DataDir:      opts.DataDir,
		WebDir:       opts.WebDir,
		Descriptor:   opts.Descriptor,
		QueryTimeout: time.Duration(opts.QueryTimeout) * time.Second,
		Logger:       logger,
		Metrics:      metrics,
	})
	return srv, logger, err
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var httpServer *http.Server

		hooks.OnStart(func() {
			srv, logger, err := newServer(opts, observability.NewMetrics())
			if err != nil {
				fail("Server error: %v", err)
			}
			defer srv.Close()

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-water server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Viewer:  %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				fail("Listen error: %v", err)
			}
			// modules load from this server's own data routes, so activate
			// once the listener is up
			go srv.Activate(context.Background())

			// SIGHUP re-reads the viewer fragments
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			go func() {
				for range hup {
					if err := srv.ReloadTemplates(); err != nil {
						logger.Error("template reload failed", "error", err)
					}
				}
			}()

			httpServer = &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}
			if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
				logger.Error("server stopped", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if httpServer == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(ctx)
		})
	})

	cli.Root().Use = "water"
	cli.Root().Short = "Prairie water visualization host"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, _, err := newServer(opts, nil)
			if err != nil {
				fail("Error creating server: %v", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fail("Error marshaling spec: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// import subcommand: load scalar CSVs into DuckDB and copy shape files
	importCmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import scalar series (.csv: class_id,year,day,average) and shapes (.geojson, .json)",
		Args:  cobra.MinimumNArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, logger, err := newServer(opts, nil)
			if err != nil {
				fail("Error creating server: %v", err)
			}
			defer srv.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			for _, path := range args {
				switch strings.ToLower(filepath.Ext(path)) {
				case ".csv":
					if srv.Scalars() == nil {
						fail("Scalar store unavailable in %s", opts.DataDir)
					}
					n, err := srv.Scalars().ImportCSV(ctx, path)
					if err != nil {
						fail("Error importing %s: %v", path, err)
					}
					logger.Info("scalar series imported", "file", path, "rows", n)
				case ".geojson", ".json":
					data, err := os.ReadFile(path)
					if err != nil {
						fail("Error reading %s: %v", path, err)
					}
					f, err := srv.Shapes().Save(filepath.Base(path), data)
					if err != nil {
						fail("Error importing %s: %v", path, err)
					}
					logger.Info("shape imported", "file", path, "key", f.Key, "size", f.Size)
				default:
					fail("Unsupported file type: %s", path)
				}
			}
		}),
	}
	cli.Root().AddCommand(importCmd)

	cli.Run()
}
