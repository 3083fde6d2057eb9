// Package templates renders the HTML fragments the viewer streams over SSE.
package templates

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"os"
	"path/filepath"
	"sync"
)

//go:embed fragments/*.html
var builtin embed.FS

// funcMap provides common template functions.
var funcMap = template.FuncMap{
	// dict creates a map from key-value pairs, useful for passing multiple values to nested templates
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}

// Renderer manages HTML fragment templates.
type Renderer struct {
	templates *template.Template
	mu        sync.RWMutex
}

// Default returns a renderer over the built-in fragments.
func Default() *Renderer {
	return &Renderer{templates: template.Must(parseBuiltin())}
}

// New creates a renderer over the built-in fragments, overridden by any
// *.html in fragmentsDir. A missing directory is not an error.
func New(fragmentsDir string) (*Renderer, error) {
	tmpl, err := parse(fragmentsDir)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

func parseBuiltin() (*template.Template, error) {
	return template.New("").Funcs(funcMap).ParseFS(builtin, "fragments/*.html")
}

func parse(fragmentsDir string) (*template.Template, error) {
	tmpl, err := parseBuiltin()
	if err != nil {
		return nil, err
	}
	if fragmentsDir == "" {
		return tmpl, nil
	}
	if _, err := os.Stat(fragmentsDir); os.IsNotExist(err) {
		return tmpl, nil
	}
	matches, err := filepath.Glob(filepath.Join(fragmentsDir, "*.html"))
	if err != nil || len(matches) == 0 {
		return tmpl, err
	}
	return tmpl.ParseFiles(matches...)
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.templates.ExecuteTemplate(buf, name, data)
}

// Reload re-reads the fragments (useful for dev hot-reload).
func (r *Renderer) Reload(fragmentsDir string) error {
	tmpl, err := parse(fragmentsDir)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	return nil
}
