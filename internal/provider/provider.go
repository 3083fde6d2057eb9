// Package provider decouples what data a module needs from how it is fetched.
//
// Modules never talk to a transport. They hand a query object and a data
// source to the Registry, which routes it to the Provider registered for the
// source's identifier. Failures never cross this boundary as errors: a query
// that cannot be answered resolves to nil.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/joeblew999/plat-water/internal/query"
)

// Provider answers queries for one or more data-type identifiers.
type Provider interface {
	// Identifiers lists the data types this provider answers for.
	Identifiers() []string
	// Query resolves q against dataSource. It returns nil on any failure.
	Query(ctx context.Context, identifier, dataSource string, q query.Object) json.RawMessage
}

var ErrDuplicateIdentifier = errors.New("data provider identifier already registered")

// Registry maps data-type identifiers to providers.
type Registry struct {
	logger *slog.Logger

	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:    logger,
		providers: make(map[string]Provider),
	}
}

// Register adds p under every identifier it reports. Registration is all or
// nothing: if any identifier is taken, nothing is registered.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := p.Identifiers()
	for _, id := range ids {
		if _, exists := r.providers[id]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateIdentifier, id)
		}
	}
	for _, id := range ids {
		r.providers[id] = p
	}
	return nil
}

// Registered reports whether a provider answers for identifier.
func (r *Registry) Registered(identifier string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[identifier]
	return ok
}

// Identifiers returns all registered identifiers, sorted.
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.providers))
}

// Query routes q to the provider named by dataSource's identifier prefix.
// dataSource has the form "<identifier>:<locator>". Unroutable sources
// resolve to nil.
func (r *Registry) Query(ctx context.Context, dataSource string, q query.Object) json.RawMessage {
	identifier, locator, ok := SplitSource(dataSource)
	if !ok {
		r.logger.Warn("data source has no provider identifier", "data_source", dataSource, "query", q.String())
		return nil
	}

	r.mu.RLock()
	p, ok := r.providers[identifier]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("no data provider registered", "identifier", identifier, "query", q.String())
		return nil
	}
	return p.Query(ctx, identifier, locator, q)
}

// SplitSource splits "<identifier>:<locator>" at the first colon. A bare URL
// such as "http://host/data" has no identifier and does not split.
func SplitSource(dataSource string) (identifier, locator string, ok bool) {
	identifier, locator, ok = strings.Cut(dataSource, ":")
	if !ok || identifier == "" || strings.HasPrefix(locator, "//") {
		return "", "", false
	}
	return identifier, locator, true
}
