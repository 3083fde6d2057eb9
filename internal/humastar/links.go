package humastar

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// Links holds RFC 8288 Link headers derived from the registered operations,
// keyed by operation path.
type Links struct {
	mu sync.RWMutex
	m  map[string][]string
}

// NewLinks returns an empty link table. Call Build once every route is
// registered; until then the transformer adds self links only.
func NewLinks() *Links {
	return &Links{m: map[string][]string{}}
}

// Build walks the OpenAPI document and derives hypermedia links. Operations
// tagged skipTag (the SSE endpoints) are left out.
func (l *Links) Build(api huma.API, skipTag string) {
	oapi := api.OpenAPI()
	m := map[string][]string{}
	add := func(from, to, rel string) {
		val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
		if !slices.Contains(m[from], val) {
			m[from] = append(m[from], val)
		}
	}

	var collections, items []string
	for p, pi := range oapi.Paths {
		if slices.Contains(primaryTags(pi), skipTag) {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}
	slices.Sort(collections)
	slices.Sort(items)

	// item → nearest registered ancestor
	for _, item := range items {
		for parent := path.Dir(item); parent != "/" && parent != "."; parent = path.Dir(parent) {
			if _, ok := oapi.Paths[parent]; ok {
				add(item, parent, "collection")
				add(item, parent, "up")
				break
			}
		}
	}

	for _, coll := range collections {
		for _, item := range items {
			if path.Dir(item) == coll {
				add(coll, item, "item")
			}
		}
		if coll != "/health" {
			add(coll, "/health", "up")
		}
	}

	for _, item := range items {
		pi := oapi.Paths[item]
		if pi.Put != nil || pi.Patch != nil || pi.Post != nil {
			add(item, item, "edit")
		}
	}

	for _, coll := range collections {
		if coll == "/health" {
			continue
		}
		add("/health", coll, lastSegment(coll))
	}
	add("/health", "/openapi.json", "service-desc")
	add("/health", "/docs", "service-doc")

	for p, pi := range oapi.Paths {
		headers, ok := m[p]
		if !ok {
			continue
		}
		for _, op := range operationsOf(pi) {
			if op != nil {
				injectResponseLinks(op, headers)
			}
		}
	}

	l.mu.Lock()
	l.m = m
	l.mu.Unlock()
}

// For returns the Link headers for an operation path.
func (l *Links) For(opPath string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.m[opPath])
}

// Transformer returns a Huma Transformer that injects the Link headers at
// runtime. Item endpoints also get a self link with the resolved URL.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}
		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		return v, nil
	}
}

// --- helpers ---

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}

// injectResponseLinks documents the links on the operation's success response.
func injectResponseLinks(op *huma.Operation, headers []string) {
	if op.Responses == nil {
		return
	}
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{
			OperationRef: href,
			Description:  fmt.Sprintf("Related: %s", rel),
		}
	}
}

func parseLinkHeader(h string) (rel, href string) {
	before, after, ok := strings.Cut(h, ";")
	if !ok {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(before), "<>")
	relPart := strings.TrimSpace(after)
	if strings.HasPrefix(relPart, `rel="`) {
		rel = strings.Trim(relPart[4:], `"`)
	}
	return rel, href
}
