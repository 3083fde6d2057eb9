package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-water/internal/loading"
	"github.com/joeblew999/plat-water/internal/observability"
	"github.com/joeblew999/plat-water/internal/query"
)

// --- stub provider ---

type stubProvider struct {
	ids     []string
	answer  json.RawMessage
	locator string
	calls   int
}

func (s *stubProvider) Identifiers() []string { return s.ids }

func (s *stubProvider) Query(_ context.Context, _ string, locator string, _ query.Object) json.RawMessage {
	s.calls++
	s.locator = locator
	return s.answer
}

// --- Registry ---

func TestRegistry_RoutesByIdentifier(t *testing.T) {
	r := NewRegistry(observability.Discard())
	p := &stubProvider{ids: []string{"prairie-water"}, answer: json.RawMessage(`[1]`)}
	require.NoError(t, r.Register(p))

	assert.True(t, r.Registered("prairie-water"))
	assert.False(t, r.Registered("sqlite"))

	got := r.Query(context.Background(), "prairie-water:http://localhost:8086/data", query.Shape("basins"))
	assert.JSONEq(t, `[1]`, string(got))
	assert.Equal(t, "http://localhost:8086/data", p.locator)
}

func TestRegistry_UnroutableResolvesNil(t *testing.T) {
	r := NewRegistry(observability.Discard())
	p := &stubProvider{ids: []string{"prairie-water"}, answer: json.RawMessage(`1`)}
	require.NoError(t, r.Register(p))

	assert.Nil(t, r.Query(context.Background(), "", query.Shape("k")))
	assert.Nil(t, r.Query(context.Background(), "no-colon", query.Shape("k")))
	assert.Nil(t, r.Query(context.Background(), "other:x", query.Shape("k")))
	assert.Equal(t, 0, p.calls)
}

func TestRegistry_DuplicateIsAllOrNothing(t *testing.T) {
	r := NewRegistry(observability.Discard())
	require.NoError(t, r.Register(&stubProvider{ids: []string{"a"}}))

	err := r.Register(&stubProvider{ids: []string{"b", "a"}})
	assert.ErrorIs(t, err, ErrDuplicateIdentifier)
	assert.False(t, r.Registered("b"))
	assert.Equal(t, []string{"a"}, r.Identifiers())
}

func TestSplitSource(t *testing.T) {
	id, loc, ok := SplitSource("prairie-water:http://x:1/y")
	require.True(t, ok)
	assert.Equal(t, "prairie-water", id)
	assert.Equal(t, "http://x:1/y", loc)

	_, _, ok = SplitSource(":http://x")
	assert.False(t, ok)

	// a plain URL would otherwise route to a provider called "http"
	_, _, ok = SplitSource("http://host/data")
	assert.False(t, ok)
}

// --- Prairie ---

func newDataServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /data", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"basins": {"type":"FeatureCollection","features":[]}, "empty": null}`))
	})
	mux.HandleFunc("GET /data/scaler/map/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "1":
			w.Write([]byte(`{"data":{"1900":{"0":{"average":250}}}}`))
		case "bad":
			w.Write([]byte(`{not json`))
		case "null":
			w.Write([]byte(`null`))
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("GET /broken", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type countingNotifier struct {
	begun, ended int
}

func (c *countingNotifier) notifier() loading.Notifier {
	return func() func() {
		c.begun++
		return func() { c.ended++ }
	}
}

func TestPrairie_Shape(t *testing.T) {
	srv := newDataServer(t)
	n := &countingNotifier{}
	p := NewPrairie(PrairieConfig{Notify: n.notifier(), Logger: observability.Discard()})

	got := p.Query(context.Background(), PrairieIdentifier, srv.URL+"/data/", query.Shape("basins"))
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(got))

	assert.Nil(t, p.Query(context.Background(), PrairieIdentifier, srv.URL+"/data", query.Shape("missing")))
	assert.Nil(t, p.Query(context.Background(), PrairieIdentifier, srv.URL+"/data", query.Shape("empty")))
	assert.Nil(t, p.Query(context.Background(), PrairieIdentifier, srv.URL+"/broken", query.Shape("basins")))

	assert.Equal(t, 4, n.begun)
	assert.Equal(t, 4, n.ended)
}

func TestPrairie_Scalar(t *testing.T) {
	srv := newDataServer(t)
	m := observability.NewMetricsForTesting()
	n := &countingNotifier{}
	p := NewPrairie(PrairieConfig{Notify: n.notifier(), Logger: observability.Discard(), Metrics: m})

	got := p.Query(context.Background(), PrairieIdentifier, srv.URL+"/data", query.Scalar("1"))
	assert.JSONEq(t, `{"data":{"1900":{"0":{"average":250}}}}`, string(got))

	assert.Nil(t, p.Query(context.Background(), PrairieIdentifier, srv.URL+"/data", query.Scalar("404")))
	assert.Nil(t, p.Query(context.Background(), PrairieIdentifier, srv.URL+"/data", query.Scalar("bad")))
	assert.Nil(t, p.Query(context.Background(), PrairieIdentifier, srv.URL+"/data", query.Scalar("null")))

	assert.Equal(t, n.begun, n.ended)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ProviderQueries.WithLabelValues("scalar", "ok")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ProviderQueries.WithLabelValues("scalar", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ProviderQueries.WithLabelValues("scalar", "empty")), 0)
}

func TestPrairie_TransportFailureResolvesNil(t *testing.T) {
	srv := newDataServer(t)
	url := srv.URL
	srv.Close()

	n := &countingNotifier{}
	p := NewPrairie(PrairieConfig{Notify: n.notifier(), Logger: observability.Discard()})
	assert.Nil(t, p.Query(context.Background(), PrairieIdentifier, url+"/data", query.Scalar("1")))
	assert.Equal(t, 1, n.ended)
}

func TestPrairie_InvalidQueryResolvesNil(t *testing.T) {
	p := NewPrairie(PrairieConfig{Logger: observability.Discard()})
	assert.Nil(t, p.Query(context.Background(), PrairieIdentifier, "http://unused", query.Object{Type: "raster"}))
}
