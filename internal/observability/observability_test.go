package observability

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "info", "json").Info("hello", "layer", "basins")
	assert.Contains(t, buf.String(), `"layer":"basins"`)

	buf.Reset()
	newLogger(&buf, "info", "text").Info("hello", "layer", "basins")
	assert.Contains(t, buf.String(), "layer=basins")

	buf.Reset()
	newLogger(&buf, "warn", "text").Info("dropped")
	assert.Empty(t, buf.String())
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveQuery("shape", "ok", time.Second)
	m.CacheLookup("hit")
	m.Rendered("basins")
	m.StateWritten()
	m.LoadingStarted()
	m.LoadingFinished(time.Millisecond)
}

func TestMetrics_Records(t *testing.T) {
	m := NewMetricsForTesting()
	m.ObserveQuery("scalar", "empty", 10*time.Millisecond)
	m.CacheLookup("miss")
	m.CacheLookup("miss")
	m.LoadingStarted()

	assert.InDelta(t, 1, testutil.ToFloat64(m.ProviderQueries.WithLabelValues("scalar", "empty")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ScalarCache.WithLabelValues("miss")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LoadingInFlight), 0)

	m.LoadingFinished(time.Millisecond)
	assert.InDelta(t, 0, testutil.ToFloat64(m.LoadingInFlight), 0)
}
