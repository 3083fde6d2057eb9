package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joeblew999/plat-water/internal/loading"
	"github.com/joeblew999/plat-water/internal/observability"
	"github.com/joeblew999/plat-water/internal/query"
)

// PrairieIdentifier is the data type served by the prairie-water data service.
const PrairieIdentifier = "prairie-water"

// PrairieConfig configures a Prairie provider. Zero values are usable.
type PrairieConfig struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Notify     loading.Notifier
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// Prairie answers shape and scalar queries over HTTP.
//
//	shape:  GET <locator>                        → JSON object, value at key
//	scalar: GET <locator>/scaler/map/<classId>   → scalar record
type Prairie struct {
	httpClient *http.Client
	notify     loading.Notifier
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewPrairie creates a prairie-water provider.
func NewPrairie(cfg PrairieConfig) *Prairie {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Prairie{
		httpClient: client,
		notify:     cfg.Notify,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}

func (p *Prairie) Identifiers() []string {
	return []string{PrairieIdentifier}
}

func (p *Prairie) Query(ctx context.Context, _ string, locator string, q query.Object) json.RawMessage {
	end := loading.Begin(p.notify)
	defer end()

	start := time.Now()
	result, err := p.query(ctx, locator, q)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		p.logger.Warn("data provider query failed", "query", q.String(), "locator", locator, "error", err)
		result = nil
	case result == nil:
		outcome = "empty"
	}
	p.metrics.ObserveQuery(string(q.Type), outcome, time.Since(start))
	return result
}

func (p *Prairie) query(ctx context.Context, locator string, q query.Object) (json.RawMessage, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(locator, "/")

	switch q.Type {
	case query.TypeShape:
		body, err := p.get(ctx, base)
		if err != nil {
			return nil, err
		}
		var all map[string]json.RawMessage
		if err := json.Unmarshal(body, &all); err != nil {
			return nil, fmt.Errorf("decode shape index: %w", err)
		}
		return nonNull(all[q.Key]), nil

	case query.TypeScalar:
		body, err := p.get(ctx, base+"/scaler/map/"+url.PathEscape(q.ClassID))
		if err != nil {
			return nil, err
		}
		if !json.Valid(body) {
			return nil, fmt.Errorf("scalar %s: invalid JSON body", q.ClassID)
		}
		return nonNull(body), nil
	}
	return nil, fmt.Errorf("%w: %q", query.ErrUnknownType, q.Type)
}

func (p *Prairie) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("data service error: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}

func nonNull(b json.RawMessage) json.RawMessage {
	t := bytes.TrimSpace(b)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return nil
	}
	return b
}
