package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blob451/MapleTrade/internal/provider"
)

// HTTPClient describes the transport dependency; *httpx.Client satisfies it.
//
//go:generate mockgen -package=yahoo_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Config controls the Yahoo Finance provider.
type Config struct {
	Name    string // display name, default: YahooFinance
	BaseURL string // default: https://query1.finance.yahoo.com
	// Timeout bounds every upstream call. The provider enforces it itself
	// regardless of the caller's context.
	Timeout time.Duration
	// DailyRange is the chart range requested for daily history (e.g. 3mo).
	DailyRange string
}

// Provider fetches quotes, daily history and company profiles from the
// public Yahoo Finance endpoints. One request per Fetch, no retries.
type Provider struct {
	cfg    Config
	client HTTPClient
}

func New(cfg Config, hc HTTPClient) *Provider {
	if cfg.Name == "" {
		cfg.Name = "YahooFinance"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.DailyRange == "" {
		cfg.DailyRange = "3mo"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

// Fetch runs one upstream call under the provider's own deadline and returns
// the normalized payload for the key's kind.
func (p *Provider) Fetch(ctx context.Context, key provider.Key) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	switch key.Kind {
	case provider.KindQuote:
		return p.fetchQuote(ctx, key.Symbol)
	case provider.KindDaily:
		return p.fetchDaily(ctx, key.Symbol)
	case provider.KindProfile:
		return p.fetchProfile(ctx, key.Symbol)
	default:
		return nil, fmt.Errorf("yahoo: unsupported kind %q", key.Kind)
	}
}

// getJSON performs one GET and decodes the body, mapping failures onto the
// fetch error taxonomy.
func (p *Provider) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := p.cfg.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return provider.NewTransport(err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return classify(ctx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return provider.NewUpstream(resp.StatusCode, fmt.Errorf("GET %s: %s", path, strings.TrimSpace(string(b))))
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return classify(ctx, fmt.Errorf("decode: %w", err))
	}
	return nil
}

// classify separates an elapsed deadline from plain transport trouble.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return provider.NewTimeout(err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return provider.NewTimeout(err)
	}
	return provider.NewTransport(err)
}

// apiError is the error object Yahoo embeds in otherwise well-formed
// responses.
type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *apiError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}
