package inventory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpProvider is the shape shared by Provider A and Provider B: a
// plain GET against a source-specific HTML API with a 15s timeout
// (spec.md §4.4).
type httpProvider struct {
	name   string
	client *http.Client
}

func newHTTPProvider(name string) *httpProvider {
	return &httpProvider{name: name, client: &http.Client{Timeout: 15 * time.Second}}
}

func (p *httpProvider) Name() string { return p.name }

func (p *httpProvider) Fetch(ctx context.Context, sourceURL string) (FetchResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("%s: build request: %w", p.name, err)
	}
	req.Header.Set("User-Agent", "dealer-ops-core/1.0 (+inventory-sync)")

	resp, err := p.client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("%s: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return FetchResult{}, fmt.Errorf("%s: upstream status %d", p.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return FetchResult{}, fmt.Errorf("%s: read body: %w", p.name, err)
	}

	return FetchResult{HTML: string(body), Cost: time.Since(start)}, nil
}

// NewProviderA is the primary HTML API — first in the fallback chain.
func NewProviderA() Provider { return newHTTPProvider("provider-a") }

// NewProviderB is the alternate HTML API, tried when A fails or times out.
func NewProviderB() Provider { return newHTTPProvider("provider-b") }
