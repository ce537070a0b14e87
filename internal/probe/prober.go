package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Prober performs one network reachability attempt. A nil error means the
// endpoint is reachable.
type Prober interface {
	Probe(ctx context.Context, endpoint string) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, endpoint string) error

func (f ProberFunc) Probe(ctx context.Context, endpoint string) error { return f(ctx, endpoint) }

// HTTPProber issues a GET against the endpoint and treats any 2xx as reachable.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates a prober. A nil client gets a dedicated one without
// connection reuse so every probe exercises the full network path.
func NewHTTPProber(client *http.Client) *HTTPProber {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DisableKeepAlives:   true,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		}
	}
	return &HTTPProber{client: client}
}

func (p *HTTPProber) Probe(ctx context.Context, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}
