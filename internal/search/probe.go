package search

import (
	"context"
	"net/http"
	"time"

	"github.com/example/event-catalog/internal/application"
)

// StaticProbe always reports the same connectivity.
type StaticProbe bool

func (p StaticProbe) Online(context.Context) bool { return bool(p) }

// HTTPProbe considers the host online when a HEAD request to URL gets any response.
type HTTPProbe struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPProbe creates a probe with a five second timeout.
func NewHTTPProbe(url string) *HTTPProbe {
	return &HTTPProbe{URL: url, Client: http.DefaultClient, Timeout: 5 * time.Second}
}

func (p *HTTPProbe) Online(ctx context.Context) bool {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

var (
	_ application.ConnectivityProbe = StaticProbe(true)
	_ application.ConnectivityProbe = (*HTTPProbe)(nil)
)
