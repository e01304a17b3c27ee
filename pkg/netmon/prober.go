package netmon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/venuekit/usher/pkg/types"
)

// Prober measures round-trip time to a liveness endpoint.
type Prober interface {
	// Probe performs one liveness check and returns the elapsed time.
	// A non-nil error means the endpoint was unreachable or unhealthy.
	Probe(ctx context.Context) (time.Duration, error)
}

// HTTPProber probes an HTTP liveness endpoint with a zero-body request.
type HTTPProber struct {
	// URL is the liveness endpoint (e.g. "http://store:8080/health")
	URL string

	// Method is the HTTP method to use (default: HEAD, no body to transfer)
	Method string

	// Client is the HTTP client to use (allows custom configuration)
	Client *http.Client
}

// NewHTTPProber creates a prober against the given liveness URL
func NewHTTPProber(url string) *HTTPProber {
	return &HTTPProber{
		URL:    url,
		Method: http.MethodHead,
		Client: &http.Client{
			Timeout: types.DefaultProbeTimeout,
		},
	}
}

// WithMethod sets the HTTP method
func (p *HTTPProber) WithMethod(method string) *HTTPProber {
	p.Method = method
	return p
}

// WithTimeout sets the HTTP client timeout
func (p *HTTPProber) WithTimeout(timeout time.Duration) *HTTPProber {
	p.Client.Timeout = timeout
	return p
}

// Probe performs the liveness request and measures elapsed time
func (p *HTTPProber) Probe(ctx context.Context) (time.Duration, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create probe request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.Client.Do(req)
	if err != nil {
		return time.Since(start), fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)
	if resp.StatusCode >= 400 {
		return elapsed, fmt.Errorf("probe returned HTTP %d", resp.StatusCode)
	}
	return elapsed, nil
}
