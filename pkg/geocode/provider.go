package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/sells-group/zip-mapper/internal/model"
)

// Provider resolves one postal code within a country to the best-match
// coordinate. A nil coordinate with a nil error means the provider had no
// candidate; an error means the lookup itself failed.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, postalCode, country string) (*model.Coordinate, error)
}

// ProviderOption configures the HTTP-backed providers.
type ProviderOption func(*httpProvider)

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(u string) ProviderOption {
	return func(p *httpProvider) {
		if u != "" {
			p.baseURL = u
		}
	}
}

// WithHTTPClient sets a custom HTTP client for provider requests.
func WithHTTPClient(hc *http.Client) ProviderOption {
	return func(p *httpProvider) {
		if hc != nil {
			p.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) ProviderOption {
	return func(p *httpProvider) {
		if d > 0 {
			p.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithUserAgent sets the User-Agent header. Nominatim rejects requests
// without an identifying agent.
func WithUserAgent(ua string) ProviderOption {
	return func(p *httpProvider) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

type httpProvider struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

func newHTTPProvider(baseURL string, opts []ProviderOption) httpProvider {
	p := httpProvider{
		baseURL:    baseURL,
		userAgent:  "zip-mapper",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}
