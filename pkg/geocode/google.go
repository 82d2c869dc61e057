package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zip-mapper/internal/model"
	"github.com/sells-group/zip-mapper/internal/resilience"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results []googleResult `json:"results"`
	Status  string         `json:"status"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// GoogleProvider resolves postal codes with Google component filtering.
type GoogleProvider struct {
	httpProvider
	apiKey string
}

// NewGoogleProvider creates a Google-backed Provider.
func NewGoogleProvider(apiKey string, opts ...ProviderOption) *GoogleProvider {
	return &GoogleProvider{
		httpProvider: newHTTPProvider(googleGeocodeURL, opts),
		apiKey:       apiKey,
	}
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Lookup implements Provider.
func (p *GoogleProvider) Lookup(ctx context.Context, postalCode, country string) (*model.Coordinate, error) {
	if p.apiKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}

	components := []string{"postal_code:" + postalCode}
	if country != "" {
		components = append(components, "country:"+country)
	}
	params := url.Values{
		"components": {strings.Join(components, "|")},
		"key":        {p.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.ResponseError("google", resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	var googleResp googleGeocodeResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	switch googleResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return nil, resilience.NewTransientError(eris.Errorf("geocode: google status %s", googleResp.Status), http.StatusTooManyRequests)
	default:
		return nil, eris.Errorf("geocode: google status %s", googleResp.Status)
	}
	if len(googleResp.Results) == 0 {
		return nil, nil
	}

	loc := googleResp.Results[0].Geometry.Location
	return &model.Coordinate{Lat: loc.Lat, Lon: loc.Lng}, nil
}
