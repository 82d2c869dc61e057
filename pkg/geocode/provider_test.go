package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zip-mapper/internal/resilience"
)

func TestNominatim_StructuredQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "06106", r.URL.Query().Get("postalcode"))
		assert.Equal(t, "US", r.URL.Query().Get("country"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "zip-mapper-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"lat":"41.7508","lon":"-72.6929","display_name":"Hartford, CT 06106"}]`)
	}))
	defer srv.Close()

	p := NewNominatimProvider(WithBaseURL(srv.URL), WithUserAgent("zip-mapper-test"))
	c, err := p.Lookup(context.Background(), "06106", "US")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.InDelta(t, 41.7508, c.Lat, 1e-6)
	assert.InDelta(t, -72.6929, c.Lon, 1e-6)
}

func TestNominatim_NoCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c, err := NewNominatimProvider(WithBaseURL(srv.URL)).Lookup(context.Background(), "INVALID_XYZ", "US")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNominatim_Throttled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewNominatimProvider(WithBaseURL(srv.URL)).Lookup(context.Background(), "06106", "US")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Equal(t, 2*time.Second, resilience.RetryAfterHint(err))
}

func TestNominatim_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	}))
	defer srv.Close()

	_, err := NewNominatimProvider(WithBaseURL(srv.URL)).Lookup(context.Background(), "06106", "US")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nominatim parse response")
}

func TestNominatim_BadCoordinateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"lat":"north","lon":"-72.6"}]`)
	}))
	defer srv.Close()

	_, err := NewNominatimProvider(WithBaseURL(srv.URL)).Lookup(context.Background(), "06106", "US")
	require.Error(t, err)
}

func TestGoogle_ComponentFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "postal_code:06106|country:US", r.URL.Query().Get("components"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"OK","results":[{"geometry":{"location":{"lat":41.75,"lng":-72.69}},"formatted_address":"Hartford, CT 06106, USA"}]}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider("test-key", WithHTTPClient(newRewriteClient(srv.URL, googleGeocodeURL)))
	c, err := p.Lookup(context.Background(), "06106", "US")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.InDelta(t, 41.75, c.Lat, 1e-6)
	assert.InDelta(t, -72.69, c.Lon, 1e-6)
}

func TestGoogle_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ZERO_RESULTS","results":[]}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider("test-key", WithHTTPClient(newRewriteClient(srv.URL, googleGeocodeURL)))
	c, err := p.Lookup(context.Background(), "00000", "US")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestGoogle_OverQueryLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"OVER_QUERY_LIMIT","results":[]}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider("test-key", WithHTTPClient(newRewriteClient(srv.URL, googleGeocodeURL)))
	_, err := p.Lookup(context.Background(), "06106", "US")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestGoogle_MissingKey(t *testing.T) {
	_, err := NewGoogleProvider("").Lookup(context.Background(), "06106", "US")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key not configured")
}
