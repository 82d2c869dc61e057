package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sells-group/zip-mapper/internal/boundary"
	"github.com/sells-group/zip-mapper/internal/model"
	"github.com/sells-group/zip-mapper/internal/pipeline"
	"github.com/sells-group/zip-mapper/internal/resilience"
	"github.com/sells-group/zip-mapper/internal/spatial"
	"github.com/sells-group/zip-mapper/internal/viewport"
	"github.com/sells-group/zip-mapper/pkg/geocode"
)

var hartford = model.Coordinate{Lat: 41.7637, Lon: -72.6851}

const hartfordGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "properties": {"GEOID": "0900337070", "NAME": "Hartford"},
     "geometry": {"type": "Polygon", "coordinates": [[[-72.75,41.72],[-72.64,41.72],[-72.64,41.81],[-72.75,41.81],[-72.75,41.72]]]}}
  ]
}`

type fakeProvider struct {
	coords map[string]model.Coordinate
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Lookup(_ context.Context, code, _ string) (*model.Coordinate, error) {
	c, ok := p.coords[code]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// newBoundaryServer serves hartfordGeoJSON, or the given status when non-zero.
func newBoundaryServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		_, _ = io.WriteString(w, hartfordGeoJSON)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newTestEnv wires a real pipeline over a fake provider and a local
// boundary server registered as region TEST.
func newTestEnv(t *testing.T, boundaryURL string) *mapEnv {
	t.Helper()
	g := geocode.New(&fakeProvider{coords: map[string]model.Coordinate{"06106": hartford}},
		geocode.WithRateLimiter(geocode.NewIntervalLimiter(0)),
		geocode.WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
	)
	store := boundary.NewStore(boundary.NewTable(boundary.Region{
		ID:        "TEST",
		Name:      "Test towns",
		URL:       boundaryURL,
		Format:    boundary.FormatGeoJSON,
		IDField:   "GEOID",
		NameField: "NAME",
		Center:    hartford,
		Zoom:      10,
	}))
	return &mapEnv{
		Geocoder: g,
		Store:    store,
		Pipeline: pipeline.New(g, store, spatial.NewMatcher(),
			viewport.NewPlanner(viewport.WithRegions(store.Table()))),
	}
}
