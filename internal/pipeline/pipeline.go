// Package pipeline turns a batch of postal codes into map-ready data:
// coordinates, containing boundary polygons and a viewport.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/zip-mapper/internal/boundary"
	"github.com/sells-group/zip-mapper/internal/model"
	"github.com/sells-group/zip-mapper/internal/viewport"
)

// ErrNoPostalCodes is returned when the input has no usable postal code.
var ErrNoPostalCodes = eris.New("pipeline: no postal codes")

// Resolver geocodes one postal code.
type Resolver interface {
	Resolve(ctx context.Context, code, countryHint string) model.GeocodeResult
}

// BoundaryLoader returns the dataset of a region, nil for an unknown region.
type BoundaryLoader interface {
	Load(ctx context.Context, regionID string) (*boundary.Dataset, error)
}

// Matcher finds the polygons containing a coordinate.
type Matcher interface {
	MatchResult(c model.Coordinate, ds *boundary.Dataset) model.MatchResult
}

// Planner picks the map viewport.
type Planner interface {
	Plan(strategy model.Strategy, coords []model.Coordinate, regionID string) model.Viewport
}

// Config selects the viewport strategy and optional boundary highlighting
// for one run.
type Config struct {
	Strategy model.Strategy `json:"strategy"`
	Region   string         `json:"region,omitempty"`
	Country  string         `json:"country,omitempty"`
	// IncludeGeometry attaches the matched polygons as GeoJSON.
	IncludeGeometry bool `json:"include_geometry,omitempty"`
}

// PhaseResult records the duration of one pipeline phase.
type PhaseResult struct {
	Name     string `json:"name"`
	Duration int64  `json:"duration_ms"`
}

// Summary counts result outcomes.
type Summary struct {
	Total    int `json:"total"`
	Resolved int `json:"resolved"`
	NotFound int `json:"not_found"`
	Failed   int `json:"failed"`
	Cached   int `json:"cached"`
	Matched  int `json:"matched"`
}

// Result is everything the rendering layer needs for one batch. Results has
// one entry per input code, in input order.
type Result struct {
	RunID    string                       `json:"run_id"`
	Results  []model.GeocodeResult        `json:"results"`
	Matches  map[string]model.MatchResult `json:"matches"`
	Viewport model.Viewport               `json:"viewport"`
	Extent   *viewport.Extent             `json:"extent,omitempty"`
	Polygons *geojson.FeatureCollection   `json:"polygons,omitempty"`
	Warnings []string                     `json:"warnings"`
	Summary  Summary                      `json:"summary"`
	Phases   []PhaseResult                `json:"phases"`
}

// Pipeline runs the geocode, match and viewport phases over injected
// collaborators. It is safe for concurrent use when they are.
type Pipeline struct {
	geocoder Resolver
	store    BoundaryLoader
	matcher  Matcher
	planner  Planner
}

// New creates a Pipeline.
func New(geocoder Resolver, store BoundaryLoader, matcher Matcher, planner Planner) *Pipeline {
	return &Pipeline{
		geocoder: geocoder,
		store:    store,
		matcher:  matcher,
		planner:  planner,
	}
}

// Run processes codes in input order. Per-code failures and an unavailable
// region become entries in Results and Warnings; only an empty input is an
// error. If ctx is canceled mid-batch the remaining codes are recorded as
// lookup failures and the partial result is returned.
func (p *Pipeline) Run(ctx context.Context, codes []string, cfg Config) (*Result, error) {
	codes = NormalizeCodes(codes)
	if len(codes) == 0 {
		return nil, ErrNoPostalCodes
	}
	regionID := boundary.NormalizeRegionID(cfg.Region)

	result := &Result{
		RunID:    uuid.New().String(),
		Results:  make([]model.GeocodeResult, 0, len(codes)),
		Matches:  make(map[string]model.MatchResult),
		Warnings: []string{},
	}
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("run_id", result.RunID),
		zap.Int("codes", len(codes)),
		zap.String("region", regionID),
	)
	log.Info("pipeline: starting run")

	trackPhase := func(name string, fn func()) {
		start := time.Now()
		fn()
		duration := time.Since(start).Milliseconds()
		result.Phases = append(result.Phases, PhaseResult{Name: name, Duration: duration})
		log.Debug("pipeline: phase complete",
			zap.String("phase", name),
			zap.Int64("duration_ms", duration),
		)
	}

	var coords []model.Coordinate
	trackPhase("geocode", func() {
		for _, code := range codes {
			var r model.GeocodeResult
			if err := ctx.Err(); err != nil {
				r = model.NewLookupFailed(code, err)
			} else {
				r = p.geocoder.Resolve(ctx, code, cfg.Country)
			}
			result.Results = append(result.Results, r)

			if r.Resolved() {
				coords = append(coords, *r.Coordinate)
			} else {
				result.Warnings = append(result.Warnings, "Could not geocode zip code: "+code)
			}
		}
	})

	if regionID != "" && len(coords) > 0 {
		trackPhase("match", func() {
			p.match(ctx, regionID, cfg, result)
		})
	}

	trackPhase("viewport", func() {
		result.Viewport = p.planner.Plan(cfg.Strategy, coords, regionID)
		if ext, ok := viewport.ComputeExtent(coords); ok {
			result.Extent = &ext
		}
	})

	result.Summary = summarize(result)
	log.Info("pipeline: run complete",
		zap.Int("resolved", result.Summary.Resolved),
		zap.Int("failed", result.Summary.Failed+result.Summary.NotFound),
		zap.Int("matched", result.Summary.Matched),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

func (p *Pipeline) match(ctx context.Context, regionID string, cfg Config, result *Result) {
	ds, err := p.store.Load(ctx, regionID)
	if err != nil {
		result.Warnings = append(result.Warnings, "Boundary highlighting unavailable: "+err.Error())
		return
	}
	if ds == nil {
		result.Warnings = append(result.Warnings, "No boundary data configured for region "+regionID)
		return
	}

	var matchedIDs []string
	for _, r := range result.Results {
		if !r.Resolved() {
			continue
		}
		m := p.matcher.MatchResult(*r.Coordinate, ds)
		result.Matches[r.PostalCode] = m
		matchedIDs = append(matchedIDs, m.PolygonIDs...)
	}
	if cfg.IncludeGeometry {
		result.Polygons = ds.Features(matchedIDs)
	}
}

func summarize(result *Result) Summary {
	s := Summary{Total: len(result.Results)}
	for _, r := range result.Results {
		switch r.Status {
		case model.StatusResolved:
			s.Resolved++
		case model.StatusNotFound:
			s.NotFound++
		default:
			s.Failed++
		}
		if r.Cached {
			s.Cached++
		}
	}
	for _, m := range result.Matches {
		if len(m.PolygonIDs) > 0 {
			s.Matched++
		}
	}
	return s
}
