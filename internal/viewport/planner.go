// Package viewport chooses the map center and zoom for a set of points.
package viewport

import (
	"math"

	"github.com/umahmood/haversine"

	"github.com/sells-group/zip-mapper/internal/model"
)

const (
	// MinZoom shows the whole world.
	MinZoom = 0
	// MaxZoom is building level.
	MaxZoom = 18
	// DefaultAutoZoom is the fixed zoom used for AutoBounds.
	DefaultAutoZoom = 6
	// DefaultMaxFitZoom caps a fitted zoom so a single point is not framed at
	// street level.
	DefaultMaxFitZoom = 12

	equatorKm  = 40075.016686
	tileSizePx = 256
	// mapWidthPx is the rendered map width the fitted extent must fit in.
	mapWidthPx = 700
	// fitPadding leaves a margin around the fitted extent.
	fitPadding = 1.2
)

// nationalCenter is the geographic center of the contiguous United States.
var nationalCenter = model.Coordinate{Lat: 37.0902, Lon: -95.7129}

// National returns the fixed national viewport.
func National() model.Viewport {
	return model.Viewport{Center: nationalCenter, Zoom: 4}
}

// RegionFraming looks up the configured center and zoom of a region.
type RegionFraming interface {
	Center(regionID string) (model.Viewport, bool)
}

// Option configures a Planner.
type Option func(*Planner)

// WithRegions sets the region framing table used by the Region strategy.
func WithRegions(r RegionFraming) Option {
	return func(p *Planner) { p.regions = r }
}

// WithAutoZoom sets the fixed AutoBounds zoom.
func WithAutoZoom(z int) Option {
	return func(p *Planner) {
		if z >= MinZoom && z <= MaxZoom {
			p.autoZoom = z
		}
	}
}

// WithFitZoom derives the AutoBounds zoom from the extent of the points
// instead of using the fixed zoom.
func WithFitZoom(enabled bool) Option {
	return func(p *Planner) { p.fitZoom = enabled }
}

// Planner computes viewports. It holds no mutable state; Plan is
// deterministic and safe for concurrent use.
type Planner struct {
	regions  RegionFraming
	autoZoom int
	fitZoom  bool
}

// NewPlanner creates a Planner.
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{autoZoom: DefaultAutoZoom}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan picks the viewport for coords under strategy. Region and AutoBounds
// fall back to National when coords is empty; Region also falls back when
// regionID has no framing.
func (p *Planner) Plan(strategy model.Strategy, coords []model.Coordinate, regionID string) model.Viewport {
	switch strategy {
	case model.StrategyRegion:
		if len(coords) == 0 || p.regions == nil {
			return National()
		}
		if vp, ok := p.regions.Center(regionID); ok {
			return vp
		}
		return National()
	case model.StrategyAutoBounds:
		ext, ok := ComputeExtent(coords)
		if !ok {
			return National()
		}
		zoom := p.autoZoom
		if p.fitZoom {
			zoom = FitZoom(ext)
		}
		return model.Viewport{Center: ext.Center(), Zoom: zoom}
	default:
		return National()
	}
}

// Extent is the bounding box of a point set.
type Extent struct {
	SouthWest model.Coordinate `json:"south_west"`
	NorthEast model.Coordinate `json:"north_east"`
}

// ComputeExtent returns the bounding box of coords. ok is false when coords
// is empty.
func ComputeExtent(coords []model.Coordinate) (ext Extent, ok bool) {
	if len(coords) == 0 {
		return Extent{}, false
	}
	ext.SouthWest, ext.NorthEast = coords[0], coords[0]
	for _, c := range coords[1:] {
		ext.SouthWest.Lat = math.Min(ext.SouthWest.Lat, c.Lat)
		ext.SouthWest.Lon = math.Min(ext.SouthWest.Lon, c.Lon)
		ext.NorthEast.Lat = math.Max(ext.NorthEast.Lat, c.Lat)
		ext.NorthEast.Lon = math.Max(ext.NorthEast.Lon, c.Lon)
	}
	return ext, true
}

// Center is the bounding-box midpoint.
func (e Extent) Center() model.Coordinate {
	return model.Coordinate{
		Lat: (e.SouthWest.Lat + e.NorthEast.Lat) / 2,
		Lon: (e.SouthWest.Lon + e.NorthEast.Lon) / 2,
	}
}

// WidthKm is the east-west span measured along the southern edge.
func (e Extent) WidthKm() float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: e.SouthWest.Lat, Lon: e.SouthWest.Lon},
		haversine.Coord{Lat: e.SouthWest.Lat, Lon: e.NorthEast.Lon},
	)
	return km
}

// HeightKm is the north-south span.
func (e Extent) HeightKm() float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: e.SouthWest.Lat, Lon: e.SouthWest.Lon},
		haversine.Coord{Lat: e.NorthEast.Lat, Lon: e.SouthWest.Lon},
	)
	return km
}

// DiagonalKm is the great-circle distance between opposite corners.
func (e Extent) DiagonalKm() float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: e.SouthWest.Lat, Lon: e.SouthWest.Lon},
		haversine.Coord{Lat: e.NorthEast.Lat, Lon: e.NorthEast.Lon},
	)
	return km
}

// FitZoom returns the largest web-mercator zoom whose ground resolution at
// the extent's center latitude fits the larger side of the extent into the
// map width, clamped to [MinZoom, DefaultMaxFitZoom].
func FitZoom(e Extent) int {
	span := math.Max(e.WidthKm(), e.HeightKm()) * fitPadding
	if span <= 0 {
		return DefaultMaxFitZoom
	}
	cosLat := math.Cos(e.Center().Lat * math.Pi / 180)
	// ground km per pixel at zoom z is equatorKm*cosLat / (tileSizePx * 2^z)
	z := math.Floor(math.Log2(equatorKm * cosLat * mapWidthPx / (tileSizePx * span)))
	switch {
	case math.IsNaN(z) || z < MinZoom:
		return MinZoom
	case z > DefaultMaxFitZoom:
		return DefaultMaxFitZoom
	default:
		return int(z)
	}
}
