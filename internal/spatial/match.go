// Package spatial answers which boundary polygons contain a coordinate.
//
// Containment is even-odd ray casting per ring. A point lying exactly on an
// edge or vertex of any ring counts as contained, so a point on a border
// shared by two polygons matches both. Ring orientation does not matter.
package spatial

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/zip-mapper/internal/boundary"
	"github.com/sells-group/zip-mapper/internal/model"
)

// edgeEpsilon is the collinearity tolerance, in squared degrees, for the
// on-edge test.
const edgeEpsilon = 1e-12

// Matcher finds the polygons of a dataset containing a coordinate.
type Matcher struct{}

// NewMatcher creates a Matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match returns the ids of every polygon in ds containing c, sorted by id.
// No match returns an empty, non-nil slice.
func (m *Matcher) Match(c model.Coordinate, ds *boundary.Dataset) []string {
	ids := []string{}
	for _, p := range m.containing(c, ds) {
		ids = append(ids, p.ID)
	}
	return ids
}

// MatchResult is Match with polygon names attached.
func (m *Matcher) MatchResult(c model.Coordinate, ds *boundary.Dataset) model.MatchResult {
	res := model.MatchResult{Coordinate: c, PolygonIDs: []string{}}
	for _, p := range m.containing(c, ds) {
		res.PolygonIDs = append(res.PolygonIDs, p.ID)
		res.Names = append(res.Names, p.Name)
	}
	return res
}

func (m *Matcher) containing(c model.Coordinate, ds *boundary.Dataset) []*boundary.Polygon {
	if ds == nil || !c.Valid() {
		return nil
	}
	var out []*boundary.Polygon
	for _, p := range ds.Candidates(c) {
		if Contains(p.Geometry, c) {
			out = append(out, p)
		}
	}
	return out
}

// Contains reports whether c lies inside or on the boundary of mp.
func Contains(mp *geom.MultiPolygon, c model.Coordinate) bool {
	if mp == nil {
		return false
	}
	stride := mp.Stride()
	for i := 0; i < mp.NumPolygons(); i++ {
		if polygonContains(mp.Polygon(i), stride, c.Lon, c.Lat) {
			return true
		}
	}
	return false
}

// polygonContains treats ring 0 as the outer ring and the rest as holes. A
// point on a hole's edge is on the polygon boundary and so contained.
func polygonContains(p *geom.Polygon, stride int, x, y float64) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	inside, onEdge := ringContains(p.LinearRing(0).FlatCoords(), stride, x, y)
	if onEdge {
		return true
	}
	if !inside {
		return false
	}
	for j := 1; j < p.NumLinearRings(); j++ {
		inHole, onHoleEdge := ringContains(p.LinearRing(j).FlatCoords(), stride, x, y)
		if onHoleEdge {
			return true
		}
		if inHole {
			return false
		}
	}
	return true
}

// ringContains runs the even-odd test on one ring. The ring may or may not
// repeat its first vertex.
func ringContains(flat []float64, stride int, x, y float64) (inside, onEdge bool) {
	n := len(flat) / stride
	if n < 3 {
		return false, false
	}
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := flat[i*stride], flat[i*stride+1]
		xj, yj := flat[j*stride], flat[j*stride+1]

		if onSegment(x, y, xi, yi, xj, yj) {
			return false, true
		}
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside, false
}

func onSegment(x, y, x1, y1, x2, y2 float64) bool {
	cross := (x2-x1)*(y-y1) - (y2-y1)*(x-x1)
	if math.Abs(cross) > edgeEpsilon {
		return false
	}
	return x >= math.Min(x1, x2)-edgeEpsilon && x <= math.Max(x1, x2)+edgeEpsilon &&
		y >= math.Min(y1, y2)-edgeEpsilon && y <= math.Max(y1, y2)+edgeEpsilon
}
