// Package boundary fetches, decodes and caches per-region polygon datasets.
package boundary

import (
	"sort"
	"time"

	"github.com/dhconnelly/rtreego"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/zip-mapper/internal/model"
)

// boundsPad widens index rectangles so points exactly on a polygon's
// bounding box still reach the exact containment test.
const boundsPad = 1e-9

// Polygon is one named boundary. Coordinates are in (lon, lat) order. In each
// part, ring 0 is the outer ring and the remaining rings are holes.
type Polygon struct {
	ID       string
	Name     string
	Geometry *geom.MultiPolygon

	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (p *Polygon) Bounds() rtreego.Rect { return p.rect }

// Dataset is the decoded boundary set of one region. It is immutable once
// built and safe to share between goroutines.
type Dataset struct {
	RegionID string
	Polygons []*Polygon
	LoadedAt time.Time

	byID  map[string]*Polygon
	index *rtreego.Rtree
}

// NewDataset indexes polygons by bounding box. Polygons with empty geometry
// are dropped. Polygons sharing an id are merged into one multipolygon, the
// way a shapefile splits one town across several records.
func NewDataset(regionID string, polygons []*Polygon) (*Dataset, error) {
	ds := &Dataset{
		RegionID: regionID,
		LoadedAt: time.Now().UTC(),
		byID:     make(map[string]*Polygon, len(polygons)),
		index:    rtreego.NewTree(2, 25, 50),
	}
	merged := 0
	for _, p := range polygons {
		if p == nil || p.Geometry == nil || p.Geometry.NumPolygons() == 0 {
			continue
		}
		first, dup := ds.byID[p.ID]
		if !dup {
			ds.byID[p.ID] = p
			ds.Polygons = append(ds.Polygons, p)
			continue
		}
		if err := mergeParts(first, p); err != nil {
			return nil, eris.Wrapf(err, "boundary: merge polygon %s", p.ID)
		}
		merged++
	}
	if merged > 0 {
		zap.L().Warn("boundary: merged polygons sharing an id",
			zap.String("region", regionID),
			zap.Int("merged", merged),
		)
	}

	for _, p := range ds.Polygons {
		b := p.Geometry.Bounds()
		rect, err := rtreego.NewRect(
			rtreego.Point{b.Min(0) - boundsPad, b.Min(1) - boundsPad},
			[]float64{b.Max(0) - b.Min(0) + 2*boundsPad, b.Max(1) - b.Min(1) + 2*boundsPad},
		)
		if err != nil {
			return nil, eris.Wrapf(err, "boundary: index polygon %s", p.ID)
		}
		p.rect = rect
		ds.index.Insert(p)
	}
	return ds, nil
}

// mergeParts appends the parts of src to a copy of dst's geometry.
func mergeParts(dst, src *Polygon) error {
	mp := dst.Geometry.Clone()
	if mp.Layout() != src.Geometry.Layout() {
		return eris.Errorf("layout %v does not match %v", src.Geometry.Layout(), mp.Layout())
	}
	for i := 0; i < src.Geometry.NumPolygons(); i++ {
		if err := mp.Push(src.Geometry.Polygon(i)); err != nil {
			return err
		}
	}
	dst.Geometry = mp
	if dst.Name == "" {
		dst.Name = src.Name
	}
	return nil
}

// Len returns the number of polygons.
func (d *Dataset) Len() int { return len(d.Polygons) }

// Polygon returns the polygon with the given id.
func (d *Dataset) Polygon(id string) (*Polygon, bool) {
	p, ok := d.byID[id]
	return p, ok
}

// Candidates returns the polygons whose bounding box contains c, ordered by id.
func (d *Dataset) Candidates(c model.Coordinate) []*Polygon {
	rect, err := rtreego.NewRect(
		rtreego.Point{c.Lon - boundsPad, c.Lat - boundsPad},
		[]float64{2 * boundsPad, 2 * boundsPad},
	)
	if err != nil {
		return nil
	}
	hits := d.index.SearchIntersect(rect)
	out := make([]*Polygon, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*Polygon))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Features encodes the polygons with the given ids as a GeoJSON
// FeatureCollection for the rendering layer. Unknown ids are skipped.
func (d *Dataset) Features(ids []string) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(ids))}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		p, ok := d.byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       p.ID,
			Geometry: p.Geometry,
			Properties: map[string]interface{}{
				"name":   p.Name,
				"region": d.RegionID,
			},
		})
	}
	return fc
}
