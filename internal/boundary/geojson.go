package boundary

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// DecodeGeoJSON parses a FeatureCollection into polygons. Features that are
// not Polygon or MultiPolygon are skipped.
func DecodeGeoJSON(data []byte, r Region) ([]*Polygon, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "boundary: decode geojson")
	}

	nameField := r.NameField
	if nameField == "" {
		nameField = "name"
	}

	polygons := make([]*Polygon, 0, len(fc.Features))
	var skipped int
	for i, f := range fc.Features {
		mp := toMultiPolygon(f.Geometry)
		if mp == nil {
			skipped++
			continue
		}

		id := f.ID
		if r.IDField != "" {
			if v := propString(f.Properties, r.IDField); v != "" {
				id = v
			}
		}
		if id == "" {
			id = strconv.Itoa(i)
		}

		polygons = append(polygons, &Polygon{
			ID:       id,
			Name:     propString(f.Properties, nameField),
			Geometry: mp,
		})
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped non-polygon features",
			zap.String("region", r.ID),
			zap.Int("skipped", skipped),
		)
	}
	return polygons, nil
}

func toMultiPolygon(g geom.T) *geom.MultiPolygon {
	switch v := g.(type) {
	case *geom.MultiPolygon:
		if v.NumPolygons() == 0 {
			return nil
		}
		return v
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(v.Layout())
		if err := mp.Push(v); err != nil {
			return nil
		}
		return mp
	default:
		return nil
	}
}

func propString(props map[string]interface{}, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
