package boundary

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

// square returns a single-ring polygon covering [minLon,maxLon]x[minLat,maxLat].
func square(id string, minLon, minLat, maxLon, maxLat float64) *Polygon {
	ring := []float64{minLon, minLat, maxLon, minLat, maxLon, maxLat, minLon, maxLat, minLon, minLat}
	mp := geom.NewMultiPolygonFlat(geom.XY, ring, [][]int{{len(ring)}})
	return &Polygon{ID: id, Name: "poly " + id, Geometry: mp}
}

const twoTownsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "west",
     "properties": {"GEOID": "0900100001", "NAME": "Westville"},
     "geometry": {"type": "Polygon", "coordinates": [[[-73,41],[-72.5,41],[-72.5,42],[-73,42],[-73,41]]]}},
    {"type": "Feature", "id": "east",
     "properties": {"GEOID": "0900100002", "NAME": "Eastville"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[-72.5,41],[-72,41],[-72,42],[-72.5,42],[-72.5,41]]]]}},
    {"type": "Feature", "id": "road",
     "properties": {"NAME": "Route 1"},
     "geometry": {"type": "LineString", "coordinates": [[-73,41],[-72,42]]}}
  ]
}`

// writeShapefileZIP writes a polygon shapefile with GEOID and NAME fields,
// zips its parts and returns the archive path.
func writeShapefileZIP(t *testing.T, records map[string][][]shp.Point, names map[string]string, order []string) string {
	t.Helper()
	dir := t.TempDir()
	shpPath := filepath.Join(dir, "towns.shp")

	w, err := shp.Create(shpPath, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("GEOID", 10),
		shp.StringField("NAME", 40),
	}))
	for _, id := range order {
		poly := shp.Polygon(*shp.NewPolyLine(records[id]))
		row := int(w.Write(&poly))
		require.NoError(t, w.WriteAttribute(row, 0, id))
		require.NoError(t, w.WriteAttribute(row, 1, names[id]))
	}
	w.Close()
	// The writer names the attribute table "<base>dbf" without a dot.
	require.NoError(t, os.Rename(filepath.Join(dir, "townsdbf"), filepath.Join(dir, "towns.dbf")))

	zipPath := filepath.Join(dir, "towns.zip")
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		src, err := os.Open(filepath.Join(dir, "towns"+ext))
		require.NoError(t, err)
		dst, err := zw.Create("tl_test_cousub/towns" + ext)
		require.NoError(t, err)
		_, err = io.Copy(dst, src)
		require.NoError(t, err)
		require.NoError(t, src.Close())
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
	return zipPath
}

// clockwise ring (outer in shapefile terms).
func cwSquare(minX, minY, maxX, maxY float64) []shp.Point {
	return []shp.Point{{X: minX, Y: minY}, {X: minX, Y: maxY}, {X: maxX, Y: maxY}, {X: maxX, Y: minY}, {X: minX, Y: minY}}
}

// counter-clockwise ring (hole in shapefile terms).
func ccwSquare(minX, minY, maxX, maxY float64) []shp.Point {
	return []shp.Point{{X: minX, Y: minY}, {X: maxX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY}, {X: minX, Y: minY}}
}
