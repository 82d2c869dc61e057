package boundary

import (
	"sort"
	"strings"

	"github.com/sells-group/zip-mapper/internal/model"
)

// Format identifies how a region's boundary file is encoded.
type Format string

const (
	// FormatShapefile is a ZIP archive holding one ESRI shapefile (TIGER/Line).
	FormatShapefile Format = "shapefile"
	// FormatGeoJSON is a GeoJSON FeatureCollection of Polygon/MultiPolygon features.
	FormatGeoJSON Format = "geojson"
)

const tigerBaseURL = "https://www2.census.gov/geo/tiger/TIGER2024"

// Region is one entry of the region table: where its boundary dataset lives
// and how to frame it on a map.
type Region struct {
	ID        string           `json:"id" yaml:"id" mapstructure:"id"`
	Name      string           `json:"name" yaml:"name" mapstructure:"name"`
	URL       string           `json:"url" yaml:"url" mapstructure:"url"`
	Format    Format           `json:"format" yaml:"format" mapstructure:"format"`
	IDField   string           `json:"id_field,omitempty" yaml:"id_field,omitempty" mapstructure:"id_field"`
	NameField string           `json:"name_field,omitempty" yaml:"name_field,omitempty" mapstructure:"name_field"`
	Center    model.Coordinate `json:"center" yaml:"center" mapstructure:"center"`
	Zoom      int              `json:"zoom" yaml:"zoom" mapstructure:"zoom"`
}

// cousub returns the TIGER county-subdivision (town) region for a state.
func cousub(id, name, fips string, lat, lon float64, zoom int) Region {
	return Region{
		ID:        id,
		Name:      name + " towns",
		URL:       tigerBaseURL + "/COUSUB/tl_2024_" + fips + "_cousub.zip",
		Format:    FormatShapefile,
		IDField:   "GEOID",
		NameField: "NAME",
		Center:    model.Coordinate{Lat: lat, Lon: lon},
		Zoom:      zoom,
	}
}

// DefaultRegions is the built-in region table.
func DefaultRegions() []Region {
	return []Region{
		cousub("CT", "Connecticut", "09", 41.6032, -73.0877, 8),
		cousub("MA", "Massachusetts", "25", 42.4072, -71.3824, 8),
		cousub("ME", "Maine", "23", 45.2538, -69.4455, 7),
		cousub("NH", "New Hampshire", "33", 43.1939, -71.5724, 8),
		cousub("NJ", "New Jersey", "34", 40.0583, -74.4057, 8),
		cousub("NY", "New York", "36", 43.2994, -74.2179, 7),
		cousub("PA", "Pennsylvania", "42", 41.2033, -77.1945, 7),
		cousub("RI", "Rhode Island", "44", 41.5801, -71.4774, 9),
		cousub("VT", "Vermont", "50", 44.5588, -72.5778, 8),
		{
			ID:        "US",
			Name:      "United States",
			URL:       tigerBaseURL + "/STATE/tl_2024_us_state.zip",
			Format:    FormatShapefile,
			IDField:   "STUSPS",
			NameField: "NAME",
			Center:    model.Coordinate{Lat: 37.0902, Lon: -95.7129},
			Zoom:      4,
		},
	}
}

// NormalizeRegionID canonicalizes a region identifier for table lookups.
func NormalizeRegionID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Table maps region identifiers to their Region entry. It is read-only after
// construction.
type Table struct {
	regions map[string]Region
}

// NewTable builds a table from the defaults plus overrides. An override with
// the ID of a default replaces only the fields it sets.
func NewTable(overrides ...Region) *Table {
	t := &Table{regions: make(map[string]Region)}
	for _, r := range DefaultRegions() {
		t.regions[r.ID] = r
	}
	for _, o := range overrides {
		id := NormalizeRegionID(o.ID)
		if id == "" {
			continue
		}
		o.ID = id
		if base, ok := t.regions[id]; ok {
			o = merge(base, o)
		}
		if o.Format == "" {
			o.Format = formatFromURL(o.URL)
		}
		t.regions[id] = o
	}
	return t
}

func merge(base, o Region) Region {
	if o.Name != "" {
		base.Name = o.Name
	}
	if o.URL != "" {
		base.URL = o.URL
		base.Format = ""
	}
	if o.Format != "" {
		base.Format = o.Format
	}
	if o.IDField != "" {
		base.IDField = o.IDField
	}
	if o.NameField != "" {
		base.NameField = o.NameField
	}
	if o.Center.Valid() && (o.Center.Lat != 0 || o.Center.Lon != 0) {
		base.Center = o.Center
	}
	if o.Zoom > 0 {
		base.Zoom = o.Zoom
	}
	return base
}

func formatFromURL(u string) Format {
	lower := strings.ToLower(u)
	if strings.HasSuffix(lower, ".geojson") || strings.HasSuffix(lower, ".json") {
		return FormatGeoJSON
	}
	return FormatShapefile
}

// Lookup returns the region registered under id.
func (t *Table) Lookup(id string) (Region, bool) {
	r, ok := t.regions[NormalizeRegionID(id)]
	return r, ok
}

// Center returns the configured map framing for a region.
func (t *Table) Center(id string) (model.Viewport, bool) {
	r, ok := t.Lookup(id)
	if !ok || r.Zoom <= 0 {
		return model.Viewport{}, false
	}
	return model.Viewport{Center: r.Center, Zoom: r.Zoom}, true
}

// All returns every region sorted by ID.
func (t *Table) All() []Region {
	out := make([]Region, 0, len(t.regions))
	for _, r := range t.regions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
