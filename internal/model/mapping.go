package model

import "strings"

// Strategy selects how the map viewport is chosen.
type Strategy string

const (
	StrategyNational   Strategy = "national"
	StrategyRegion     Strategy = "region"
	StrategyAutoBounds Strategy = "auto"
)

// ParseStrategy maps user input to a Strategy. Unknown or empty values
// fall back to StrategyNational.
func ParseStrategy(s string) Strategy {
	v := Strategy(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case StrategyRegion, StrategyAutoBounds:
		return v
	case "autobounds", "auto_bounds", "bounds":
		return StrategyAutoBounds
	default:
		return StrategyNational
	}
}

// Viewport is the map center and zoom presented to the user.
// Zoom runs from 0 (world) to 18 (building).
type Viewport struct {
	Center Coordinate `json:"center"`
	Zoom   int        `json:"zoom"`
}

// MatchResult lists the polygons containing a coordinate. An empty
// PolygonIDs slice is a normal "no match" outcome.
type MatchResult struct {
	Coordinate Coordinate `json:"coordinate"`
	PolygonIDs []string   `json:"polygon_ids"`
	Names      []string   `json:"names,omitempty"`
}
