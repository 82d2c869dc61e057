package model

import (
	"fmt"
	"strings"
)

// ResultStatus describes how a postal code lookup ended.
type ResultStatus string

const (
	StatusResolved     ResultStatus = "resolved"
	StatusNotFound     ResultStatus = "not_found"     // stable negative, cached
	StatusLookupFailed ResultStatus = "lookup_failed" // transient, never cached
)

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is within WGS84 bounds.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Lat, c.Lon)
}

// NormalizePostalCode trims surrounding whitespace. Postal codes are not
// format-validated since providers differ by country.
func NormalizePostalCode(code string) string {
	return strings.TrimSpace(code)
}

// GeocodeResult is the outcome of resolving one postal code. Exactly one of
// Coordinate and Error is set.
type GeocodeResult struct {
	PostalCode string       `json:"postal_code"`
	Label      string       `json:"label"`
	Status     ResultStatus `json:"status"`
	Coordinate *Coordinate  `json:"coordinate,omitempty"`
	Error      string       `json:"error,omitempty"`
	Cached     bool         `json:"cached"`
}

// Resolved reports whether the result carries a coordinate.
func (r GeocodeResult) Resolved() bool {
	return r.Coordinate != nil
}

// NewResolved builds a successful result.
func NewResolved(code string, c Coordinate) GeocodeResult {
	return GeocodeResult{
		PostalCode: code,
		Label:      markerLabel(code),
		Status:     StatusResolved,
		Coordinate: &c,
	}
}

// NewNotFound builds a result for a code the provider had no candidate for.
func NewNotFound(code string) GeocodeResult {
	return GeocodeResult{
		PostalCode: code,
		Label:      markerLabel(code),
		Status:     StatusNotFound,
		Error:      "not found",
	}
}

// NewLookupFailed builds a result for a transport or provider failure.
func NewLookupFailed(code string, cause error) GeocodeResult {
	return GeocodeResult{
		PostalCode: code,
		Label:      markerLabel(code),
		Status:     StatusLookupFailed,
		Error:      "lookup failed: " + cause.Error(),
	}
}

func markerLabel(code string) string {
	return "Zip: " + code
}
