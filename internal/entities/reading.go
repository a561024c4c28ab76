// Package entities contains the core domain objects for the riverstats application
package entities

import (
	"time"
)

// DocumentKind describes the shape of a raw upstream document
type DocumentKind string

const (
	DocumentHTML DocumentKind = "html"
	DocumentText DocumentKind = "text"
	DocumentJSON DocumentKind = "json"
)

// RawDocument is an upstream response captured during a single poll cycle.
// It is never persisted and never mutated after creation.
type RawDocument struct {
	Source      string       // URL the document was retrieved from
	Kind        DocumentKind // How the body should be interpreted
	Body        []byte
	RetrievedAt time.Time
}

// Text returns the document body as a string
func (d RawDocument) Text() string {
	return string(d.Body)
}

// MetricKind names a reservoir metric
type MetricKind string

const (
	MetricElevation     MetricKind = "elevation"
	MetricInflow        MetricKind = "inflow"
	MetricOutflow       MetricKind = "outflow"
	MetricStorage       MetricKind = "storage"
	MetricPrecipitation MetricKind = "precipitation"
)

// MetricSpec describes what to look for when extracting one metric
type MetricSpec struct {
	Kind        MetricKind `yaml:"kind"`
	Labels      []string   `yaml:"labels"`       // Anchors searched for, in order
	Units       []string   `yaml:"units"`        // Acceptable unit tokens
	DefaultUnit string     `yaml:"default_unit"` // Used when no unit token is found
	ExpectDelta bool       `yaml:"expect_delta"` // Whether a 24 hour change follows the value

	// SeriesNeedles lists alternative term sets used to pick a time-series
	// name from the catalog. Each inner slice must match entirely.
	SeriesNeedles [][]string `yaml:"series_needles"`
}

// Provenance records where a reading was found
type Provenance struct {
	Strategy   string `json:"strategy"`
	Source     string `json:"source"`
	Label      string `json:"label,omitempty"`
	Offset     int    `json:"offset"`
	Positional bool   `json:"positional,omitempty"` // No unit found, first-two-numbers fallback
}

// ExtractedReading is the best-effort result of extracting one metric from one document
type ExtractedReading struct {
	Metric     MetricKind `json:"metric"`
	Value      *float64   `json:"value"`
	Unit       string     `json:"unit,omitempty"`
	Delta      *float64   `json:"delta"`
	Provenance Provenance `json:"provenance"`
}

// NewReading builds a reading. A delta without a value is dropped.
func NewReading(metric MetricKind, value *float64, unit string, delta *float64, prov Provenance) ExtractedReading {
	if value == nil {
		delta = nil
	}
	return ExtractedReading{
		Metric:     metric,
		Value:      value,
		Unit:       unit,
		Delta:      delta,
		Provenance: prov,
	}
}

// NoReading returns an empty reading for the metric
func NoReading(metric MetricKind, prov Provenance) ExtractedReading {
	return ExtractedReading{Metric: metric, Provenance: prov}
}

// Found reports whether a primary value was extracted
func (r ExtractedReading) Found() bool {
	return r.Value != nil
}

// Float returns a pointer to a copy of v
func Float(v float64) *float64 {
	return &v
}

// SeriesPoint is a single time-series observation
type SeriesPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}
