package entities

import "time"

// StationType selects the classification policy for a station
type StationType string

const (
	StationRange StationType = "range" // Operational min/max bounds
	StationFlood StationType = "flood" // Ordered flood stages
	StationLake  StationType = "lake"  // Long-run average with tolerance band
)

// FloodStage is a named flood severity threshold in feet
type FloodStage struct {
	Name   string  `yaml:"name" json:"name"`
	Height float64 `yaml:"height" json:"height"`
}

// StationConfig holds the static thresholds for a monitored site
type StationConfig struct {
	ID   string      `yaml:"id" json:"id"`
	Name string      `yaml:"name" json:"name"`
	Type StationType `yaml:"type" json:"type"`

	// Range stations
	Min       float64 `yaml:"min" json:"min,omitempty"`
	Max       float64 `yaml:"max" json:"max,omitempty"`
	LowCause  string  `yaml:"low_cause" json:"low_cause,omitempty"`
	HighCause string  `yaml:"high_cause" json:"high_cause,omitempty"`

	// Flood stations
	Stages []FloodStage `yaml:"stages" json:"stages,omitempty"`

	// Lake stations
	Average   float64 `yaml:"average" json:"average,omitempty"`
	Tolerance float64 `yaml:"tolerance" json:"tolerance,omitempty"` // Fraction, e.g. 0.02
}

// StatusLevel is the coarse classification outcome
type StatusLevel string

const (
	LevelUnknown StatusLevel = "unknown"
	LevelNormal  StatusLevel = "normal"
	LevelLow     StatusLevel = "low"
	LevelHigh    StatusLevel = "high"
	LevelFlood   StatusLevel = "flood"
)

// Status is the qualitative state of a site
type Status struct {
	Site    string      `json:"site" db:"site"`
	Level   StatusLevel `json:"level" db:"level"`
	Label   string      `json:"label" db:"label"`
	Message string      `json:"message,omitempty" db:"message"`
}

// SiteGraph links a USGS site to its hydrograph image and page
type SiteGraph struct {
	SiteNo   string `json:"site_no"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
	PageURL  string `json:"page_url"`
}

// SiteReading is the latest gage height for a site
type SiteReading struct {
	SiteNo     string    `json:"site_no"`
	Value      *float64  `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
}

// SiteSnapshot combines everything displayed for one site
type SiteSnapshot struct {
	Graph   SiteGraph   `json:"graph"`
	Reading SiteReading `json:"reading"`
	Status  Status      `json:"status"`
}
