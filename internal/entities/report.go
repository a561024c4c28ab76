package entities

import (
	"fmt"
	"time"
)

// NoData marks a value that could not be obtained
const NoData = "N/A"

// ReservoirReport is the display record for one reservoir
type ReservoirReport struct {
	Reservoir string    `json:"reservoir"`
	Name      string    `json:"name"`
	FetchedAt time.Time `json:"fetched_at"`
	Available bool      `json:"available"` // False when every source failed

	Elevation      string   `json:"elevation"`
	ElevationDelta *float64 `json:"elevation_delta"`
	ElevationUnit  string   `json:"elevation_unit"`

	Inflow      string   `json:"inflow"`
	InflowDelta *float64 `json:"inflow_delta"`
	InflowUnit  string   `json:"inflow_unit"`

	Outflow      string   `json:"outflow"`
	OutflowDelta *float64 `json:"outflow_delta"`
	OutflowUnit  string   `json:"outflow_unit"`

	Storage      string   `json:"storage"`
	StorageDelta *float64 `json:"storage_delta"`
	StorageUnit  string   `json:"storage_unit"`

	Precipitation string `json:"precipitation"`

	Status Status `json:"status"`

	InflowHistory  []SeriesPoint `json:"inflow_history,omitempty"`
	OutflowHistory []SeriesPoint `json:"outflow_history,omitempty"`

	Readings []ExtractedReading `json:"readings"`
}

// FormatValue renders a reading as "<number> <unit>", or NoData when absent
func FormatValue(r ExtractedReading) string {
	if r.Value == nil {
		return NoData
	}
	if r.Unit == "" {
		return fmt.Sprintf("%.2f", *r.Value)
	}
	return fmt.Sprintf("%.2f %s", *r.Value, r.Unit)
}

// NewReservoirReport assembles the metric-keyed record from extracted readings.
// Metrics without a reading render as NoData.
func NewReservoirReport(id, name string, fetchedAt time.Time, readings []ExtractedReading) ReservoirReport {
	report := ReservoirReport{
		Reservoir:     id,
		Name:          name,
		FetchedAt:     fetchedAt,
		Elevation:     NoData,
		Inflow:        NoData,
		Outflow:       NoData,
		Storage:       NoData,
		Precipitation: NoData,
		Readings:      readings,
	}

	for _, r := range readings {
		if r.Found() {
			report.Available = true
		}
		switch r.Metric {
		case MetricElevation:
			report.Elevation, report.ElevationDelta, report.ElevationUnit = FormatValue(r), r.Delta, r.Unit
		case MetricInflow:
			report.Inflow, report.InflowDelta, report.InflowUnit = FormatValue(r), r.Delta, r.Unit
		case MetricOutflow:
			report.Outflow, report.OutflowDelta, report.OutflowUnit = FormatValue(r), r.Delta, r.Unit
		case MetricStorage:
			report.Storage, report.StorageDelta, report.StorageUnit = FormatValue(r), r.Delta, r.Unit
		case MetricPrecipitation:
			report.Precipitation = FormatValue(r)
		}
	}

	return report
}

// Reading returns the extracted reading for a metric, if present
func (r ReservoirReport) Reading(kind MetricKind) (ExtractedReading, bool) {
	for _, reading := range r.Readings {
		if reading.Metric == kind {
			return reading, true
		}
	}
	return ExtractedReading{}, false
}

// Trend is the direction of a 24 hour change
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendFlat    Trend = "flat"
	TrendUnknown Trend = "unknown"
)

// FormatDelta renders a 24 hour change line and its trend for colour mapping
func FormatDelta(delta *float64, unit string) (string, Trend) {
	if delta == nil {
		return "24 hour change: N/A", TrendUnknown
	}

	d := *delta
	trend := TrendFlat
	sign := ""
	switch {
	case d > 0:
		trend = TrendUp
		sign = "+"
	case d < 0:
		trend = TrendDown
	}

	text := fmt.Sprintf("24 hour change: %s%.2f", sign, d)
	if unit != "" {
		text += " " + unit
	}
	return text, trend
}
