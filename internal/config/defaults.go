package config

import (
	"os"

	"github.com/abelzeko/riverstats/internal/entities"
)

const (
	defaultReportingURL   = "https://water.usace.army.mil/cda/reporting/providers/lrl/locations"
	defaultOverviewURL    = "https://www.lrl-wc.usace.army.mil/reports/lkreport.html"
	defaultDailyReportURL = "https://www.lrl.usace.army.mil/Missions/Civil-Works/Water-Information/Daily-Reports/"
)

// ReservoirMetrics returns the metric specs used for USACE reservoir pages
func ReservoirMetrics() []entities.MetricSpec {
	return []entities.MetricSpec{
		{
			Kind:          entities.MetricElevation,
			Labels:        []string{"Pool Elevation", "Elevation", "Lake Level"},
			Units:         []string{"ft", "feet"},
			DefaultUnit:   "ft",
			ExpectDelta:   true,
			SeriesNeedles: [][]string{{"elev"}},
		},
		{
			Kind:          entities.MetricInflow,
			Labels:        []string{"Inflow"},
			Units:         []string{"cfs"},
			DefaultUnit:   "cfs",
			ExpectDelta:   true,
			SeriesNeedles: [][]string{{"flow-res in"}, {"inflow"}},
		},
		{
			Kind:          entities.MetricOutflow,
			Labels:        []string{"Outflow", "Release"},
			Units:         []string{"cfs"},
			DefaultUnit:   "cfs",
			ExpectDelta:   true,
			SeriesNeedles: [][]string{{"flow-res out"}, {"outflow"}},
		},
		{
			Kind:          entities.MetricStorage,
			Labels:        []string{"Storage"},
			Units:         []string{"ac-ft", "acre-ft", "acre-feet", "ac ft", "acft"},
			DefaultUnit:   "ac-ft",
			ExpectDelta:   true,
			SeriesNeedles: [][]string{{"stor"}},
		},
		{
			Kind:          entities.MetricPrecipitation,
			Labels:        []string{"Precipitation", "Precip"},
			Units:         []string{"in", "inches"},
			DefaultUnit:   "in",
			SeriesNeedles: [][]string{{"precip"}},
		},
	}
}

// DefaultReservoirs returns the built-in reservoir table. Source URLs can be
// overridden with USACE_REPORTING_URL, USACE_OVERVIEW_URL and USACE_DAILY_REPORT_URL.
func DefaultReservoirs() []ReservoirConfig {
	return []ReservoirConfig{
		{
			ID:        "brookville",
			Name:      "Brookville Lake",
			StationID: "brookville",
			Hints:     []string{"BROK1", "BROOKVILLE", "BROOKVILLE LAKE", "BROOKVILLE LK", "BROOKVILLE DAM"},
			Sources: []SourceConfig{
				{Type: SourceReportingAPI, URL: envOrDefault("USACE_REPORTING_URL", defaultReportingURL)},
				{Type: SourceCatalog},
				{Type: SourceHTML, URL: envOrDefault("USACE_OVERVIEW_URL", defaultOverviewURL), Selector: os.Getenv("USACE_OVERVIEW_SELECTOR")},
				{Type: SourceDailyReport, URL: envOrDefault("USACE_DAILY_REPORT_URL", defaultDailyReportURL), LinkText: "Lake Report"},
			},
			Metrics: ReservoirMetrics(),
		},
	}
}

// DefaultSites returns the USGS gauges shown on the board
func DefaultSites() []SiteConfig {
	return []SiteConfig{
		{SiteNo: "03274650", Title: "Mad River"},
		{SiteNo: "03276000", Title: "Buck Creek"},
		{SiteNo: "03275000", Title: "Little Miami River"},
		{SiteNo: "03276500", Title: "Great Miami River"},
		{SiteNo: "03275990", Title: "Lagonda Ave"},
		{SiteNo: "03274615", Title: "East Fork Whitewater River near Abington"},
	}
}

// DefaultStations returns the classification thresholds for the default sites
// and reservoirs
func DefaultStations() []entities.StationConfig {
	return []entities.StationConfig{
		{
			ID: "03274650", Name: "Mad River", Type: entities.StationFlood,
			Stages: []entities.FloodStage{
				{Name: "Action", Height: 8}, {Name: "Minor", Height: 10},
				{Name: "Moderate", Height: 12}, {Name: "Major", Height: 14},
			},
		},
		{
			ID: "03276000", Name: "Buck Creek", Type: entities.StationRange,
			Min: 2.26, Max: 6.5,
			LowCause:  "Reduced release from C.J. Brown Reservoir",
			HighCause: "Runoff from upstream rainfall",
		},
		{
			ID: "03275000", Name: "Little Miami River", Type: entities.StationFlood,
			Stages: []entities.FloodStage{
				{Name: "Action", Height: 11}, {Name: "Minor", Height: 13},
				{Name: "Moderate", Height: 16}, {Name: "Major", Height: 20},
			},
		},
		{
			ID: "03276500", Name: "Great Miami River", Type: entities.StationFlood,
			Stages: []entities.FloodStage{
				{Name: "Action", Height: 10}, {Name: "Minor", Height: 14},
				{Name: "Moderate", Height: 17}, {Name: "Major", Height: 19},
			},
		},
		{
			ID: "03275990", Name: "Lagonda Ave", Type: entities.StationRange,
			Min: 1.5, Max: 5,
			LowCause:  "Dry weather baseflow",
			HighCause: "Runoff from upstream rainfall",
		},
		{
			ID: "03274615", Name: "East Fork Whitewater River near Abington", Type: entities.StationFlood,
			Stages: []entities.FloodStage{
				{Name: "Action", Height: 9}, {Name: "Minor", Height: 11},
				{Name: "Moderate", Height: 13}, {Name: "Major", Height: 15},
			},
		},
		{
			ID: "brookville", Name: "Brookville Lake", Type: entities.StationLake,
			Average: 748, Tolerance: 0.02,
		},
	}
}
