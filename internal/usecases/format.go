package usecases

import (
	"fmt"
	"strings"

	"github.com/abelzeko/riverstats/internal/entities"
)

const timeLayout = "2006-01-02 15:04 MST"

var trendMarks = map[entities.Trend]string{
	entities.TrendUp:      "⬆️",
	entities.TrendDown:    "⬇️",
	entities.TrendFlat:    "➡️",
	entities.TrendUnknown: "",
}

// FormatReservoir formats a reservoir report for display
func FormatReservoir(r entities.ReservoirReport) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s (USACE Data)\n\n", r.Name))

	if !r.Available {
		result.WriteString(fmt.Sprintf("⚠️ Could not load %s data.\n", r.Name))
		return result.String()
	}

	writeMetric(&result, "🌊 Elevation", r.Elevation, r.ElevationDelta, r.ElevationUnit)
	writeMetric(&result, "⬇️ Inflow", r.Inflow, r.InflowDelta, r.InflowUnit)
	writeMetric(&result, "⬆️ Outflow", r.Outflow, r.OutflowDelta, r.OutflowUnit)
	writeMetric(&result, "🗄️ Storage", r.Storage, r.StorageDelta, r.StorageUnit)
	result.WriteString(fmt.Sprintf("🌧️ Precipitation: %s\n", r.Precipitation))

	if r.Status.Label != "" {
		result.WriteString(fmt.Sprintf("\n📋 Status: %s", r.Status.Label))
		if r.Status.Message != "" {
			result.WriteString(fmt.Sprintf(" (%s)", r.Status.Message))
		}
		result.WriteString("\n")
	}
	result.WriteString(fmt.Sprintf("🕒 Last update: %s\n", r.FetchedAt.Format(timeLayout)))

	return result.String()
}

func writeMetric(b *strings.Builder, label, value string, delta *float64, unit string) {
	b.WriteString(fmt.Sprintf("%s: %s\n", label, value))
	if value == entities.NoData {
		return
	}
	text, trend := entities.FormatDelta(delta, unit)
	if mark := trendMarks[trend]; mark != "" {
		text += " " + mark
	}
	b.WriteString("   " + text + "\n")
}

// FormatSite formats one gauge snapshot for display
func FormatSite(s entities.SiteSnapshot) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("📍 %s (USGS %s)\n", s.Graph.Title, s.Graph.SiteNo))

	if s.Reading.Value != nil {
		result.WriteString(fmt.Sprintf("💧 Gage height: %.2f ft\n", *s.Reading.Value))
	} else {
		result.WriteString(fmt.Sprintf("💧 Gage height: %s\n", entities.NoData))
	}

	result.WriteString(fmt.Sprintf("📋 Status: %s", s.Status.Label))
	if s.Status.Message != "" {
		result.WriteString(fmt.Sprintf(" (%s)", s.Status.Message))
	}
	result.WriteString("\n")

	if !s.Reading.ObservedAt.IsZero() {
		result.WriteString(fmt.Sprintf("🕒 Observed: %s\n", s.Reading.ObservedAt.Format(timeLayout)))
	}
	if s.Graph.PageURL != "" {
		result.WriteString(fmt.Sprintf("🔗 %s\n", s.Graph.PageURL))
	}
	return result.String()
}

// FormatSites lists the gauges with their status, one per line
func FormatSites(sites []entities.SiteSnapshot) string {
	if len(sites) == 0 {
		return "No gauge sites available yet."
	}

	var result strings.Builder
	result.WriteString("Gauge sites:\n\n")
	for _, s := range sites {
		value := entities.NoData
		if s.Reading.Value != nil {
			value = fmt.Sprintf("%.2f ft", *s.Reading.Value)
		}
		result.WriteString(fmt.Sprintf("• %s (%s): %s, %s\n", s.Graph.Title, s.Graph.SiteNo, value, s.Status.Label))
	}
	return result.String()
}

// FormatBoard formats the whole board for display
func FormatBoard(b entities.Board) string {
	var result strings.Builder
	for _, r := range b.Reservoirs {
		result.WriteString(FormatReservoir(r))
		result.WriteString("\n")
	}
	result.WriteString(FormatSites(b.Sites))
	result.WriteString(fmt.Sprintf("\n🕒 Board updated: %s", b.UpdatedAt.Format(timeLayout)))
	return result.String()
}
