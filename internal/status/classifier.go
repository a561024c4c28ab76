// Package status classifies readings against per-site thresholds
package status

import (
	"fmt"
	"sort"

	"github.com/abelzeko/riverstats/internal/entities"
)

// DefaultTolerance is the lake band used when a station does not set one
const DefaultTolerance = 0.02

const (
	LabelUnknown     = "Unknown"
	LabelNormalRange = "Normal operating range"
	LabelTooLow      = "Too low"
	LabelTooHigh     = "Too high"
	LabelBelowFlood  = "Below flood stage"
	LabelBelowNormal = "Below normal"
	LabelAboveNormal = "Above normal"
	LabelNormalLevel = "Normal level"
)

// Classifier maps readings to qualitative statuses using a fixed station table
type Classifier struct {
	stations map[string]entities.StationConfig
}

// NewClassifier copies the station table; flood stages are sorted by height
func NewClassifier(stations []entities.StationConfig) *Classifier {
	table := make(map[string]entities.StationConfig, len(stations))
	for _, st := range stations {
		stages := make([]entities.FloodStage, len(st.Stages))
		copy(stages, st.Stages)
		sort.SliceStable(stages, func(i, j int) bool {
			return stages[i].Height < stages[j].Height
		})
		st.Stages = stages
		table[st.ID] = st
	}
	return &Classifier{stations: table}
}

// Station returns the configuration for a site
func (c *Classifier) Station(site string) (entities.StationConfig, bool) {
	st, ok := c.stations[site]
	return st, ok
}

// Classify returns the status of a reading at a site. A missing reading or an
// unknown site yields the Unknown status.
func (c *Classifier) Classify(site string, reading *float64) entities.Status {
	st, ok := c.stations[site]
	if !ok || reading == nil {
		return unknown(site)
	}

	switch st.Type {
	case entities.StationRange:
		return classifyRange(st, *reading)
	case entities.StationFlood:
		return classifyFlood(st, *reading)
	case entities.StationLake:
		return classifyLake(st, *reading)
	}
	return unknown(site)
}

func unknown(site string) entities.Status {
	return entities.Status{Site: site, Level: entities.LevelUnknown, Label: LabelUnknown}
}

// classifyRange treats both bounds as inclusive
func classifyRange(st entities.StationConfig, v float64) entities.Status {
	switch {
	case v < st.Min:
		return entities.Status{Site: st.ID, Level: entities.LevelLow, Label: LabelTooLow, Message: st.LowCause}
	case v > st.Max:
		return entities.Status{Site: st.ID, Level: entities.LevelHigh, Label: LabelTooHigh, Message: st.HighCause}
	}
	return entities.Status{Site: st.ID, Level: entities.LevelNormal, Label: LabelNormalRange}
}

// classifyFlood returns the highest stage met or exceeded
func classifyFlood(st entities.StationConfig, v float64) entities.Status {
	for i := len(st.Stages) - 1; i >= 0; i-- {
		stage := st.Stages[i]
		if v >= stage.Height {
			return entities.Status{
				Site:    st.ID,
				Level:   entities.LevelFlood,
				Label:   stage.Name,
				Message: fmt.Sprintf("%s flood stage is %.1f ft", stage.Name, stage.Height),
			}
		}
	}
	return entities.Status{Site: st.ID, Level: entities.LevelNormal, Label: LabelBelowFlood}
}

func classifyLake(st entities.StationConfig, v float64) entities.Status {
	tol := st.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	low := st.Average * (1 - tol)
	high := st.Average * (1 + tol)

	switch {
	case v < low:
		return entities.Status{Site: st.ID, Level: entities.LevelLow, Label: LabelBelowNormal,
			Message: fmt.Sprintf("average is %.2f ft", st.Average)}
	case v > high:
		return entities.Status{Site: st.ID, Level: entities.LevelHigh, Label: LabelAboveNormal,
			Message: fmt.Sprintf("average is %.2f ft", st.Average)}
	}
	return entities.Status{Site: st.ID, Level: entities.LevelNormal, Label: LabelNormalLevel}
}
