package extract

import (
	"github.com/abelzeko/riverstats/internal/entities"
)

// precipitationSentinel is the upstream "sensor unavailable" code; anything at or
// below it (-901, -999, ...) is a placeholder rather than a measurement
const precipitationSentinel = -900.0

// Sanitize replaces known sentinel values. Precipitation at or below the sentinel
// becomes an explicit 0.00 in reading; every other metric passes through unchanged.
func Sanitize(r entities.ExtractedReading) entities.ExtractedReading {
	if r.Metric != entities.MetricPrecipitation || r.Value == nil || *r.Value > precipitationSentinel {
		return r
	}
	return entities.NewReading(r.Metric, entities.Float(0), "in", nil, r.Provenance)
}
