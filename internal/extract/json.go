package extract

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/abelzeko/riverstats/internal/entities"
	"github.com/tidwall/gjson"
)

// locationNameFields are the keys a reporting API location may be named by
var locationNameFields = []string{"name", "public_name", "publicName", "location_code", "code", "description"}

// ReportingAPI reads the reservoir reporting API: a list of locations, each with a
// timeseries array of {label, latest_value, unit, delta24hr} records.
type ReportingAPI struct {
	hints []string
}

// NewReportingAPI creates a reporting API strategy. hints select the location
// by case-insensitive substring of its name fields.
func NewReportingAPI(hints []string) *ReportingAPI {
	return &ReportingAPI{hints: hints}
}

// Name implements Strategy
func (a *ReportingAPI) Name() string {
	return "reporting-api"
}

// Validate implements Validator. The payload must be a JSON array holding a matching
// location with a timeseries array.
func (a *ReportingAPI) Validate(doc entities.RawDocument) error {
	if !gjson.ValidBytes(doc.Body) {
		return fmt.Errorf("%w: %s is not valid JSON", ErrMalformedShape, doc.Source)
	}
	root := gjson.ParseBytes(doc.Body)
	if !root.IsArray() {
		return fmt.Errorf("%w: %s is not a list of locations", ErrMalformedShape, doc.Source)
	}
	loc, ok := a.location(root)
	if !ok {
		return fmt.Errorf("%w: no location matching %v in %s", ErrMalformedShape, a.hints, doc.Source)
	}
	if !loc.Get("timeseries").IsArray() {
		return fmt.Errorf("%w: location has no timeseries array in %s", ErrMalformedShape, doc.Source)
	}
	return nil
}

// Extract implements Strategy
func (a *ReportingAPI) Extract(doc entities.RawDocument, spec entities.MetricSpec) entities.ExtractedReading {
	prov := entities.Provenance{Strategy: a.Name(), Source: doc.Source}

	root := gjson.ParseBytes(doc.Body)
	loc, ok := a.location(root)
	if !ok {
		return entities.NoReading(spec.Kind, prov)
	}

	series := loc.Get("timeseries").Array()
	for _, label := range spec.Labels {
		idx, ts, ok := findSeries(series, label)
		if !ok {
			continue
		}

		p := prov
		p.Label = ts.Get("label").String()
		p.Offset = idx

		value := jsonNumber(ts.Get("latest_value"))
		if value == nil {
			continue
		}

		unit := CanonicalUnit(ts.Get("unit").String())
		if unit == "" {
			unit = CanonicalUnit(spec.DefaultUnit)
		}

		var delta *float64
		if spec.ExpectDelta {
			delta = jsonNumber(ts.Get("delta24hr"))
		}
		return entities.NewReading(spec.Kind, value, unit, delta, p)
	}

	return entities.NoReading(spec.Kind, prov)
}

func (a *ReportingAPI) location(root gjson.Result) (gjson.Result, bool) {
	for _, loc := range root.Array() {
		for _, field := range locationNameFields {
			name := loc.Get(field).String()
			if name == "" {
				continue
			}
			for _, hint := range a.hints {
				if _, ok := LocateLabel(name, hint); ok {
					return loc, true
				}
			}
		}
	}
	return gjson.Result{}, false
}

// findSeries prefers an exact label match and falls back to a substring match
func findSeries(series []gjson.Result, label string) (int, gjson.Result, bool) {
	for i, ts := range series {
		if strings.EqualFold(strings.TrimSpace(ts.Get("label").String()), label) {
			return i, ts, true
		}
	}
	for i, ts := range series {
		if _, ok := LocateLabel(ts.Get("label").String(), label); ok {
			return i, ts, true
		}
	}
	return -1, gjson.Result{}, false
}

// jsonNumber accepts numbers and number-shaped strings ("1,234.5"); null and
// anything else is absent
func jsonNumber(r gjson.Result) *float64 {
	switch r.Type {
	case gjson.Number:
		return entities.Float(r.Num)
	case gjson.String:
		if v, ok := ParseNumber(r.Str); ok {
			return entities.Float(v)
		}
	}
	return nil
}

// seriesValueKeys are the alternative keys a time-series payload keeps its values under
var seriesValueKeys = []string{"values", "values-ts", "valuesArray"}

// CatalogSeries reads a single time-series query result. The latest value is the
// reading and the change against the value nearest 24 hours earlier is the delta.
type CatalogSeries struct {
	deltaTolerance time.Duration
}

// NewCatalogSeries creates a time-series strategy. A delta is only reported when a
// point exists within tolerance of 24 hours before the latest one.
func NewCatalogSeries(tolerance time.Duration) *CatalogSeries {
	if tolerance <= 0 {
		tolerance = 3 * time.Hour
	}
	return &CatalogSeries{deltaTolerance: tolerance}
}

// Name implements Strategy
func (c *CatalogSeries) Name() string {
	return "catalog-series"
}

// Validate implements Validator
func (c *CatalogSeries) Validate(doc entities.RawDocument) error {
	if !gjson.ValidBytes(doc.Body) {
		return fmt.Errorf("%w: %s is not valid JSON", ErrMalformedShape, doc.Source)
	}
	root := gjson.ParseBytes(doc.Body)
	if !root.IsObject() {
		return fmt.Errorf("%w: %s is not a time-series object", ErrMalformedShape, doc.Source)
	}
	for _, key := range seriesValueKeys {
		if root.Get(key).IsArray() {
			return nil
		}
	}
	return fmt.Errorf("%w: %s has no values array", ErrMalformedShape, doc.Source)
}

// Extract implements Strategy
func (c *CatalogSeries) Extract(doc entities.RawDocument, spec entities.MetricSpec) entities.ExtractedReading {
	root := gjson.ParseBytes(doc.Body)
	prov := entities.Provenance{
		Strategy: c.Name(),
		Source:   doc.Source,
		Label:    root.Get("name").String(),
	}

	points := ParseSeries(doc.Body)
	if len(points) == 0 {
		return entities.NoReading(spec.Kind, prov)
	}

	latest := points[len(points)-1]
	prov.Offset = len(points) - 1

	unit := CanonicalUnit(root.Get("units").String())
	if unit == "" {
		unit = CanonicalUnit(spec.DefaultUnit)
	}

	var delta *float64
	if spec.ExpectDelta {
		if prior, ok := nearest(points, latest.Time.Add(-24*time.Hour), c.deltaTolerance); ok {
			delta = entities.Float(latest.Value - prior.Value)
		}
	}

	return entities.NewReading(spec.Kind, entities.Float(latest.Value), unit, delta, prov)
}

// ParseSeries reads time-series points from any of the known payload shapes:
// rows of [time, value] or objects of {time, value}, under "values", "values-ts"
// or "valuesArray". Null values and unparseable times are skipped. Points are
// returned sorted by time.
func ParseSeries(body []byte) []entities.SeriesPoint {
	root := gjson.ParseBytes(body)

	var rows []gjson.Result
	for _, key := range seriesValueKeys {
		if v := root.Get(key); v.IsArray() {
			rows = v.Array()
			break
		}
	}

	points := make([]entities.SeriesPoint, 0, len(rows))
	for _, row := range rows {
		var t, v gjson.Result
		switch {
		case row.IsArray():
			cols := row.Array()
			if len(cols) < 2 {
				continue
			}
			t, v = cols[0], cols[1]
		case row.IsObject():
			t, v = row.Get("time"), row.Get("value")
		default:
			continue
		}

		ts, ok := seriesTime(t)
		value := jsonNumber(v)
		if !ok || value == nil {
			continue
		}
		points = append(points, entities.SeriesPoint{Time: ts, Value: *value})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})
	return points
}

// seriesTime accepts epoch milliseconds or ISO-8601 strings
func seriesTime(r gjson.Result) (time.Time, bool) {
	switch r.Type {
	case gjson.Number:
		return time.UnixMilli(r.Int()).UTC(), true
	case gjson.String:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, r.Str); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func nearest(points []entities.SeriesPoint, target time.Time, tolerance time.Duration) (entities.SeriesPoint, bool) {
	var best entities.SeriesPoint
	bestDiff := tolerance + 1
	for _, p := range points {
		diff := p.Time.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = p, diff
		}
	}
	return best, bestDiff <= tolerance
}
