package extract

import (
	"errors"
	"testing"
	"time"

	"github.com/abelzeko/riverstats/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(kind entities.DocumentKind, body string) entities.RawDocument {
	return entities.RawDocument{
		Source:      "http://example.test/doc",
		Kind:        kind,
		Body:        []byte(body),
		RetrievedAt: time.Date(2025, 4, 18, 8, 0, 0, 0, time.UTC),
	}
}

const overviewPage = `
<html><body>
  <div class="station" id="caesar">
    <h3>Caesar Creek Lake</h3>
    <p>Elevation 849.90 ft</p><p>0.40</p>
  </div>
  <div class="station" id="brookville">
    <h3>Brookville Lake</h3>
    <table>
      <tr><td>Elevation</td><td>748.12 ft</td><td>0.05</td></tr>
      <tr><td>Inflow</td><td>1,234.5 cfs</td><td>Updated 2025</td><td>3.2</td></tr>
      <tr><td>Outflow</td><td>N/A</td></tr>
      <tr><td>Storage</td><td>184,600 acre-ft</td><td>-120</td></tr>
      <tr><td>Precipitation</td><td>-901 in</td></tr>
    </table>
  </div>
</body></html>`

func TestHTMLScrapeWithSelector(t *testing.T) {
	s := NewHTMLScrape(allSpecs, "#brookville")
	readings := ExtractAll(s, doc(entities.DocumentHTML, overviewPage), allSpecs)
	require.Len(t, readings, 5)

	elev := readings[0]
	require.True(t, elev.Found())
	assert.Equal(t, 748.12, *elev.Value)
	assert.Equal(t, 0.05, *elev.Delta)
	assert.Equal(t, "html", elev.Provenance.Strategy)

	inflow := readings[1]
	require.True(t, inflow.Found())
	assert.Equal(t, 1234.5, *inflow.Value)
	assert.Equal(t, 3.2, *inflow.Delta)

	outflow := readings[2]
	assert.False(t, outflow.Found())

	storage := readings[3]
	require.True(t, storage.Found())
	assert.Equal(t, 184600.0, *storage.Value)
	assert.Equal(t, "ac-ft", storage.Unit)
	assert.Equal(t, -120.0, *storage.Delta)

	precip := readings[4]
	require.True(t, precip.Found())
	assert.Equal(t, "0.00 in", entities.FormatValue(precip))
}

func TestHTMLScrapeWithoutSelectorTakesFirstStation(t *testing.T) {
	s := NewHTMLScrape(allSpecs, "")
	r := s.Extract(doc(entities.DocumentHTML, overviewPage), elevationSpec)
	require.True(t, r.Found())
	assert.Equal(t, 849.90, *r.Value)
}

func TestHTMLScrapeSelectorMissFallsBackToWholePage(t *testing.T) {
	s := NewHTMLScrape(allSpecs, "#nowhere")
	r := s.Extract(doc(entities.DocumentHTML, overviewPage), elevationSpec)
	require.True(t, r.Found())
	assert.Equal(t, 849.90, *r.Value)
}

func TestDailyReportText(t *testing.T) {
	report := "LOUISVILLE DISTRICT DAILY RESERVOIR REPORT 10/18/2026\n" +
		"CAESAR CREEK LAKE\n" +
		"  Elevation 849.90 ft  Change 0.40\n" +
		"BROOKVILLE LAKE\n" +
		"  Elevation 748.12 ft  Change -0.05\n" +
		"  Inflow 310 cfs  Outflow 250 cfs\n" +
		"  Precipitation 0.12 in\n"

	s := NewDailyReportText(allSpecs, []string{"Brookville"}, 4)
	readings := ExtractAll(s, doc(entities.DocumentText, report), allSpecs)

	elev := readings[0]
	require.True(t, elev.Found())
	assert.Equal(t, 748.12, *elev.Value)
	assert.Equal(t, -0.05, *elev.Delta)
	assert.Equal(t, "daily-report", elev.Provenance.Strategy)

	inflow := readings[1]
	require.True(t, inflow.Found())
	assert.Equal(t, 310.0, *inflow.Value)
	assert.Nil(t, inflow.Delta)

	outflow := readings[2]
	require.True(t, outflow.Found())
	assert.Equal(t, 250.0, *outflow.Value)

	assert.Equal(t, 0.12, *readings[4].Value)
}

const reportingPayload = `[
  {"name": "Caesar Creek Lake", "timeseries": [{"label": "Elevation", "latest_value": 849.9, "unit": "ft", "delta24hr": 0.4}]},
  {"name": "Brookville Lake", "location_code": "BROK1", "timeseries": [
    {"label": "Elevation", "latest_value": 748.12, "unit": "ft", "delta24hr": 0.05},
    {"label": "Inflow", "latest_value": "1,234.5", "unit": "CFS", "delta24hr": -12},
    {"label": "Outflow", "latest_value": null, "unit": "cfs", "delta24hr": 3},
    {"label": "Storage", "latest_value": 184600, "unit": "acre-ft", "delta24hr": null},
    {"label": "Precipitation (24hr)", "latest_value": -901, "unit": "in"}
  ]}
]`

func TestReportingAPI(t *testing.T) {
	s := NewReportingAPI([]string{"BROK1", "Brookville"})
	d := doc(entities.DocumentJSON, reportingPayload)
	require.NoError(t, s.Validate(d))

	readings := ExtractAll(s, d, allSpecs)

	elev := readings[0]
	require.True(t, elev.Found())
	assert.Equal(t, 748.12, *elev.Value)
	assert.Equal(t, 0.05, *elev.Delta)
	assert.Equal(t, "Elevation", elev.Provenance.Label)

	inflow := readings[1]
	require.True(t, inflow.Found())
	assert.Equal(t, 1234.5, *inflow.Value)
	assert.Equal(t, "cfs", inflow.Unit)
	assert.Equal(t, -12.0, *inflow.Delta)

	outflow := readings[2]
	assert.False(t, outflow.Found())
	assert.Nil(t, outflow.Delta)

	storage := readings[3]
	require.True(t, storage.Found())
	assert.Equal(t, "ac-ft", storage.Unit)
	assert.Nil(t, storage.Delta)

	precip := readings[4]
	require.True(t, precip.Found())
	assert.Equal(t, 0.0, *precip.Value)
	assert.Equal(t, "Precipitation (24hr)", precip.Provenance.Label)
}

func TestReportingAPIValidate(t *testing.T) {
	s := NewReportingAPI([]string{"Brookville"})

	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>oops</html>"},
		{"not a list", `{"name": "Brookville Lake"}`},
		{"no matching location", `[{"name": "Caesar Creek Lake", "timeseries": []}]`},
		{"timeseries wrong type", `[{"name": "Brookville Lake", "timeseries": {}}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(doc(entities.DocumentJSON, tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedShape))
		})
	}
}

func TestParseSeriesShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"values rows epoch", `{"values": [[1713427200000, 300.5, 0], [1713430800000, 310, 0], [1713434400000, null, 0]]}`},
		{"values-ts objects", `{"values-ts": [{"time": "2024-04-18T08:00:00Z", "value": 300.5}, {"time": "2024-04-18T09:00:00Z", "value": 310}]}`},
		{"valuesArray rows iso", `{"valuesArray": [["2024-04-18T09:00:00Z", 310], ["2024-04-18T08:00:00Z", 300.5]]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := ParseSeries([]byte(tt.body))
			require.Len(t, points, 2)
			assert.Equal(t, 300.5, points[0].Value)
			assert.Equal(t, 310.0, points[1].Value)
			assert.True(t, points[0].Time.Before(points[1].Time))
		})
	}

	assert.Empty(t, ParseSeries([]byte(`{"other": []}`)))
}

func TestCatalogSeries(t *testing.T) {
	body := `{"name": "BROK1.Flow-Res In.Inst.15Minutes.0.Ccp-Rev", "units": "cfs", "values": [
		["2024-04-17T08:00:00Z", 280],
		["2024-04-17T20:00:00Z", 295],
		["2024-04-18T08:00:00Z", 310.5]
	]}`

	s := NewCatalogSeries(0)
	d := doc(entities.DocumentJSON, body)
	require.NoError(t, s.Validate(d))

	r := s.Extract(d, inflowSpec)
	require.True(t, r.Found())
	assert.Equal(t, 310.5, *r.Value)
	assert.Equal(t, "cfs", r.Unit)
	require.NotNil(t, r.Delta)
	assert.InDelta(t, 30.5, *r.Delta, 1e-9)
	assert.Equal(t, "BROK1.Flow-Res In.Inst.15Minutes.0.Ccp-Rev", r.Provenance.Label)
}

func TestCatalogSeriesNoPriorDay(t *testing.T) {
	body := `{"values": [["2024-04-18T07:00:00Z", 300], ["2024-04-18T08:00:00Z", 310]]}`
	r := NewCatalogSeries(time.Hour).Extract(doc(entities.DocumentJSON, body), inflowSpec)
	require.True(t, r.Found())
	assert.Nil(t, r.Delta)
	assert.Equal(t, "cfs", r.Unit)
}

func TestCatalogSeriesValidate(t *testing.T) {
	s := NewCatalogSeries(0)
	assert.ErrorIs(t, s.Validate(doc(entities.DocumentJSON, `[]`)), ErrMalformedShape)
	assert.ErrorIs(t, s.Validate(doc(entities.DocumentJSON, `{"entries": []}`)), ErrMalformedShape)
	assert.ErrorIs(t, s.Validate(doc(entities.DocumentJSON, `not json`)), ErrMalformedShape)
}
