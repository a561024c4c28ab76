package usecases

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/abelzeko/riverstats/internal/config"
	"github.com/abelzeko/riverstats/internal/entities"
	"github.com/abelzeko/riverstats/internal/integration"
	"github.com/abelzeko/riverstats/internal/integration/openai"
	"github.com/abelzeko/riverstats/internal/observability"
	"github.com/abelzeko/riverstats/internal/repository"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 4, 18, 8, 0, 0, 0, time.UTC)

const overviewHTML = `<html><body>
<div id="brookville">
  <h3>Brookville Lake</h3>
  <table>
    <tr><td>Pool Elevation</td><td>748.12 ft</td><td>0.05</td></tr>
    <tr><td>Inflow</td><td>1,234.5 cfs</td><td>3.2</td></tr>
    <tr><td>Outflow</td><td>N/A</td></tr>
    <tr><td>Storage</td><td>184,600 ac-ft</td><td>-120</td></tr>
    <tr><td>Precipitation</td><td>-901 in</td></tr>
  </table>
</div>
</body></html>`

const outflowSeries = `{"units": "cfs", "values": [
  ["2025-04-17T08:00:00Z", 240],
  ["2025-04-18T08:00:00Z", 250]
]}`

const inflowSeries = `{"units": "cfs", "values": [
  ["2025-04-17T08:00:00Z", 1200],
  ["2025-04-18T08:00:00Z", 1234.5]
]}`

type fakeDocs struct {
	reporting   error
	reportBody  string
	overview    string
	overviewErr error
	dailyCalls  int
}

func (f *fakeDocs) FetchReportingAPI(ctx context.Context, apiURL string) (entities.RawDocument, error) {
	if f.reporting != nil {
		return entities.RawDocument{}, f.reporting
	}
	return entities.RawDocument{Source: apiURL, Kind: entities.DocumentJSON, Body: []byte(f.reportBody)}, nil
}

func (f *fakeDocs) FetchOverview(ctx context.Context, pageURL string) (entities.RawDocument, error) {
	if f.overviewErr != nil {
		return entities.RawDocument{}, f.overviewErr
	}
	return entities.RawDocument{Source: pageURL, Kind: entities.DocumentHTML, Body: []byte(f.overview)}, nil
}

func (f *fakeDocs) FetchDailyReport(ctx context.Context, listURL, linkText string) (entities.RawDocument, error) {
	f.dailyCalls++
	return entities.RawDocument{}, fmt.Errorf("%w: listing unavailable", integration.ErrNetwork)
}

type fakeCatalog struct {
	names   []string
	series  map[string]string
	err     error
	fetched []string
}

func (f *fakeCatalog) Discover(ctx context.Context, hints []string) ([]string, error) {
	return f.names, f.err
}

func (f *fakeCatalog) FetchRecent(ctx context.Context, name string, days int) (entities.RawDocument, error) {
	f.fetched = append(f.fetched, name)
	body, ok := f.series[name]
	if !ok {
		return entities.RawDocument{}, fmt.Errorf("%w: no such series", integration.ErrNetwork)
	}
	return entities.RawDocument{Source: "cwms:" + name, Kind: entities.DocumentJSON, Body: []byte(body)}, nil
}

type fakeGauges struct {
	heights map[string]entities.SiteReading
	err     error
}

func (f *fakeGauges) Sites() []config.SiteConfig {
	return []config.SiteConfig{
		{SiteNo: "03276000", Title: "Buck Creek"},
		{SiteNo: "03276500", Title: "Great Miami River"},
	}
}

func (f *fakeGauges) SiteGraphs() []entities.SiteGraph {
	var graphs []entities.SiteGraph
	for _, s := range f.Sites() {
		graphs = append(graphs, entities.SiteGraph{SiteNo: s.SiteNo, Title: s.Title})
	}
	return graphs
}

func (f *fakeGauges) GageHeights(ctx context.Context) (map[string]entities.SiteReading, error) {
	return f.heights, f.err
}

type fakeAgent struct {
	resp *openai.AgentResponse
	err  error
}

func (f *fakeAgent) InterpretUserQuery(ctx context.Context, userMessage string, sites []openai.KnownSite, reservoirs []string) (*openai.AgentResponse, error) {
	return f.resp, f.err
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func testConfig() *config.Config {
	return &config.Config{
		WindowSize: 4000,
		CWMS:       config.CWMSConfig{HistoryDays: 7},
		Reservoirs: []config.ReservoirConfig{{
			ID:        "brookville",
			Name:      "Brookville Lake",
			StationID: "brookville",
			Hints:     []string{"BROK1", "Brookville"},
			Sources: []config.SourceConfig{
				{Type: config.SourceReportingAPI, URL: "http://api.test"},
				{Type: config.SourceHTML, URL: "http://overview.test", Selector: "#brookville"},
				{Type: config.SourceCatalog},
				{Type: config.SourceDailyReport, URL: "http://reports.test", LinkText: "Lake Report"},
			},
			Metrics: config.ReservoirMetrics(),
		}},
		Stations: config.DefaultStations(),
	}
}

func newTestUseCase(t *testing.T, docs *fakeDocs, catalog *fakeCatalog, gauges *fakeGauges, agent openai.OpenAIService) (*BoardUseCase, *observability.Metrics) {
	t.Helper()
	repo, err := repository.NewSQLiteSnapshotRepository(filepath.Join(t.TempDir(), "board.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	metrics := observability.NewMetricsForTesting()
	deps := Deps{
		Repo:    repo,
		Docs:    docs,
		Gauges:  gauges,
		OpenAI:  agent,
		Metrics: metrics,
		Clock:   clockwork.NewFakeClockAt(testNow),
	}
	if catalog != nil {
		deps.Catalog = catalog
	}

	uc, err := NewBoardUseCase(testConfig(), deps)
	require.NoError(t, err)
	return uc, metrics
}

func brookvilleCatalog() *fakeCatalog {
	return &fakeCatalog{
		names: []string{
			"BROK1.Flow-Res In.Inst.15Minutes.0.Ccp-Rev",
			"BROK1.Flow-Res Out.Inst.15Minutes.0.Ccp-Rev",
			"BROK1.Flow-Res Out.Ave.1Day.1Day.Ccp-Rev",
		},
		series: map[string]string{
			"BROK1.Flow-Res In.Inst.15Minutes.0.Ccp-Rev":  inflowSeries,
			"BROK1.Flow-Res Out.Inst.15Minutes.0.Ccp-Rev": outflowSeries,
		},
	}
}

func TestRefreshBoardFallsThroughSources(t *testing.T) {
	docs := &fakeDocs{
		reporting: fmt.Errorf("%w: connection refused", integration.ErrNetwork),
		overview:  overviewHTML,
	}
	catalog := brookvilleCatalog()
	uc, metrics := newTestUseCase(t, docs, catalog, &fakeGauges{}, nil)

	board, err := uc.RefreshBoard(context.Background())
	require.NoError(t, err)
	require.Len(t, board.Reservoirs, 1)

	r := board.Reservoirs[0]
	assert.True(t, r.Available)
	assert.Equal(t, "748.12 ft", r.Elevation)
	assert.Equal(t, 0.05, *r.ElevationDelta)
	assert.Equal(t, "1234.50 cfs", r.Inflow)
	assert.Equal(t, 3.2, *r.InflowDelta)
	assert.Equal(t, "184600.00 ac-ft", r.Storage)
	assert.Equal(t, "0.00 in", r.Precipitation)

	// Outflow was missing on the page and came from the catalog
	assert.Equal(t, "250.00 cfs", r.Outflow)
	require.NotNil(t, r.OutflowDelta)
	assert.InDelta(t, 10.0, *r.OutflowDelta, 1e-9)
	outflow, ok := r.Reading(entities.MetricOutflow)
	require.True(t, ok)
	assert.Equal(t, "catalog-series", outflow.Provenance.Strategy)

	// Every metric filled before the daily report was needed
	assert.Equal(t, 0, docs.dailyCalls)

	// Histories are loaded even for metrics the page already had
	assert.Len(t, r.OutflowHistory, 2)
	assert.Len(t, r.InflowHistory, 2)

	assert.Equal(t, "Normal level", r.Status.Label)

	assert.Equal(t, 1.0, counterValue(t, metrics.SourceFetches.WithLabelValues("reporting-api", "network")))
	assert.Equal(t, 1.0, counterValue(t, metrics.SourceFetches.WithLabelValues("html", "ok")))
	assert.Equal(t, 1.0, counterValue(t, metrics.MetricExtraction.WithLabelValues("outflow", "found")))

	stored, err := uc.GetReservoir(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "250.00 cfs", stored.Outflow)
}

func TestRefreshBoardMalformedAPIDegrades(t *testing.T) {
	docs := &fakeDocs{reportBody: `{"not": "a list"}`, overview: overviewHTML}
	uc, metrics := newTestUseCase(t, docs, brookvilleCatalog(), &fakeGauges{}, nil)

	board, err := uc.RefreshBoard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "748.12 ft", board.Reservoirs[0].Elevation)
	assert.Equal(t, 1.0, counterValue(t, metrics.SourceFetches.WithLabelValues("reporting-api", "malformed")))
}

func TestRefreshBoardAllSourcesFail(t *testing.T) {
	docs := &fakeDocs{
		reporting:   fmt.Errorf("%w: timeout", integration.ErrNetwork),
		overviewErr: fmt.Errorf("%w: 503", integration.ErrNetwork),
	}
	catalog := &fakeCatalog{err: fmt.Errorf("%w: catalog down", integration.ErrNetwork)}
	uc, metrics := newTestUseCase(t, docs, catalog, &fakeGauges{}, nil)

	board, err := uc.RefreshBoard(context.Background())
	require.NoError(t, err)

	r := board.Reservoirs[0]
	assert.False(t, r.Available)
	for _, v := range []string{r.Elevation, r.Inflow, r.Outflow, r.Storage, r.Precipitation} {
		assert.Equal(t, entities.NoData, v)
	}
	assert.Nil(t, r.ElevationDelta)
	assert.Equal(t, entities.LevelUnknown, r.Status.Level)
	assert.Equal(t, 1, docs.dailyCalls)
	assert.Equal(t, 1.0, counterValue(t, metrics.MetricExtraction.WithLabelValues("elevation", "missing")))

	assert.Contains(t, FormatReservoir(r), "Could not load Brookville Lake data")
}

func TestRefreshBoardReportingAPIWins(t *testing.T) {
	docs := &fakeDocs{reportBody: `[{"name": "Brookville Lake", "timeseries": [
		{"label": "Elevation", "latest_value": 748.5, "unit": "ft", "delta24hr": -0.1},
		{"label": "Inflow", "latest_value": 300, "unit": "cfs", "delta24hr": 12},
		{"label": "Outflow", "latest_value": 250, "unit": "cfs", "delta24hr": 0},
		{"label": "Storage", "latest_value": 185000, "unit": "ac-ft", "delta24hr": 400},
		{"label": "Precipitation", "latest_value": 0.12, "unit": "in"}
	]}]`}
	catalog := brookvilleCatalog()
	uc, _ := newTestUseCase(t, docs, catalog, &fakeGauges{}, nil)

	board, err := uc.RefreshBoard(context.Background())
	require.NoError(t, err)

	r := board.Reservoirs[0]
	assert.Equal(t, "748.50 ft", r.Elevation)
	assert.Equal(t, "300.00 cfs", r.Inflow)
	assert.Equal(t, "0.12 in", r.Precipitation)

	// Only the history lookups hit the catalog
	assert.ElementsMatch(t, []string{
		"BROK1.Flow-Res In.Inst.15Minutes.0.Ccp-Rev",
		"BROK1.Flow-Res Out.Inst.15Minutes.0.Ccp-Rev",
	}, catalog.fetched)
}

func TestRefreshBoardClassifiesSites(t *testing.T) {
	gauges := &fakeGauges{
		heights: map[string]entities.SiteReading{
			"03276000": {SiteNo: "03276000", Value: entities.Float(2.1), ObservedAt: testNow},
		},
		err: errors.New("partial failure"),
	}
	uc, metrics := newTestUseCase(t, &fakeDocs{overview: overviewHTML}, nil, gauges, nil)

	board, err := uc.RefreshBoard(context.Background())
	require.NoError(t, err)
	require.Len(t, board.Sites, 2)

	assert.Equal(t, "Too low", board.Sites[0].Status.Label)
	assert.Equal(t, entities.LevelUnknown, board.Sites[1].Status.Level)
	assert.Equal(t, 1.0, counterValue(t, metrics.SiteStatuses.WithLabelValues("low")))

	snap, err := uc.GetSite(context.Background(), "buck")
	require.NoError(t, err)
	assert.Equal(t, 2.1, *snap.Reading.Value)

	_, err = uc.GetSite(context.Background(), "nowhere")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestResolveSite(t *testing.T) {
	uc, _ := newTestUseCase(t, &fakeDocs{}, nil, &fakeGauges{}, nil)

	got, ok := uc.ResolveSite("03276500")
	assert.True(t, ok)
	assert.Equal(t, "03276500", got)

	got, ok = uc.ResolveSite("  Great Miami ")
	assert.True(t, ok)
	assert.Equal(t, "03276500", got)

	_, ok = uc.ResolveSite("")
	assert.False(t, ok)
}

func TestHandleNaturalLanguageQuery(t *testing.T) {
	ctx := context.Background()
	gauges := &fakeGauges{heights: map[string]entities.SiteReading{
		"03276500": {SiteNo: "03276500", Value: entities.Float(14.2)},
	}}

	t.Run("site status", func(t *testing.T) {
		agent := &fakeAgent{resp: &openai.AgentResponse{CommandName: openai.CommandGetSiteStatus, SiteID: "03276500", UserMessage: "Checking the Great Miami"}}
		uc, _ := newTestUseCase(t, &fakeDocs{overview: overviewHTML}, nil, gauges, agent)
		_, err := uc.RefreshBoard(ctx)
		require.NoError(t, err)

		msg, err := uc.HandleNaturalLanguageQuery(ctx, "is the great miami flooding?")
		require.NoError(t, err)
		assert.Contains(t, msg, "Checking the Great Miami")
		assert.Contains(t, msg, "14.20 ft")
		assert.Contains(t, msg, "Minor")
	})

	t.Run("reservoir", func(t *testing.T) {
		agent := &fakeAgent{resp: &openai.AgentResponse{CommandName: openai.CommandGetReservoir}}
		uc, _ := newTestUseCase(t, &fakeDocs{overview: overviewHTML}, nil, gauges, agent)
		_, err := uc.RefreshBoard(ctx)
		require.NoError(t, err)

		msg, err := uc.HandleNaturalLanguageQuery(ctx, "how is the lake")
		require.NoError(t, err)
		assert.Contains(t, msg, "748.12 ft")
		assert.Contains(t, msg, "24 hour change: +0.05 ft")
	})

	t.Run("unknown site", func(t *testing.T) {
		agent := &fakeAgent{resp: &openai.AgentResponse{CommandName: openai.CommandGetSiteStatus, SiteID: "99999999"}}
		uc, _ := newTestUseCase(t, &fakeDocs{}, nil, gauges, agent)

		msg, err := uc.HandleNaturalLanguageQuery(ctx, "what about the nile")
		require.NoError(t, err)
		assert.Contains(t, msg, "couldn't find any data for site '99999999'")
	})

	t.Run("agent error", func(t *testing.T) {
		uc, _ := newTestUseCase(t, &fakeDocs{}, nil, gauges, &fakeAgent{err: errors.New("rate limited")})
		msg, err := uc.HandleNaturalLanguageQuery(ctx, "hello")
		require.NoError(t, err)
		assert.Contains(t, msg, "/help")
	})

	t.Run("disabled", func(t *testing.T) {
		uc, _ := newTestUseCase(t, &fakeDocs{}, nil, gauges, nil)
		msg, err := uc.HandleNaturalLanguageQuery(ctx, "hello")
		require.NoError(t, err)
		assert.Contains(t, msg, "/help")
	})
}
