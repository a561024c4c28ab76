package usecases

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/abelzeko/riverstats/internal/config"
	"github.com/abelzeko/riverstats/internal/entities"
	"github.com/abelzeko/riverstats/internal/extract"
	"github.com/abelzeko/riverstats/internal/integration"
)

// DocumentFetcher retrieves reservoir documents from USACE
type DocumentFetcher interface {
	FetchReportingAPI(ctx context.Context, apiURL string) (entities.RawDocument, error)
	FetchOverview(ctx context.Context, pageURL string) (entities.RawDocument, error)
	FetchDailyReport(ctx context.Context, listURL, linkText string) (entities.RawDocument, error)
}

// SeriesCatalog finds and retrieves CWMS time series
type SeriesCatalog interface {
	Discover(ctx context.Context, hints []string) ([]string, error)
	FetchRecent(ctx context.Context, name string, days int) (entities.RawDocument, error)
}

// SourceResult is what one source produced for a reservoir
type SourceResult struct {
	Readings  []entities.ExtractedReading
	Histories map[entities.MetricKind][]entities.SeriesPoint
}

// Source produces readings for one reservoir from one upstream
type Source interface {
	Name() string
	Collect(ctx context.Context, specs []entities.MetricSpec) (SourceResult, error)
}

// documentSource fetches a single document and runs one strategy over it
type documentSource struct {
	name     string
	fetch    func(ctx context.Context) (entities.RawDocument, error)
	strategy extract.Strategy
}

func (s *documentSource) Name() string {
	return s.name
}

func (s *documentSource) Collect(ctx context.Context, specs []entities.MetricSpec) (SourceResult, error) {
	doc, err := s.fetch(ctx)
	if err != nil {
		return SourceResult{}, err
	}

	if v, ok := s.strategy.(extract.Validator); ok {
		if err := v.Validate(doc); err != nil {
			return SourceResult{}, err
		}
	}

	return SourceResult{Readings: extract.ExtractAll(s.strategy, doc, specs)}, nil
}

// catalogSource resolves one CWMS series per metric and reads its latest value
type catalogSource struct {
	catalog  SeriesCatalog
	hints    []string
	days     int
	strategy *extract.CatalogSeries
}

func (s *catalogSource) Name() string {
	return s.strategy.Name()
}

func (s *catalogSource) Collect(ctx context.Context, specs []entities.MetricSpec) (SourceResult, error) {
	names, err := s.catalog.Discover(ctx, s.hints)
	if err != nil {
		return SourceResult{}, err
	}

	result := SourceResult{Histories: make(map[entities.MetricKind][]entities.SeriesPoint)}
	var lastErr error
	fetched := 0

	for _, spec := range specs {
		prov := entities.Provenance{Strategy: s.Name()}
		name, ok := integration.ResolveSeries(names, spec.SeriesNeedles)
		if !ok {
			result.Readings = append(result.Readings, entities.NoReading(spec.Kind, prov))
			continue
		}

		doc, err := s.catalog.FetchRecent(ctx, name, s.days)
		if err == nil {
			err = s.strategy.Validate(doc)
		}
		if err != nil {
			log.Printf("Warning: failed to read series %s: %v", name, err)
			lastErr = err
			result.Readings = append(result.Readings, entities.NoReading(spec.Kind, prov))
			continue
		}
		fetched++

		result.Readings = append(result.Readings, extract.Sanitize(s.strategy.Extract(doc, spec)))
		result.Histories[spec.Kind] = extract.ParseSeries(doc.Body)
	}

	if fetched == 0 && lastErr != nil {
		return SourceResult{}, lastErr
	}
	return result, nil
}

// buildSources turns a reservoir's configured fallback chain into sources
func buildSources(res config.ReservoirConfig, docs DocumentFetcher, catalog SeriesCatalog, historyDays, windowSize int) ([]Source, error) {
	opts := []extract.Option{extract.WithWindowSize(windowSize)}
	var sources []Source

	for _, sc := range res.Sources {
		switch sc.Type {
		case config.SourceReportingAPI:
			sources = append(sources, &documentSource{
				name:     sc.Type,
				fetch:    func(ctx context.Context) (entities.RawDocument, error) { return docs.FetchReportingAPI(ctx, sc.URL) },
				strategy: extract.NewReportingAPI(res.Hints),
			})
		case config.SourceHTML:
			sources = append(sources, &documentSource{
				name:     sc.Type,
				fetch:    func(ctx context.Context) (entities.RawDocument, error) { return docs.FetchOverview(ctx, sc.URL) },
				strategy: extract.NewHTMLScrape(res.Metrics, sc.Selector, opts...),
			})
		case config.SourceDailyReport:
			sources = append(sources, &documentSource{
				name: sc.Type,
				fetch: func(ctx context.Context) (entities.RawDocument, error) {
					return docs.FetchDailyReport(ctx, sc.URL, sc.LinkText)
				},
				strategy: extract.NewDailyReportText(res.Metrics, res.Hints, 0, opts...),
			})
		case config.SourceCatalog:
			if catalog == nil {
				continue
			}
			sources = append(sources, &catalogSource{
				catalog:  catalog,
				hints:    res.Hints,
				days:     historyDays,
				strategy: extract.NewCatalogSeries(0),
			})
		default:
			return nil, fmt.Errorf("reservoir %s: unknown source type %q", res.ID, sc.Type)
		}
	}
	return sources, nil
}

// fetchOutcome labels a source error for metrics
func fetchOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, integration.ErrNetwork):
		return "network"
	case errors.Is(err, integration.ErrMalformedShape):
		return "malformed"
	}
	return "error"
}
