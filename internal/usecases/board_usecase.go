// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/abelzeko/riverstats/internal/config"
	"github.com/abelzeko/riverstats/internal/entities"
	"github.com/abelzeko/riverstats/internal/integration"
	"github.com/abelzeko/riverstats/internal/integration/openai"
	"github.com/abelzeko/riverstats/internal/observability"
	"github.com/abelzeko/riverstats/internal/repository"
	"github.com/abelzeko/riverstats/internal/status"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// GaugeReader provides USGS graph links and gage heights
type GaugeReader interface {
	Sites() []config.SiteConfig
	SiteGraphs() []entities.SiteGraph
	GageHeights(ctx context.Context) (map[string]entities.SiteReading, error)
}

type reservoirPlan struct {
	cfg     config.ReservoirConfig
	sources []Source
	catalog *catalogSource
}

// BoardUseCase refreshes and serves the kiosk board
type BoardUseCase struct {
	repo          repository.SnapshotRepository
	classifier    *status.Classifier
	gauges        GaugeReader
	openAIService openai.OpenAIService
	metrics       *observability.Metrics
	clock         clockwork.Clock
	plans         []reservoirPlan
	refreshMutex  sync.Mutex
}

// Deps groups the collaborators of BoardUseCase; OpenAI and Catalog are optional
type Deps struct {
	Repo    repository.SnapshotRepository
	Docs    DocumentFetcher
	Catalog SeriesCatalog
	Gauges  GaugeReader
	OpenAI  openai.OpenAIService
	Metrics *observability.Metrics
	Clock   clockwork.Clock
}

// NewBoardUseCase creates a new board use case
func NewBoardUseCase(cfg *config.Config, deps Deps) (*BoardUseCase, error) {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetricsForTesting()
	}

	uc := &BoardUseCase{
		repo:          deps.Repo,
		classifier:    status.NewClassifier(cfg.Stations),
		gauges:        deps.Gauges,
		openAIService: deps.OpenAI,
		metrics:       deps.Metrics,
		clock:         deps.Clock,
	}

	for _, res := range cfg.Reservoirs {
		sources, err := buildSources(res, deps.Docs, deps.Catalog, cfg.CWMS.HistoryDays, cfg.WindowSize)
		if err != nil {
			return nil, err
		}
		plan := reservoirPlan{cfg: res, sources: sources}
		for _, s := range sources {
			if cs, ok := s.(*catalogSource); ok {
				plan.catalog = cs
			}
		}
		uc.plans = append(uc.plans, plan)
	}

	return uc, nil
}

// RefreshBoard fetches every reservoir and site, classifies them and stores the result.
// Upstream failures never fail the refresh; they show up as missing values.
func (uc *BoardUseCase) RefreshBoard(ctx context.Context) (entities.Board, error) {
	uc.refreshMutex.Lock()
	defer uc.refreshMutex.Unlock()

	log.Println("Starting board refresh process...")
	start := uc.clock.Now()
	uc.metrics.RefreshRunning.Set(1)
	defer uc.metrics.RefreshRunning.Set(0)

	board := entities.Board{
		CycleID:   uuid.NewString(),
		UpdatedAt: start,
	}

	for _, plan := range uc.plans {
		board.Reservoirs = append(board.Reservoirs, uc.refreshReservoir(ctx, plan))
	}
	board.Sites = uc.refreshSites(ctx)

	if err := uc.repo.SaveBoard(ctx, board); err != nil {
		return board, fmt.Errorf("failed to save board to repository: %w", err)
	}

	uc.metrics.RefreshDuration.Observe(uc.clock.Since(start).Seconds())
	uc.metrics.LastRefresh.Set(float64(uc.clock.Now().Unix()))
	log.Printf("Board refresh %s finished in %s", board.CycleID, uc.clock.Since(start))
	return board, nil
}

// refreshReservoir walks the source chain. Metrics still missing after one source
// are tried on the next; a failing source contributes nothing.
func (uc *BoardUseCase) refreshReservoir(ctx context.Context, plan reservoirPlan) entities.ReservoirReport {
	specs := plan.cfg.Metrics
	found := make(map[entities.MetricKind]entities.ExtractedReading, len(specs))
	histories := make(map[entities.MetricKind][]entities.SeriesPoint)

	for _, src := range plan.sources {
		missing := missingSpecs(specs, found)
		if len(missing) == 0 {
			break
		}

		result, err := src.Collect(ctx, missing)
		uc.metrics.SourceFetches.WithLabelValues(src.Name(), fetchOutcome(err)).Inc()
		if err != nil {
			if integration.Degraded(err) {
				log.Printf("Warning: source %s unavailable for %s: %v", src.Name(), plan.cfg.ID, err)
			} else {
				log.Printf("Error: source %s failed for %s: %v", src.Name(), plan.cfg.ID, err)
			}
			continue
		}

		filled := 0
		for _, r := range result.Readings {
			if r.Found() {
				found[r.Metric] = r
				filled++
			}
		}
		for kind, points := range result.Histories {
			histories[kind] = points
		}
		log.Printf("Source %s filled %d of %d missing metrics for %s", src.Name(), filled, len(missing), plan.cfg.ID)
	}

	uc.fillHistories(ctx, plan, histories)

	readings := make([]entities.ExtractedReading, 0, len(specs))
	for _, spec := range specs {
		r, ok := found[spec.Kind]
		if !ok {
			r = entities.NoReading(spec.Kind, entities.Provenance{})
		}
		uc.metrics.MetricExtraction.WithLabelValues(string(spec.Kind), foundOutcome(ok)).Inc()
		readings = append(readings, r)
	}

	report := entities.NewReservoirReport(plan.cfg.ID, plan.cfg.Name, uc.clock.Now(), readings)
	report.InflowHistory = histories[entities.MetricInflow]
	report.OutflowHistory = histories[entities.MetricOutflow]

	var elevation *float64
	if r, ok := found[entities.MetricElevation]; ok {
		elevation = r.Value
	}
	stationID := plan.cfg.StationID
	if stationID == "" {
		stationID = plan.cfg.ID
	}
	report.Status = uc.classifier.Classify(stationID, elevation)

	if !report.Available {
		log.Printf("Warning: no data could be loaded for reservoir %s", plan.cfg.ID)
	}
	return report
}

// fillHistories loads inflow and outflow series from the catalog when the chain
// finished before reaching it
func (uc *BoardUseCase) fillHistories(ctx context.Context, plan reservoirPlan, histories map[entities.MetricKind][]entities.SeriesPoint) {
	if plan.catalog == nil {
		return
	}

	var want []entities.MetricSpec
	for _, spec := range plan.cfg.Metrics {
		if spec.Kind != entities.MetricInflow && spec.Kind != entities.MetricOutflow {
			continue
		}
		if _, ok := histories[spec.Kind]; !ok {
			want = append(want, spec)
		}
	}
	if len(want) == 0 {
		return
	}

	result, err := plan.catalog.Collect(ctx, want)
	if err != nil {
		log.Printf("Warning: failed to load flow history for %s: %v", plan.cfg.ID, err)
		return
	}
	for kind, points := range result.Histories {
		histories[kind] = points
	}
}

func (uc *BoardUseCase) refreshSites(ctx context.Context) []entities.SiteSnapshot {
	if uc.gauges == nil {
		return nil
	}

	heights, err := uc.gauges.GageHeights(ctx)
	if err != nil {
		log.Printf("Warning: failed to fetch gage heights: %v", err)
	}

	graphs := uc.gauges.SiteGraphs()
	snapshots := make([]entities.SiteSnapshot, 0, len(graphs))
	for _, g := range graphs {
		reading, ok := heights[g.SiteNo]
		if !ok {
			reading = entities.SiteReading{SiteNo: g.SiteNo}
		}
		st := uc.classifier.Classify(g.SiteNo, reading.Value)
		uc.metrics.SiteStatuses.WithLabelValues(string(st.Level)).Inc()

		snapshots = append(snapshots, entities.SiteSnapshot{Graph: g, Reading: reading, Status: st})
	}
	log.Printf("Classified %d sites", len(snapshots))
	return snapshots
}

// GetBoard returns the latest stored board
func (uc *BoardUseCase) GetBoard(ctx context.Context) (entities.Board, error) {
	return uc.repo.GetBoard(ctx)
}

// GetReservoir returns the latest report for a reservoir. An empty id selects the first
// configured reservoir.
func (uc *BoardUseCase) GetReservoir(ctx context.Context, id string) (entities.ReservoirReport, error) {
	if id == "" && len(uc.plans) > 0 {
		id = uc.plans[0].cfg.ID
	}
	log.Printf("Retrieving report for reservoir: %s", id)
	return uc.repo.GetReservoirReport(ctx, id)
}

// GetSite returns the latest snapshot for a site given its number or part of its title
func (uc *BoardUseCase) GetSite(ctx context.Context, query string) (entities.SiteSnapshot, error) {
	siteNo, ok := uc.ResolveSite(query)
	if !ok {
		return entities.SiteSnapshot{}, repository.ErrNotFound
	}
	log.Printf("Retrieving snapshot for site: %s", siteNo)
	return uc.repo.GetSiteSnapshot(ctx, siteNo)
}

// ResolveSite maps a site number or case-insensitive title fragment to a site number
func (uc *BoardUseCase) ResolveSite(query string) (string, bool) {
	if uc.gauges == nil {
		return "", false
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return "", false
	}

	sites := uc.gauges.Sites()
	for _, s := range sites {
		if s.SiteNo == q {
			return s.SiteNo, true
		}
	}
	for _, s := range sites {
		if strings.Contains(strings.ToLower(s.Title), q) {
			return s.SiteNo, true
		}
	}
	return "", false
}

// ReservoirNames lists the configured reservoirs
func (uc *BoardUseCase) ReservoirNames() []string {
	names := make([]string, 0, len(uc.plans))
	for _, p := range uc.plans {
		names = append(names, p.cfg.Name)
	}
	return names
}

// HandleNaturalLanguageQuery interprets a user's free-text query using the AI service
// and returns an appropriate response string.
func (uc *BoardUseCase) HandleNaturalLanguageQuery(ctx context.Context, query string) (string, error) {
	if uc.openAIService == nil {
		return "I only understand commands right now. Use /help to see them.", nil
	}
	log.Printf("Interpreting natural language query: %s", query)

	var sites []openai.KnownSite
	if uc.gauges != nil {
		for _, s := range uc.gauges.Sites() {
			sites = append(sites, openai.KnownSite{ID: s.SiteNo, Name: s.Title})
		}
	}

	agentResp, err := uc.openAIService.InterpretUserQuery(ctx, query, sites, uc.ReservoirNames())
	if err != nil {
		log.Printf("Error interpreting user query via OpenAI: %v", err)
		return "Sorry, I'm having trouble understanding right now. Please try again later or use /help.", nil
	}

	log.Printf("Agent response: Command='%s', Site='%s', Message='%s'",
		agentResp.CommandName, agentResp.SiteID, agentResp.UserMessage)

	switch agentResp.CommandName {
	case openai.CommandGetSiteStatus:
		if agentResp.SiteID == "" {
			return agentResp.UserMessage, nil
		}
		snap, err := uc.GetSite(ctx, agentResp.SiteID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				log.Printf("Error fetching site after agent interpretation: %v", err)
			}
			return withPreamble(agentResp.UserMessage,
				fmt.Sprintf("However, I couldn't find any data for site '%s'. Use /sites to see available ones.", agentResp.SiteID)), nil
		}
		return withPreamble(agentResp.UserMessage, FormatSite(snap)), nil
	case openai.CommandGetReservoir:
		report, err := uc.GetReservoir(ctx, "")
		if err != nil {
			log.Printf("Error fetching reservoir after agent interpretation: %v", err)
			return "Sorry, I couldn't fetch the reservoir data right now.", nil
		}
		return withPreamble(agentResp.UserMessage, FormatReservoir(report)), nil
	default:
		log.Printf("Agent identified general query.")
		return agentResp.UserMessage, nil
	}
}

func withPreamble(preamble, body string) string {
	if preamble == "" {
		return body
	}
	return preamble + "\n\n" + body
}

func missingSpecs(specs []entities.MetricSpec, found map[entities.MetricKind]entities.ExtractedReading) []entities.MetricSpec {
	var missing []entities.MetricSpec
	for _, spec := range specs {
		if _, ok := found[spec.Kind]; !ok {
			missing = append(missing, spec)
		}
	}
	return missing
}

func foundOutcome(ok bool) string {
	if ok {
		return "found"
	}
	return "missing"
}
