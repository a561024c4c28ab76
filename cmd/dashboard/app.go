package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/abelzeko/riverstats/internal/config"
	"github.com/abelzeko/riverstats/internal/httpapi"
	"github.com/abelzeko/riverstats/internal/integration"
	"github.com/abelzeko/riverstats/internal/integration/openai"
	"github.com/abelzeko/riverstats/internal/observability"
	"github.com/abelzeko/riverstats/internal/repository"
	"github.com/abelzeko/riverstats/internal/usecases"
	"github.com/jonboulle/clockwork"
)

// app holds the wired service
type app struct {
	repo    *repository.SQLiteSnapshotRepository
	board   *usecases.BoardUseCase
	handler http.Handler
}

// newApp wires repository, upstream clients and the board use case
func newApp(cfg *config.Config, metrics *observability.Metrics, clock clockwork.Clock) (*app, error) {
	repo, err := repository.NewSQLiteSnapshotRepository(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}

	client := &http.Client{Timeout: cfg.HTTPTimeout}
	deps := usecases.Deps{
		Repo:    repo,
		Docs:    integration.NewUSACEScraper(client, cfg.HTTPTimeout, clock),
		Catalog: integration.NewCWMSClient(client, cfg.CWMS.BaseURL, cfg.CWMS.Office, cfg.HTTPTimeout, clock),
		Gauges:  integration.NewUSGSClient(client, cfg.USGS, cfg.Sites, cfg.HTTPTimeout, clock),
		Metrics: metrics,
		Clock:   clock,
	}

	// OpenAI is optional; leave the interface nil when it is off
	if cfg.OpenAIKey != "" {
		svc, err := openai.NewOpenAIService(cfg.OpenAIKey)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to initialize OpenAI service: %w", err)
		}
		deps.OpenAI = svc
	} else {
		log.Println("OPENAI_API_KEY not set, natural language queries are disabled")
	}

	board, err := usecases.NewBoardUseCase(cfg, deps)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to initialize board use case: %w", err)
	}

	return &app{
		repo:    repo,
		board:   board,
		handler: httpapi.NewRouter(board),
	}, nil
}

// Close releases the repository
func (a *app) Close() error {
	return a.repo.Close()
}
