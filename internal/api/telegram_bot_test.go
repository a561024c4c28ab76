package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abelzeko/riverstats/internal/entities"
	"github.com/abelzeko/riverstats/internal/repository"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
)

type fakeService struct {
	board    entities.Board
	err      error
	nlReply  string
	nlErr    error
	nlQuery  string
	resQuery string
}

func (f *fakeService) GetBoard(ctx context.Context) (entities.Board, error) {
	return f.board, f.err
}

func (f *fakeService) GetReservoir(ctx context.Context, id string) (entities.ReservoirReport, error) {
	f.resQuery = id
	if f.err != nil {
		return entities.ReservoirReport{}, f.err
	}
	if id == "" {
		return f.board.Reservoirs[0], nil
	}
	if r, ok := f.board.Reservoir(id); ok {
		return r, nil
	}
	return entities.ReservoirReport{}, repository.ErrNotFound
}

func (f *fakeService) GetSite(ctx context.Context, query string) (entities.SiteSnapshot, error) {
	if f.err != nil {
		return entities.SiteSnapshot{}, f.err
	}
	for _, s := range f.board.Sites {
		if s.Graph.SiteNo == query || s.Graph.Title == query {
			return s, nil
		}
	}
	return entities.SiteSnapshot{}, repository.ErrNotFound
}

func (f *fakeService) HandleNaturalLanguageQuery(ctx context.Context, query string) (string, error) {
	f.nlQuery = query
	return f.nlReply, f.nlErr
}

func testBoard() entities.Board {
	updated := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)
	report := entities.NewReservoirReport("brookville", "Brookville Lake", updated,
		[]entities.ExtractedReading{
			entities.NewReading(entities.MetricElevation, entities.Float(748.12), "ft", entities.Float(-0.4), entities.Provenance{}),
		})

	return entities.Board{
		CycleID:    "cycle-1",
		UpdatedAt:  updated,
		Reservoirs: []entities.ReservoirReport{report},
		Sites: []entities.SiteSnapshot{
			{
				Graph:   entities.SiteGraph{SiteNo: "03276000", Title: "Buck Creek"},
				Reading: entities.SiteReading{SiteNo: "03276000", Value: entities.Float(7.2)},
				Status:  entities.Status{Site: "03276000", Level: entities.LevelHigh, Label: "Too high"},
			},
		},
	}
}

func command(text string, cmdLen int) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 42},
		From:     &tgbotapi.User{UserName: "kiosk"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}

func plain(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: 42},
		From: &tgbotapi.User{UserName: "kiosk"},
	}
}

func TestBotCommands(t *testing.T) {
	bot := &TelegramBot{service: &fakeService{board: testBoard()}}
	ctx := context.Background()

	assert.Contains(t, bot.reply(ctx, command("/start", 6)), "Welcome")
	assert.Contains(t, bot.reply(ctx, command("/help", 5)), "/site [number or name]")
	assert.Contains(t, bot.reply(ctx, command("/weather", 8)), "Unknown command")

	board := bot.reply(ctx, command("/board", 6))
	assert.Contains(t, board, "Brookville Lake (USACE Data)")
	assert.Contains(t, board, "Buck Creek (03276000): 7.20 ft, Too high")

	reservoir := bot.reply(ctx, command("/reservoir", 10))
	assert.Contains(t, reservoir, "748.12 ft")
	assert.Contains(t, reservoir, "24 hour change: -0.40 ft")

	sites := bot.reply(ctx, command("/sites", 6))
	assert.Contains(t, sites, "Gauge sites:")
	assert.Contains(t, sites, "/site [number or name]")
}

func TestBotSiteCommand(t *testing.T) {
	bot := &TelegramBot{service: &fakeService{board: testBoard()}}
	ctx := context.Background()

	assert.Contains(t, bot.reply(ctx, command("/site", 5)), "Please specify a site")
	assert.Contains(t, bot.reply(ctx, command("/site 03276000", 5)), "Buck Creek (USGS 03276000)")
	assert.Contains(t, bot.reply(ctx, command("/site Buck Creek", 5)), "Status: Too high")
	assert.Contains(t, bot.reply(ctx, command("/site Stillwater", 5)), "No information found for site 'Stillwater'")
}

func TestBotBeforeFirstRefresh(t *testing.T) {
	bot := &TelegramBot{service: &fakeService{err: repository.ErrNotFound}}
	ctx := context.Background()

	assert.Contains(t, bot.reply(ctx, command("/board", 6)), "first refresh")
	assert.Contains(t, bot.reply(ctx, command("/reservoir", 10)), "first refresh")

	bot = &TelegramBot{service: &fakeService{err: errors.New("database is locked")}}
	assert.Equal(t, "Error fetching gauge data. Please try again later.", bot.reply(ctx, command("/sites", 6)))
}

func TestBotNaturalLanguage(t *testing.T) {
	svc := &fakeService{board: testBoard(), nlReply: "Buck Creek is running high."}
	bot := &TelegramBot{service: svc}
	ctx := context.Background()

	assert.Equal(t, "Buck Creek is running high.", bot.reply(ctx, plain("how is buck creek?")))
	assert.Equal(t, "how is buck creek?", svc.nlQuery)

	svc.nlErr = errors.New("agent offline")
	assert.Contains(t, bot.reply(ctx, plain("hello")), "I don't understand")

	svc.nlQuery = ""
	assert.Contains(t, bot.reply(ctx, plain("   ")), "I don't understand")
	assert.Empty(t, svc.nlQuery)
}
