// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/abelzeko/riverstats/internal/entities"
	"github.com/abelzeko/riverstats/internal/repository"
	"github.com/abelzeko/riverstats/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = "Available commands:\n" +
	"/start - Start the bot\n" +
	"/board - Show the reservoir and all gauges\n" +
	"/reservoir - Show Brookville Lake readings\n" +
	"/sites - Show the list of gauge sites\n" +
	"/site [number or name] - Show the status of one gauge\n" +
	"/help - Show this help message\n\n" +
	"You can also just ask, e.g. \"how high is Buck Creek?\""

// BoardService is the part of the board use case the bot talks to
type BoardService interface {
	GetBoard(ctx context.Context) (entities.Board, error)
	GetReservoir(ctx context.Context, id string) (entities.ReservoirReport, error)
	GetSite(ctx context.Context, query string) (entities.SiteSnapshot, error)
	HandleNaturalLanguageQuery(ctx context.Context, query string) (string, error)
}

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot     *tgbotapi.BotAPI
	service BoardService
}

// NewTelegramBot creates a new Telegram bot handler
func NewTelegramBot(botToken string, service BoardService) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &TelegramBot{
		bot:     bot,
		service: service,
	}, nil
}

// Start listens for and handles Telegram messages until ctx is cancelled
func (t *TelegramBot) Start(ctx context.Context) {
	log.Printf("Authorized on Telegram account %s", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	log.Println("Bot is now listening for messages...")

	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping Telegram bot...")
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}

			log.Printf("Received message from %s (ID: %d): %s",
				update.Message.From.UserName,
				update.Message.From.ID,
				update.Message.Text)

			t.handleMessage(ctx, update)
		}
	}
}

// handleMessage processes a Telegram message update
func (t *TelegramBot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	msg := tgbotapi.NewMessage(update.Message.Chat.ID, t.reply(ctx, update.Message))

	log.Printf("Sending response to user %s", update.Message.From.UserName)
	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func (t *TelegramBot) reply(ctx context.Context, message *tgbotapi.Message) string {
	if message.IsCommand() {
		return t.handleCommand(ctx, message)
	}
	return t.handleNonCommand(ctx, message)
}

// handleCommand processes commands like /start, /help, etc.
func (t *TelegramBot) handleCommand(ctx context.Context, message *tgbotapi.Message) string {
	user := userName(message)

	switch message.Command() {
	case "start":
		log.Printf("Handling /start command for user %s", user)
		return "Welcome to the River Stats bot! Use /board for the current conditions or /help for more information."

	case "help":
		log.Printf("Handling /help command for user %s", user)
		return helpText

	case "board":
		log.Printf("Handling /board command for user %s", user)
		board, err := t.service.GetBoard(ctx)
		if err != nil {
			return lookupFailure("board", err)
		}
		return usecases.FormatBoard(board)

	case "reservoir":
		args := strings.TrimSpace(message.CommandArguments())
		log.Printf("Handling /reservoir command with args '%s' for user %s", args, user)
		report, err := t.service.GetReservoir(ctx, args)
		if err != nil {
			return lookupFailure("reservoir", err)
		}
		return usecases.FormatReservoir(report)

	case "sites":
		log.Printf("Handling /sites command for user %s", user)
		board, err := t.service.GetBoard(ctx)
		if err != nil {
			return lookupFailure("gauge", err)
		}
		return usecases.FormatSites(board.Sites) + "\nUse /site [number or name] to get detailed information."

	case "site":
		args := strings.TrimSpace(message.CommandArguments())
		log.Printf("Handling /site command with args '%s' for user %s", args, user)
		return t.handleSiteCommand(ctx, args)

	default:
		log.Printf("Received unknown command /%s from user %s", message.Command(), user)
		return "Unknown command. Use /help to see available commands."
	}
}

// handleSiteCommand processes the /site [id|name] command
func (t *TelegramBot) handleSiteCommand(ctx context.Context, args string) string {
	if args == "" {
		return "Please specify a site. Example: /site 03276000 or /site buck creek"
	}

	snap, err := t.service.GetSite(ctx, args)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Sprintf("No information found for site '%s'. Use /sites to see the available gauges.", args)
	}
	if err != nil {
		return lookupFailure("gauge", err)
	}
	return usecases.FormatSite(snap)
}

// handleNonCommand processes regular messages
func (t *TelegramBot) handleNonCommand(ctx context.Context, message *tgbotapi.Message) string {
	log.Printf("Received non-command message from user %s: %s", userName(message), message.Text)

	if strings.TrimSpace(message.Text) == "" {
		return "I don't understand. Use /help to see available commands."
	}

	response, err := t.service.HandleNaturalLanguageQuery(ctx, message.Text)
	if err != nil {
		log.Printf("Error handling natural language query: %v", err)
		return "I don't understand. Use /help to see available commands."
	}
	return response
}

func lookupFailure(what string, err error) string {
	if errors.Is(err, repository.ErrNotFound) {
		return "No data yet, the first refresh is still running. Please try again in a minute."
	}
	log.Printf("Error fetching %s data: %v", what, err)
	return fmt.Sprintf("Error fetching %s data. Please try again later.", what)
}

func userName(message *tgbotapi.Message) string {
	if message.From == nil {
		return "unknown"
	}
	return message.From.UserName
}
