package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abelzeko/riverstats/internal/api"
	"github.com/abelzeko/riverstats/internal/config"
	"github.com/abelzeko/riverstats/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

func main() {
	// Configure logging
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting River Stats dashboard...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	a, err := newApp(cfg, observability.NewMetrics(), clockwork.NewRealClock())
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run a refresh immediately on startup
	if _, err := a.board.RefreshBoard(ctx); err != nil {
		log.Printf("Initial board refresh failed: %v", err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log.Default()))))
	_, err = c.AddFunc(cfg.RefreshSchedule, func() {
		if _, err := a.board.RefreshBoard(ctx); err != nil {
			log.Printf("Scheduled board refresh failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to set up cron job: %v", err)
	}
	c.Start()
	log.Printf("Board refresh scheduled: %s", cfg.RefreshSchedule)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	if cfg.TelegramToken != "" {
		telegramBot, err := api.NewTelegramBot(cfg.TelegramToken, a.board)
		if err != nil {
			log.Fatalf("Failed to initialize Telegram bot: %v", err)
		}
		go telegramBot.Start(ctx)
	} else {
		log.Println("TELEGRAM_BOT_TOKEN not set, Telegram bot is disabled")
	}

	<-ctx.Done()
	log.Println("Shutting down...")

	cronCtx := c.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown failed: %v", err)
	}
	select {
	case <-cronCtx.Done():
	case <-shutdownCtx.Done():
		log.Println("Timed out waiting for the running refresh")
	}
	log.Println("Stopped")
}
