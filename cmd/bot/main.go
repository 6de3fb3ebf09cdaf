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

	"github.com/google/uuid"

	"github.com/jwebster45206/vignette/internal/config"
	"github.com/jwebster45206/vignette/internal/events"
	"github.com/jwebster45206/vignette/internal/game"
	"github.com/jwebster45206/vignette/internal/handlers"
	"github.com/jwebster45206/vignette/internal/logger"
	"github.com/jwebster45206/vignette/internal/services"
	"github.com/jwebster45206/vignette/internal/storyteller"
	"github.com/jwebster45206/vignette/internal/telegram"
	"github.com/jwebster45206/vignette/internal/worker"
	"github.com/jwebster45206/vignette/pkg/prompts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	if err := cfg.Validate(true); err != nil {
		log.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("Starting Vignette bot",
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName,
		"image_model", cfg.ImageModel)

	pack, err := prompts.LoadOrDefault(cfg.PromptsFile)
	if err != nil {
		log.Error("Failed to load prompt templates", "error", err, "file", cfg.PromptsFile)
		os.Exit(1)
	}

	text, err := services.NewTextServiceFromConfig(cfg, log)
	if err != nil {
		log.Error("Failed to create text service", "error", err)
		os.Exit(1)
	}
	images, err := services.NewImageServiceFromConfig(cfg, log)
	if err != nil {
		log.Error("Failed to create image service", "error", err)
		os.Exit(1)
	}

	teller := storyteller.New(text, images, pack, storyteller.Options{
		SceneCandidates:  cfg.SceneCandidates,
		EndingCandidates: cfg.EndingCandidates,
	}, log)

	// Event broadcasting is optional
	var broadcaster *events.Broadcaster
	var notifier game.Notifier
	if cfg.RedisURL != "" {
		connectCtx, connectCancel := context.WithTimeout(context.Background(), 30*time.Second)
		redisClient, err := events.Connect(connectCtx, cfg.RedisURL, log)
		connectCancel()
		if err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing Redis connection", "error", err)
			}
		}()
		broadcaster = events.NewBroadcaster(redisClient, log)
		notifier = broadcaster
	}

	manager := game.NewManager(teller, notifier, log)

	tg, err := telegram.New(cfg.TelegramAPIKey, log)
	if err != nil {
		log.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}

	dispatcher := worker.New(manager, tg, log, "bot-"+uuid.New().String()[:8])

	var server *http.Server
	if cfg.Port != "" {
		deps := handlers.Deps{Scenes: manager, Logger: log}
		if broadcaster != nil {
			deps.Events = broadcaster
		}
		server = &http.Server{
			Addr:        ":" + cfg.Port,
			Handler:     handlers.NewRouter(deps),
			ReadTimeout: 15 * time.Second,
			// no WriteTimeout: the events endpoint streams
			IdleTimeout: 60 * time.Second,
		}
		go func() {
			log.Info("Status server starting", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Status server failed", "error", err)
				os.Exit(1)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tg.Poll(ctx, dispatcher)

	log.Info("Bot is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Status server forced to shutdown", "error", err)
		}
	}

	dispatcher.Stop()
	log.Info("Bot exited")
}
