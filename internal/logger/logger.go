package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/jwebster45206/vignette/internal/config"
)

// Setup configures the process-wide slog logger. Call it once from main.
func Setup(cfg *config.Config) *slog.Logger {
	return SetupWriter(cfg, os.Stdout)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	if cfg.Environment == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// WithChat scopes a logger to one chat and request.
func WithChat(logger *slog.Logger, chatID int64, requestID string) *slog.Logger {
	return logger.With("chat_id", chatID, "request_id", requestID)
}
