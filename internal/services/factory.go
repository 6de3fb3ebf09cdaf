package services

import (
	"fmt"
	"log/slog"

	"github.com/jwebster45206/vignette/internal/config"
)

// NewTextServiceFromConfig builds the configured text provider wrapped in the
// configured retry policy.
func NewTextServiceFromConfig(cfg *config.Config, logger *slog.Logger) (TextService, error) {
	var text TextService
	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic API key is required when using the anthropic provider")
		}
		text = NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, logger)
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai API key is required when using the openai provider")
		}
		text = NewOpenAIService(cfg.OpenAIAPIKey, cfg.ModelName, cfg.OpenAIBaseURL, logger)
	default:
		return nil, fmt.Errorf("invalid LLM provider %q (supported: %s, %s)",
			cfg.LLMProvider, config.ProviderAnthropic, config.ProviderOpenAI)
	}
	logger.Info("Using text provider", "provider", cfg.LLMProvider, "model", cfg.ModelName)
	return NewRetryingTextService(text, cfg.RetryPolicy(), logger), nil
}

// NewImageServiceFromConfig builds the Runware client wrapped in the configured retry policy.
func NewImageServiceFromConfig(cfg *config.Config, logger *slog.Logger) (ImageService, error) {
	if cfg.RunwareAPIKey == "" {
		return nil, fmt.Errorf("runware API key is required")
	}
	return NewRetryingImageService(NewRunwareService(cfg.RunwareAPIKey, cfg.ImageModel, logger), cfg.RetryPolicy(), logger), nil
}
