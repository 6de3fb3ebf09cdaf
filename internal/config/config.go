package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jwebster45206/vignette/pkg/retry"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	LLMProvider     string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	ModelName       string

	RunwareAPIKey string
	ImageModel    string

	TelegramAPIKey string

	// RedisURL enables the event broadcaster when set
	RedisURL string

	// PromptsFile overrides the built-in prompt templates when set
	PromptsFile string

	SceneCandidates  int
	EndingCandidates int

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	RequestTimeout   time.Duration
}

// Load reads the configuration from the environment. Malformed numeric or duration
// values are errors; missing credentials are reported by Validate.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        os.Getenv("PORT"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", ProviderAnthropic)),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		ModelName:       os.Getenv("MODEL_NAME"),

		RunwareAPIKey: os.Getenv("RUNWARE_API_KEY"),
		ImageModel:    getEnv("IMAGE_MODEL", "runware:101@1"),

		TelegramAPIKey: os.Getenv("TELEGRAM_API_KEY"),
		RedisURL:       os.Getenv("REDIS_URL"),
		PromptsFile:    os.Getenv("PROMPTS_FILE"),
	}
	if _, set := os.LookupEnv("PORT"); !set {
		cfg.Port = "8080"
	}

	var errs []error
	cfg.SceneCandidates = getInt("SCENE_CANDIDATES", 3, &errs)
	cfg.EndingCandidates = getInt("ENDING_CANDIDATES", 3, &errs)
	cfg.RetryMaxAttempts = getInt("RETRY_MAX_ATTEMPTS", retry.DefaultMaxAttempts, &errs)
	cfg.RetryBaseDelay = getDuration("RETRY_BASE_DELAY", retry.DefaultBaseDelay, &errs)
	cfg.RetryMaxDelay = getDuration("RETRY_MAX_DELAY", retry.DefaultMaxDelay, &errs)
	cfg.RequestTimeout = getDuration("REQUEST_TIMEOUT", 90*time.Second, &errs)

	if cfg.SceneCandidates < 1 || cfg.EndingCandidates < 1 {
		errs = append(errs, errors.New("candidate counts must be at least 1"))
	}
	if cfg.RetryMaxAttempts < 1 {
		errs = append(errs, errors.New("RETRY_MAX_ATTEMPTS must be at least 1"))
	}
	if cfg.LLMProvider != ProviderAnthropic && cfg.LLMProvider != ProviderOpenAI {
		errs = append(errs, fmt.Errorf("unsupported LLM_PROVIDER %q (supported: %s, %s)", cfg.LLMProvider, ProviderAnthropic, ProviderOpenAI))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the credentials needed at startup are present. The chat
// platform token is only required when requireChat is set.
func (c *Config) Validate(requireChat bool) error {
	var missing []string
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	default:
		if c.AnthropicAPIKey == "" {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	}
	if c.RunwareAPIKey == "" {
		missing = append(missing, "RUNWARE_API_KEY")
	}
	if requireChat && c.TelegramAPIKey == "" {
		missing = append(missing, "TELEGRAM_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// RetryPolicy builds the policy applied to every remote call.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.RetryMaxAttempts,
		BaseDelay:   c.RetryBaseDelay,
		MaxDelay:    c.RetryMaxDelay,
		Timeout:     c.RequestTimeout,
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return d
}
