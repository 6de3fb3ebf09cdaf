package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jwebster45206/vignette/pkg/retry"
)

// RetryingTextService retries structured generation, including responses that fail
// schema validation. The final error is returned unchanged.
type RetryingTextService struct {
	next   TextService
	policy retry.Policy
	logger *slog.Logger
}

func NewRetryingTextService(next TextService, policy retry.Policy, logger *slog.Logger) *RetryingTextService {
	return &RetryingTextService{next: next, policy: policy, logger: logger}
}

func (s *RetryingTextService) GenerateStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error) {
	p := s.policy
	p.OnRetry = retryLogger(s.logger, "text", req.Schema.Name)

	out, err := retry.Do(ctx, p, func(ctx context.Context) (json.RawMessage, error) {
		raw, err := s.next.GenerateStructured(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := req.Schema.Validate(raw); err != nil {
			return nil, err
		}
		return raw, nil
	})
	if err != nil {
		s.logger.Error("Text generation failed",
			"schema", req.Schema.Name,
			"attempts", p.Attempts(),
			"error", err)
		return nil, err
	}
	return out, nil
}

// RetryingImageService retries image generation. The final error is returned unchanged.
type RetryingImageService struct {
	next   ImageService
	policy retry.Policy
	logger *slog.Logger
}

func NewRetryingImageService(next ImageService, policy retry.Policy, logger *slog.Logger) *RetryingImageService {
	return &RetryingImageService{next: next, policy: policy, logger: logger}
}

func (s *RetryingImageService) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	p := s.policy
	p.OnRetry = retryLogger(s.logger, "image", "")

	url, err := retry.Do(ctx, p, func(ctx context.Context) (string, error) {
		return s.next.GenerateImage(ctx, req)
	})
	if err != nil {
		s.logger.Error("Image generation failed", "attempts", p.Attempts(), "error", err)
		return "", err
	}
	return url, nil
}

func retryLogger(logger *slog.Logger, kind, schema string) func(error, int, time.Duration) {
	return func(err error, attempt int, delay time.Duration) {
		logger.Warn("Remote call failed, retrying",
			"kind", kind,
			"schema", schema,
			"attempt", attempt,
			"delay", delay,
			"error", err)
	}
}
