package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Service    string            `json:"service"`
	Components map[string]string `json:"components"`
}

type HealthHandler struct {
	redis  Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a health handler. redis may be nil when event
// broadcasting is disabled.
func NewHealthHandler(redis Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		redis:  redis,
		logger: logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Health check requested",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	components := map[string]string{"game": "healthy"}
	overallStatus := "healthy"

	if h.redis == nil {
		components["redis"] = "disabled"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warn("Redis health check failed", "error", err)
			components["redis"] = "unhealthy"
			overallStatus = "degraded"
		} else {
			components["redis"] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, h.logger, statusCode, HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Service:    "vignette",
		Components: components,
	})
}
