package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// Deps are the components the status server reads from. Events may be nil.
type Deps struct {
	Scenes SceneSource
	Events Subscriber
	Logger *slog.Logger
}

// NewRouter builds the status API.
//
//	GET /health
//	GET /v1/scenes
//	GET /v1/scenes/{chatID}
//	GET /v1/scenes/{chatID}/events  (only when Events is set)
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(deps.Logger))

	var pinger Pinger
	if deps.Events != nil {
		pinger = deps.Events
	}
	r.Method(http.MethodGet, "/health", NewHealthHandler(pinger, deps.Logger))

	scenes := NewScenesHandler(deps.Scenes, deps.Logger)
	r.Get("/v1/scenes", scenes.List)
	r.Get("/v1/scenes/{chatID}", scenes.Get)

	if deps.Events != nil {
		r.Method(http.MethodGet, "/v1/scenes/{chatID}/events", NewEventsHandler(deps.Events, deps.Logger))
	}

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}
