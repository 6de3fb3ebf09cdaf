package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jwebster45206/vignette/internal/game"
)

// SceneSource exposes read-only copies of active scenes.
type SceneSource interface {
	Scene(chatID int64) (game.SceneView, bool)
	Scenes() []game.SceneView
}

type ScenesResponse struct {
	Scenes []game.SceneView `json:"scenes"`
	Count  int              `json:"count"`
}

type ScenesHandler struct {
	source SceneSource
	logger *slog.Logger
}

func NewScenesHandler(source SceneSource, logger *slog.Logger) *ScenesHandler {
	return &ScenesHandler{
		source: source,
		logger: logger,
	}
}

// List handles GET /v1/scenes
func (h *ScenesHandler) List(w http.ResponseWriter, r *http.Request) {
	scenes := h.source.Scenes()
	writeJSON(w, h.logger, http.StatusOK, ScenesResponse{Scenes: scenes, Count: len(scenes)})
}

// Get handles GET /v1/scenes/{chatID}
func (h *ScenesHandler) Get(w http.ResponseWriter, r *http.Request) {
	chatID, ok := parseChatID(w, r, h.logger)
	if !ok {
		return
	}

	scene, found := h.source.Scene(chatID)
	if !found {
		writeError(w, h.logger, http.StatusNotFound, "No active scene for this chat")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, scene)
}

func parseChatID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (int64, bool) {
	raw := chi.URLParam(r, "chatID")
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logger.Warn("Invalid chat ID", "chat_id", raw, "error", err)
		writeError(w, logger, http.StatusBadRequest, "Invalid chat ID format")
		return 0, false
	}
	return chatID, true
}
