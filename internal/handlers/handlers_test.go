package handlers

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/jwebster45206/vignette/internal/game"
	"github.com/jwebster45206/vignette/pkg/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

type fakeScenes struct {
	scenes map[int64]game.SceneView
}

func newFakeScenes(views ...game.SceneView) *fakeScenes {
	f := &fakeScenes{scenes: make(map[int64]game.SceneView)}
	for _, v := range views {
		f.scenes[v.ChatID] = v
	}
	return f
}

func (f *fakeScenes) Scene(chatID int64) (game.SceneView, bool) {
	v, ok := f.scenes[chatID]
	return v, ok
}

func (f *fakeScenes) Scenes() []game.SceneView {
	out := make([]game.SceneView, 0, len(f.scenes))
	for _, v := range f.scenes {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

var errRedisDown = errors.New("connection refused")

func sampleScene(chatID int64) game.SceneView {
	return game.SceneView{
		ChatID:      chatID,
		MessageID:   77,
		Description: "A lighthouse in a storm.",
		ImageURL:    "https://img.example/1.jpg",
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Actions: []state.Action{
			{UserID: 1, Name: "Ada", Text: "I climb the stairs.", Outcome: "Ada reaches the lamp room."},
		},
	}
}
