package storyteller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jwebster45206/vignette/internal/services"
	"github.com/jwebster45206/vignette/pkg/pipeline"
	"github.com/jwebster45206/vignette/pkg/prompts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	text   *services.MockTextService
	images *services.MockImageService
	teller *Storyteller
}

// newFixture answers every schema with a canned value; candidate n of a pipeline is "<schema> n".
func newFixture(t *testing.T) *fixture {
	t.Helper()
	pack, err := prompts.Default()
	require.NoError(t, err)

	f := &fixture{
		text:   services.NewMockTextService(),
		images: services.NewMockImageService(),
	}
	var candidate atomic.Int32
	f.text.GenerateStructuredFunc = func(ctx context.Context, req services.StructuredRequest) (json.RawMessage, error) {
		switch req.Schema.Name {
		case "selection":
			return json.RawMessage(`{"index":1}`), nil
		case "illustration":
			return json.RawMessage(`{"prompt":"oil painting of a cave"}`), nil
		}
		key := req.Schema.Required[0]
		value := fmt.Sprintf("%s %d", req.Schema.Name, candidate.Add(1))
		if req.Temperature == TemperatureRefine {
			value = "**refined** " + req.Prompt[strings.LastIndex(req.Prompt, ":\n")+2:]
		}
		b, _ := json.Marshal(map[string]string{key: strings.TrimSpace(value)})
		return b, nil
	}

	f.teller = New(f.text, f.images, pack, Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func TestCreateScene(t *testing.T) {
	f := newFixture(t)

	st, err := f.teller.CreateScene(context.Background(), "a cave")
	require.NoError(t, err)

	// 3 candidates, 1 selection, 1 refine, 1 visualize.
	calls := f.text.GetCalls()
	assert.Len(t, calls, 6)
	assert.Len(t, f.text.CallsFor("selection"), 1)
	assert.Len(t, f.text.CallsFor("illustration"), 1)

	assert.Len(t, st.Candidates, 3)
	assert.Equal(t, 1, st.WinnerIndex)
	assert.Equal(t, "refined "+st.Candidates[1], st.Refined, "markup cleaned from the refined winner")
	assert.Equal(t, "oil painting of a cave", st.Visualized)
	assert.Equal(t, "https://images.example/mock.jpg", st.ImageURL)

	images := f.images.GetCalls()
	require.Len(t, images, 1)
	assert.Equal(t, services.DefaultImageRequest("oil painting of a cave"), images[0])

	selection := f.text.CallsFor("selection")[0]
	assert.Contains(t, selection.Prompt, pipeline.JoinCandidates(st.Candidates))
	assert.Equal(t, TemperatureSelect, selection.Temperature)
	assert.Equal(t, TemperatureVisualize, f.text.CallsFor("illustration")[0].Temperature)
	for _, c := range f.text.CallsFor("scene") {
		if c.Temperature == TemperatureGenerate {
			assert.Contains(t, c.Prompt, "a cave")
		}
	}
}

func TestCreateScene_ImageFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	boom := &services.APIError{Service: "runware", StatusCode: 500}
	f.images.SetError(boom)

	st, err := f.teller.CreateScene(context.Background(), "a cave")
	assert.Nil(t, st)

	var fatal *pipeline.FatalStageError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, pipeline.StageRender, fatal.Stage)
	assert.ErrorIs(t, err, boom)
}

func TestCreateScene_SelectionFailureDefaultsToFirst(t *testing.T) {
	f := newFixture(t)
	next := f.text.GenerateStructuredFunc
	f.text.GenerateStructuredFunc = func(ctx context.Context, req services.StructuredRequest) (json.RawMessage, error) {
		if req.Schema.Name == "selection" {
			return nil, errors.New("judge down")
		}
		return next(ctx, req)
	}

	st, err := f.teller.CreateScene(context.Background(), "a cave")
	require.NoError(t, err)
	assert.Equal(t, 0, st.WinnerIndex)
	assert.Error(t, st.SelectionErr)
	assert.Equal(t, "refined "+st.Candidates[0], st.Refined)
}

func TestAddAction(t *testing.T) {
	f := newFixture(t)

	st, err := f.teller.AddAction(context.Background(), "A rope bridge.", "Bo waits.", "Ada", "I run across.")
	require.NoError(t, err)

	// One candidate and one refine; the trivial selector makes no call.
	assert.Len(t, f.text.GetCalls(), 2)
	assert.Empty(t, f.text.CallsFor("selection"))
	assert.Empty(t, f.images.GetCalls())

	assert.Len(t, st.Candidates, 1)
	assert.Empty(t, st.Visualized)
	assert.Empty(t, st.ImageURL)
	assert.Equal(t, "refined "+st.Candidates[0], st.Refined)

	gen := f.text.GetCalls()[0]
	assert.Contains(t, gen.Prompt, "A rope bridge.")
	assert.Contains(t, gen.Prompt, "Bo waits.")
	assert.Contains(t, gen.Prompt, "Current action by Ada:")
	assert.Contains(t, gen.Prompt, "I run across.")
}

func TestEndScene(t *testing.T) {
	f := newFixture(t)

	st, err := f.teller.EndScene(context.Background(), "A rope bridge.", "Ada runs.\n\nBo waits.")
	require.NoError(t, err)

	// 3 candidates, 1 selection, 1 refine; no illustration.
	assert.Len(t, f.text.GetCalls(), 5)
	assert.Empty(t, f.text.CallsFor("illustration"))
	assert.Empty(t, f.images.GetCalls())
	assert.Len(t, st.Candidates, 3)
	assert.Equal(t, "refined "+st.Candidates[1], st.Refined)
}

func TestEndScene_CandidateCountOption(t *testing.T) {
	f := newFixture(t)
	pack, _ := prompts.Default()
	teller := New(f.text, f.images, pack, Options{EndingCandidates: 5}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	st, err := teller.EndScene(context.Background(), "scene", "")
	require.NoError(t, err)
	assert.Len(t, st.Candidates, 5)
}

func TestGenerationFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("exhausted")
	f.text.SetError(boom)

	st, err := f.teller.AddAction(context.Background(), "s", "", "Ada", "a")
	assert.Nil(t, st)
	assert.ErrorIs(t, err, boom)

	var fatal *pipeline.FatalStageError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, pipeline.StageGenerate, fatal.Stage)
}

func TestRefineEmptyAfterCleanupFails(t *testing.T) {
	f := newFixture(t)
	next := f.text.GenerateStructuredFunc
	f.text.GenerateStructuredFunc = func(ctx context.Context, req services.StructuredRequest) (json.RawMessage, error) {
		if req.Temperature == TemperatureRefine {
			return json.RawMessage(`{"outcome":"**  **"}`), nil
		}
		return next(ctx, req)
	}

	_, err := f.teller.AddAction(context.Background(), "s", "", "Ada", "a")
	assert.ErrorIs(t, err, services.ErrMalformedResponse)
}
