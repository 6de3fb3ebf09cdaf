// Package pipeline runs the candidate generation and selection workflow:
// N parallel generations, a join, a selection, then refine, visualize and render
// applied in order to the winner.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage names one step of a run.
type Stage string

const (
	StageGenerate  Stage = "generate"
	StageSelect    Stage = "select"
	StageRefine    Stage = "refine"
	StageVisualize Stage = "visualize"
	StageRender    Stage = "render"
)

// Generator produces one candidate from the run inputs. Called once per branch, concurrently.
type Generator func(ctx context.Context, inputs []string) (string, error)

// Selector picks the winning candidate from the joined listing built by JoinCandidates.
type Selector func(ctx context.Context, joined string) (int, error)

// Refiner edits the winning candidate.
type Refiner func(ctx context.Context, selected string) (string, error)

// Visualizer extracts a visual description from the refined text. "" means absent.
type Visualizer func(ctx context.Context, refined string) (string, error)

// Renderer turns the visual description into an image URL. "" means absent.
type Renderer func(ctx context.Context, visualized string) (string, error)

// Stages configures one use of the engine. Generate is required. A nil Select picks
// index 0, a nil Refine passes the winner through, and nil Visualize/Render leave
// their outputs absent without any remote call.
type Stages struct {
	Generate  Generator
	Select    Selector
	Refine    Refiner
	Visualize Visualizer
	Render    Renderer
}

// State is the data threaded through a run.
type State struct {
	RunID          string   `json:"run_id"`
	Name           string   `json:"name"`
	Inputs         []string `json:"inputs"`
	CandidateCount int      `json:"candidate_count"`

	// Candidates[i] is the output of generator branch i, regardless of completion order.
	Candidates  []string `json:"candidates"`
	WinnerIndex int      `json:"winner_index"`

	// SelectionErr is set when the selector failed and index 0 was used instead.
	SelectionErr error `json:"-"`

	Refined    string `json:"refined,omitempty"`
	Visualized string `json:"visualized,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
}

// Winner returns the selected candidate.
func (s *State) Winner() string {
	if s.WinnerIndex < 0 || s.WinnerIndex >= len(s.Candidates) {
		return ""
	}
	return s.Candidates[s.WinnerIndex]
}

// JoinCandidates numbers candidates from 0 in branch order, one blank-line separated block each.
func JoinCandidates(candidates []string) string {
	parts := make([]string, len(candidates))
	for i, text := range candidates {
		parts[i] = strconv.Itoa(i) + ". " + text
	}
	return strings.Join(parts, "\n\n")
}

// SelectFirst always picks index 0. Used when there is a single candidate.
func SelectFirst(ctx context.Context, joined string) (int, error) {
	return 0, nil
}

// Engine executes runs. It is safe for concurrent use.
type Engine struct {
	logger *slog.Logger
}

// New creates an engine that logs through logger.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Run executes one pipeline. On success every stage has run and the State is complete.
// On failure it returns a *FatalStageError and no State.
func (e *Engine) Run(ctx context.Context, name string, inputs []string, candidateCount int, stages Stages) (*State, error) {
	if stages.Generate == nil {
		return nil, ErrNoGenerator
	}
	if candidateCount < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCandidateCount, candidateCount)
	}

	st := &State{
		RunID:          uuid.New().String(),
		Name:           name,
		Inputs:         slices.Clone(inputs),
		CandidateCount: candidateCount,
	}
	log := e.logger.With("pipeline", name, "run_id", st.RunID)
	start := time.Now()
	log.Info("Pipeline run started", "candidates", candidateCount)

	candidates, err := e.generate(ctx, st.RunID, st.Inputs, candidateCount, stages.Generate)
	if err != nil {
		log.Error("Pipeline run failed", "error", err)
		return nil, err
	}
	st.Candidates = candidates
	log.Debug("Candidates joined", "count", len(candidates))

	e.selectWinner(ctx, log, st, stages.Select)

	st.Refined = st.Winner()
	if stages.Refine != nil {
		refined, err := stages.Refine(ctx, st.Refined)
		if err != nil {
			return nil, e.fail(log, st, StageRefine, err)
		}
		st.Refined = refined
	}

	if stages.Visualize != nil {
		visualized, err := stages.Visualize(ctx, st.Refined)
		if err != nil {
			return nil, e.fail(log, st, StageVisualize, err)
		}
		st.Visualized = visualized
	}

	if stages.Render != nil {
		imageURL, err := stages.Render(ctx, st.Visualized)
		if err != nil {
			return nil, e.fail(log, st, StageRender, err)
		}
		st.ImageURL = imageURL
	}

	log.Info("Pipeline run completed",
		"winner_index", st.WinnerIndex,
		"has_image", st.ImageURL != "",
		"duration_ms", time.Since(start).Milliseconds())
	return st, nil
}

// generate fans out n branches and waits for all of them. Each branch writes only its own
// slot. The first failing branch cancels its siblings.
func (e *Engine) generate(ctx context.Context, runID string, inputs []string, n int, gen Generator) ([]string, error) {
	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			text, err := gen(branchCtx, slices.Clone(inputs))
			if err != nil {
				errs[idx] = err
				cancel()
				return
			}
			slots[idx] = text
		}(i)
	}
	wg.Wait()

	if idx, err := rootCause(errs); err != nil {
		return nil, &FatalStageError{RunID: runID, Stage: StageGenerate, Branch: idx, Err: err}
	}
	return slots, nil
}

// rootCause prefers the branch error that triggered cancellation over the
// context.Canceled errors it caused in sibling branches.
func rootCause(errs []error) (int, error) {
	first := -1
	for i, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return i, err
		}
		if first < 0 {
			first = i
		}
	}
	if first >= 0 {
		return first, errs[first]
	}
	return -1, nil
}

func (e *Engine) selectWinner(ctx context.Context, log *slog.Logger, st *State, sel Selector) {
	if sel == nil {
		sel = SelectFirst
	}

	idx, err := sel(ctx, JoinCandidates(st.Candidates))
	if err == nil && (idx < 0 || idx >= len(st.Candidates)) {
		err = fmt.Errorf("index %d out of range [0, %d)", idx, len(st.Candidates))
	}
	if err != nil {
		// TODO: decide with product whether selection failures should abort the run like every other stage.
		st.SelectionErr = &SelectionError{Index: idx, Err: err}
		log.Warn("Selection failed, using first candidate", "error", err)
		idx = 0
	}
	st.WinnerIndex = idx
	log.Debug("Winner selected", "winner_index", idx)
}

func (e *Engine) fail(log *slog.Logger, st *State, stage Stage, err error) error {
	log.Error("Pipeline run failed", "stage", stage, "error", err)
	return &FatalStageError{RunID: st.RunID, Stage: stage, Branch: -1, Err: err}
}
