// Package storyteller wires the candidate pipeline to the text and image services for
// the three game moments: opening a scene, resolving an action and ending the scene.
package storyteller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/vignette/internal/services"
	"github.com/jwebster45206/vignette/pkg/pipeline"
	"github.com/jwebster45206/vignette/pkg/prompts"
	"github.com/jwebster45206/vignette/pkg/textfilter"
)

// Sampling temperatures per stage.
const (
	TemperatureGenerate  = 1.0
	TemperatureSelect    = 0.0
	TemperatureRefine    = 0.5
	TemperatureVisualize = 0.3
)

// Pipeline names, used in logs and run state.
const (
	PipelineScene  = "create_scene"
	PipelineAction = "add_action"
	PipelineEnding = "end_scene"
)

var (
	sceneSchema = services.Schema{
		Name:        "scene",
		Description: "Submit the scene description.",
		Properties: map[string]services.Property{
			"description": {Type: services.TypeString, Description: "The scene description."},
		},
		Required: []string{"description"},
	}
	outcomeSchema = services.Schema{
		Name:        "outcome",
		Description: "Submit the outcome of the action.",
		Properties: map[string]services.Property{
			"outcome": {Type: services.TypeString, Description: "The outcome of the action."},
		},
		Required: []string{"outcome"},
	}
	summarySchema = services.Schema{
		Name:        "summary",
		Description: "Submit the final outcome of the scene.",
		Properties: map[string]services.Property{
			"summary": {Type: services.TypeString, Description: "The final outcome of the scene."},
		},
		Required: []string{"summary"},
	}
	selectionSchema = services.Schema{
		Name:        "selection",
		Description: "Submit the index of the best candidate.",
		Properties: map[string]services.Property{
			"index": {Type: services.TypeInteger, Description: "Zero-based index of the best candidate."},
		},
		Required: []string{"index"},
	}
	illustrationSchema = services.Schema{
		Name:        "illustration",
		Description: "Submit the image prompt.",
		Properties: map[string]services.Property{
			"prompt": {Type: services.TypeString, Description: "The image prompt."},
		},
		Required: []string{"prompt"},
	}
)

// Options sets the candidate counts. Zero values fall back to 3.
type Options struct {
	SceneCandidates  int
	EndingCandidates int
}

// Storyteller runs the three narrative pipelines. It is safe for concurrent use.
type Storyteller struct {
	text    services.TextService
	images  services.ImageService
	prompts *prompts.Pack
	engine  *pipeline.Engine
	cleaner *textfilter.Cleaner
	opts    Options
	logger  *slog.Logger
}

func New(text services.TextService, images services.ImageService, pack *prompts.Pack, opts Options, logger *slog.Logger) *Storyteller {
	if opts.SceneCandidates < 1 {
		opts.SceneCandidates = 3
	}
	if opts.EndingCandidates < 1 {
		opts.EndingCandidates = 3
	}
	return &Storyteller{
		text:    text,
		images:  images,
		prompts: pack,
		engine:  pipeline.New(logger),
		cleaner: textfilter.NewCleaner(),
		opts:    opts,
		logger:  logger,
	}
}

// CreateScene expands a short description into a full scene with an illustration.
// State.Refined holds the scene text and State.ImageURL the illustration, which is
// empty when no visual description could be extracted.
func (s *Storyteller) CreateScene(ctx context.Context, description string) (*pipeline.State, error) {
	return s.engine.Run(ctx, PipelineScene, []string{description}, s.opts.SceneCandidates, pipeline.Stages{
		Generate: func(ctx context.Context, inputs []string) (string, error) {
			return s.field(ctx, prompts.CreateScene, map[string]string{"description": inputs[0]},
				TemperatureGenerate, sceneSchema, "description")
		},
		Select: s.selector(prompts.SelectScene, "scenes"),
		Refine: s.refiner(prompts.RefineScene, "scene", sceneSchema, "description"),
		Visualize: func(ctx context.Context, refined string) (string, error) {
			return s.field(ctx, prompts.VisualizeScene, map[string]string{"scene": refined},
				TemperatureVisualize, illustrationSchema, "prompt")
		},
		Render: func(ctx context.Context, visualized string) (string, error) {
			if visualized == "" {
				return "", nil
			}
			return s.images.GenerateImage(ctx, services.DefaultImageRequest(visualized))
		},
	})
}

// AddAction narrates the outcome of one participant's action. A single candidate is
// generated, so no selection call is made.
func (s *Storyteller) AddAction(ctx context.Context, scene, outcomes, name, action string) (*pipeline.State, error) {
	return s.engine.Run(ctx, PipelineAction, []string{scene, outcomes, name, action}, 1, pipeline.Stages{
		Generate: func(ctx context.Context, inputs []string) (string, error) {
			return s.field(ctx, prompts.AddAction, map[string]string{
				"scene":    inputs[0],
				"outcomes": inputs[1],
				"name":     inputs[2],
				"action":   inputs[3],
			}, TemperatureGenerate, outcomeSchema, "outcome")
		},
		Select: pipeline.SelectFirst,
		Refine: s.refiner(prompts.RefineOutcome, "outcome", outcomeSchema, "outcome"),
	})
}

// EndScene writes the closing summary from the scene and the collected outcomes.
func (s *Storyteller) EndScene(ctx context.Context, scene, outcomes string) (*pipeline.State, error) {
	return s.engine.Run(ctx, PipelineEnding, []string{scene, outcomes}, s.opts.EndingCandidates, pipeline.Stages{
		Generate: func(ctx context.Context, inputs []string) (string, error) {
			return s.field(ctx, prompts.EndScene, map[string]string{
				"scene":    inputs[0],
				"outcomes": inputs[1],
			}, TemperatureGenerate, summarySchema, "summary")
		},
		Select: s.selector(prompts.SelectSummary, "summaries"),
		Refine: s.refiner(prompts.RefineSummary, "summary", summarySchema, "summary"),
	})
}

func (s *Storyteller) selector(template, placeholder string) pipeline.Selector {
	return func(ctx context.Context, joined string) (int, error) {
		prompt, err := s.prompts.Render(template, map[string]string{placeholder: joined})
		if err != nil {
			return 0, err
		}
		out, err := generate[struct {
			Index int `json:"index"`
		}](ctx, s.text, services.StructuredRequest{
			Prompt:      prompt,
			Temperature: TemperatureSelect,
			Schema:      selectionSchema,
		})
		if err != nil {
			return 0, err
		}
		return out.Index, nil
	}
}

func (s *Storyteller) refiner(template, placeholder string, schema services.Schema, key string) pipeline.Refiner {
	return func(ctx context.Context, selected string) (string, error) {
		text, err := s.field(ctx, template, map[string]string{placeholder: selected}, TemperatureRefine, schema, key)
		if err != nil {
			return "", err
		}
		cleaned := s.cleaner.Clean(text)
		if cleaned == "" {
			return "", fmt.Errorf("%w: %s is empty after cleanup", services.ErrMalformedResponse, schema.Name)
		}
		return cleaned, nil
	}
}

// field renders a template, requests a structured response and returns one string field of it.
func (s *Storyteller) field(ctx context.Context, template string, args map[string]string, temperature float64, schema services.Schema, key string) (string, error) {
	prompt, err := s.prompts.Render(template, args)
	if err != nil {
		return "", err
	}
	out, err := generate[map[string]any](ctx, s.text, services.StructuredRequest{
		Prompt:      prompt,
		Temperature: temperature,
		Schema:      schema,
	})
	if err != nil {
		return "", err
	}
	value, ok := out[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s field %q is not a string", services.ErrMalformedResponse, schema.Name, key)
	}
	return value, nil
}

func generate[T any](ctx context.Context, text services.TextService, req services.StructuredRequest) (T, error) {
	var out T
	raw, err := text.GenerateStructured(ctx, req)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s response: %w", req.Schema.Name, err)
	}
	return out, nil
}
