// Command generate runs one storyteller pipeline outside of any chat and prints
// the resulting run state as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jwebster45206/vignette/internal/config"
	"github.com/jwebster45206/vignette/internal/logger"
	"github.com/jwebster45206/vignette/internal/services"
	"github.com/jwebster45206/vignette/internal/storyteller"
	"github.com/jwebster45206/vignette/pkg/pipeline"
	"github.com/jwebster45206/vignette/pkg/prompts"
)

type options struct {
	mode        string
	description string
	scene       string
	outcomes    string
	name        string
	action      string
}

func main() {
	var opts options
	flag.StringVar(&opts.mode, "mode", "scene", "pipeline to run: scene, action or ending")
	flag.StringVar(&opts.description, "description", "", "scene description (mode=scene)")
	flag.StringVar(&opts.scene, "scene", "", "scene text (mode=action, mode=ending)")
	flag.StringVar(&opts.outcomes, "outcomes", "", "outcomes so far, blank-line separated (mode=action, mode=ending)")
	flag.StringVar(&opts.name, "name", "", "acting participant (mode=action)")
	flag.StringVar(&opts.action, "action", "", "participant action (mode=action)")
	flag.Parse()

	if err := opts.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n", err)
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(false); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the JSON result
	log := logger.SetupWriter(cfg, os.Stderr)

	pack, err := prompts.LoadOrDefault(cfg.PromptsFile)
	if err != nil {
		log.Error("Failed to load prompt templates", "error", err)
		os.Exit(1)
	}
	text, err := services.NewTextServiceFromConfig(cfg, log)
	if err != nil {
		log.Error("Failed to create text service", "error", err)
		os.Exit(1)
	}
	images, err := services.NewImageServiceFromConfig(cfg, log)
	if err != nil {
		log.Error("Failed to create image service", "error", err)
		os.Exit(1)
	}
	teller := storyteller.New(text, images, pack, storyteller.Options{
		SceneCandidates:  cfg.SceneCandidates,
		EndingCandidates: cfg.EndingCandidates,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := run(ctx, teller, opts)
	if err != nil {
		var fatal *pipeline.FatalStageError
		if errors.As(err, &fatal) {
			log.Error("Pipeline failed", "stage", fatal.Stage, "run_id", fatal.RunID, "error", fatal.Err)
		} else {
			log.Error("Pipeline failed", "error", err)
		}
		os.Exit(1)
	}
	if st.SelectionErr != nil {
		log.Warn("Selection fell back to the first candidate", "error", st.SelectionErr)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		log.Error("Failed to encode result", "error", err)
		os.Exit(1)
	}
}

func (o options) validate() error {
	var missing []string
	require := func(flagName, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, "-"+flagName)
		}
	}

	switch o.mode {
	case "scene":
		require("description", o.description)
	case "action":
		require("scene", o.scene)
		require("name", o.name)
		require("action", o.action)
	case "ending":
		require("scene", o.scene)
	default:
		return fmt.Errorf("unknown mode %q (want scene, action or ending)", o.mode)
	}

	if len(missing) > 0 {
		return fmt.Errorf("mode %s requires %s", o.mode, strings.Join(missing, ", "))
	}
	return nil
}

type teller interface {
	CreateScene(ctx context.Context, description string) (*pipeline.State, error)
	AddAction(ctx context.Context, scene, outcomes, name, action string) (*pipeline.State, error)
	EndScene(ctx context.Context, scene, outcomes string) (*pipeline.State, error)
}

func run(ctx context.Context, t teller, o options) (*pipeline.State, error) {
	switch o.mode {
	case "scene":
		return t.CreateScene(ctx, o.description)
	case "action":
		return t.AddAction(ctx, o.scene, o.outcomes, o.name, o.action)
	default:
		return t.EndScene(ctx, o.scene, o.outcomes)
	}
}
