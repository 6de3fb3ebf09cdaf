package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/vignette/internal/config"
	"github.com/jwebster45206/vignette/internal/game"
	"github.com/jwebster45206/vignette/internal/logger"
	"github.com/jwebster45206/vignette/internal/services"
	"github.com/jwebster45206/vignette/internal/storyteller"
	"github.com/jwebster45206/vignette/internal/worker"
	"github.com/jwebster45206/vignette/pkg/prompts"
)

func main() {
	members := flag.Int("members", 3, "table size used for the majority rule, counting the narrator")
	player := flag.String("player", "Player 1", "initial participant name")
	logFile := flag.String("log", "", "write logs to this file (default: discard)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(false); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// The alternate screen owns stdout, so logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			_ = f.Close()
		}()
		logOut = f
	}
	log := logger.SetupWriter(cfg, logOut)

	pack, err := prompts.LoadOrDefault(cfg.PromptsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load prompt templates: %v\n", err)
		os.Exit(1)
	}

	text, err := services.NewTextServiceFromConfig(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create text service: %v\n", err)
		os.Exit(1)
	}
	images, err := services.NewImageServiceFromConfig(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create image service: %v\n", err)
		os.Exit(1)
	}

	teller := storyteller.New(text, images, pack, storyteller.Options{
		SceneCandidates:  cfg.SceneCandidates,
		EndingCandidates: cfg.EndingCandidates,
	}, log)
	manager := game.NewManager(teller, nil, log)

	chat := newLocalChat(*members)
	dispatcher := worker.New(manager, chat, log, "console")
	defer dispatcher.Stop()

	p := tea.NewProgram(NewConsoleUI(chat, manager, dispatcher, *player),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	chat.setSender(p.Send)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
