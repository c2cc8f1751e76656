package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tatianab/lesson-game/internal/config"
	"github.com/tatianab/lesson-game/internal/generator"
	"github.com/tatianab/lesson-game/internal/hub"
	"github.com/tatianab/lesson-game/internal/models"
	"github.com/tatianab/lesson-game/internal/runner"
	"github.com/tatianab/lesson-game/internal/storage/yamlfs"
	"github.com/tatianab/lesson-game/internal/tui"
)

func main() {
	specPath := flag.String("spec", "", "start a new session from a specification file")
	sessionID := flag.String("session", "", "resume a saved session")
	list := flag.Bool("list", false, "list saved sessions and exit")
	logPath := flag.String("log", "", "write logs to this file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(io.Discard, "", 0)
	if *logPath != "" {
		f, err := tea.LogToFile(*logPath, "lesson-game")
		if err != nil {
			fmt.Printf("Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logger = log.Default()
	}

	store := yamlfs.New(cfg.SaveDir)
	defer store.Close()

	if *list {
		sums, err := store.List(ctx)
		if err != nil {
			fmt.Printf("Error listing sessions: %v\n", err)
			os.Exit(1)
		}
		for _, s := range sums {
			fmt.Printf("%s\t%s\t%s\t%s\n", s.ID, s.Phase, s.UpdatedAt.Format("2006-01-02 15:04"), s.Title)
		}
		return
	}

	tcfg := tui.Config{SessionID: *sessionID}
	if *specPath != "" {
		spec, err := models.LoadSpecification(*specPath)
		if err != nil {
			fmt.Printf("Error loading specification: %v\n", err)
			os.Exit(1)
		}
		tcfg.Spec = spec
	}
	if tcfg.Spec == nil && tcfg.SessionID == "" {
		if err := cfg.RequireGemini(); err != nil {
			fmt.Printf("Error: %v (or pass -spec)\n", err)
			os.Exit(1)
		}
	}
	// A configured key also enables revise in the lobby.
	if cfg.GeminiAPIKey != "" {
		gen, err := generator.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, generator.WithLogger(logger))
		if err != nil {
			fmt.Printf("Error creating generator: %v\n", err)
			os.Exit(1)
		}
		defer gen.Close()
		tcfg.Generator = gen
	}

	h := hub.New(store,
		hub.WithLogger(logger),
		hub.WithRunnerOptions(
			runner.WithLogger(logger),
			runner.WithScheduler(runner.TickerScheduler{}, cfg.TickInterval),
		),
	)
	defer h.Close()
	tcfg.Hub = h

	if err := tui.Run(tcfg); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
