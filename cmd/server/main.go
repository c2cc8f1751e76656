package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tatianab/lesson-game/internal/api"
	"github.com/tatianab/lesson-game/internal/config"
	"github.com/tatianab/lesson-game/internal/hub"
	"github.com/tatianab/lesson-game/internal/runner"
	"github.com/tatianab/lesson-game/internal/storage/sqlite"
	"github.com/tatianab/lesson-game/internal/telemetry"
)

func main() {
	log.SetPrefix("[SERVER] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	shutdown, err := telemetry.Setup(ctx, cfg, "lesson-game")
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	logger := log.New(os.Stdout, "[lesson-game] ", log.LstdFlags)
	h := hub.New(store,
		hub.WithLogger(logger),
		hub.WithRunnerOptions(
			runner.WithLogger(logger),
			runner.WithScheduler(runner.TickerScheduler{}, cfg.TickInterval),
		),
	)
	defer h.Close()

	srv := api.NewServer(h, api.WithLogger(logger), api.WithEventSource(store))
	return srv.ListenAndServe(ctx, cfg.HTTPAddr)
}
