package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/starveil/economy/internal/guard"
	"github.com/starveil/economy/internal/infra"
	"github.com/starveil/economy/internal/projection"
	"github.com/starveil/economy/internal/relay"
	"github.com/starveil/economy/internal/repository"
	"github.com/starveil/economy/internal/roomclient"
	"github.com/starveil/economy/internal/router"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("bridge failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if err := relay.EnsureBridgeDirs(cfg.BridgeDir); err != nil {
		return fmt.Errorf("create bridge dirs: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("bridge connected to postgres")

	store := repository.NewStore()
	states := projection.NewWriter(cfg.BridgeDir, cfg.ModCacheDir, logger)

	client := roomclient.New(cfg.RoomHost, logger)
	rt := router.New(store, pool, client, states, logger)

	mirror := newMarketMirror(rt, states, logger)
	client.OnMarketMessage(func(data []byte) { mirror.handle(ctx, data) })

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect room server: %w", err)
	}
	defer client.Close()

	seen := guard.NewSeenSet(guard.DefaultSeenCapacity)
	watcher := relay.NewFileWatcher(cfg.BridgeDir, cfg.FilePollInterval, rt, logger)
	tailer := relay.NewLogTailer(cfg.GameLogPath, cfg.LogPollInterval, rt, seen, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		watcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		tailer.Run(ctx)
	}()

	logger.Info("bridge started",
		"bridge_dir", cfg.BridgeDir, "game_log", cfg.GameLogPath, "room_host", cfg.RoomHost)

	<-ctx.Done()
	logger.Info("bridge shutdown signal received")
	wg.Wait()
	logger.Info("bridge stopped")
	return nil
}
