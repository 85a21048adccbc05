package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/ewilliams-labs/aidj/internal/app"
	"github.com/ewilliams-labs/aidj/internal/config"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

func main() {
	// 1. Configuration: aidj.toml (or AIDJ_CONFIG), then .env, then environment.
	cfg, err := config.Load(os.Getenv("AIDJ_CONFIG"))
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Adapters and services.
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", "err", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close failed", "err", err)
		}
	}()

	// 3. Serve until interrupted.
	if err := app.Serve(ctx, cfg.Server.Addr(), a.Handler(), logger); err != nil {
		logger.Error("server stopped", "err", err)
		stop()
		os.Exit(1)
	}
}
