package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

func main() {
	logger := logging.New(os.Stderr, "info", "text")
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "aidj",
		Usage:    "Turn prompts, images and conversations into Spotify playlists",
		Version:  "0.3.0",
		Flags:    globalFlags(),
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		stop()
		if errors.Is(err, domain.ErrNoMatches) {
			logger.Warn("no playlist created", "err", err)
			os.Exit(2)
		}
		logger.Fatalf("application error: %v", err)
	}
}
