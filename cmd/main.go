package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/spotclone/internal/shared"
)

const version = "0.1.0"

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := runner.root().Run(ctx, os.Args)
	stop()
	runner.Close()

	if err != nil {
		switch {
		case errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidArgument):
			logger.Error("invalid usage", "error", err)
			os.Exit(2)
		case errors.Is(err, shared.ErrTrackNotFound):
			logger.Error("download failed", "error", err)
			os.Exit(3)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
