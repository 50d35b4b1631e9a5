// Command overdue-sweep runs one overdue sweep and exits. It shares the sweep
// lock with assetledgerd, so running it alongside the server is safe.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"assetledger/internal/app"
	"assetledger/internal/config"
	"assetledger/pkg/logger"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Stderr))
}

func run(stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Output: stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("build application")
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("close application")
		}
	}()

	if err := a.OverdueSweepJob(cfg).Run(ctx); err != nil {
		log.Error().Err(err).Msg("overdue sweep failed")
		return 1
	}
	return 0
}
