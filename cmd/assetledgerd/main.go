// Command assetledgerd serves the asset lifecycle HTTP API and runs the
// scheduled overdue sweep.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assetledger/internal/adapters/httpapi"
	"assetledger/internal/app"
	"assetledger/internal/config"
	"assetledger/internal/scheduler"
	"assetledger/pkg/logger"

	"github.com/rs/zerolog"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("assetledgerd stopped with error")
		return 1
	}
	return 0
}

// serve runs the API and the sweep scheduler until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("close application")
		}
	}()

	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.SweepSchedule, a.OverdueSweepJob(cfg)); err != nil {
		return fmt.Errorf("schedule overdue sweep: %w", err)
	}
	sched.Start(ctx)
	defer sched.Stop()

	srv := httpapi.New(httpapi.Config{
		Log:      log,
		Service:  a.Service,
		Addr:     cfg.HTTPAddr,
		Gatherer: a.Registry,
	})
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
